package provider

import (
	"context"
	"time"
)

// CandidateQuote is the parsed output of a single provider attempt, before
// any freshness judgment has been applied.
type CandidateQuote struct {
	// Provider is the identifier of the adapter that produced this quote.
	Provider string

	// PctChange is the source-reported intraday change in percent.
	// Nil when the source answered with a structurally valid "no data"
	// response for the requested code.
	PctChange *float64

	// ObservedAt is the timestamp the source claims the value corresponds
	// to. It is source-reported, not wall-clock; zero when the payload
	// carried no usable timestamp.
	ObservedAt time.Time

	// Meta retains diagnostic fields from the raw payload for audit only.
	Meta map[string]string

	// SourceURL is the exact URL that was fetched.
	SourceURL string
}

// Adapter is implemented once per public data source. Adapters are stateless
// and safe for concurrent use across different codes.
type Adapter interface {
	// Fetch issues a single request for the given product code, bounded by
	// ctx, and parses the source payload into a CandidateQuote. Failures
	// are returned as *Failure values and never panic past this boundary.
	Fetch(ctx context.Context, code string) (*CandidateQuote, error)

	// Name returns the provider identifier used in configured provider
	// order lists, e.g. "fundgz".
	Name() string

	// URL returns the request URL for a code without issuing a request,
	// so failed attempts can still be audited.
	URL(code string) string
}

// Registry maps provider identifiers to their adapters.
type Registry map[string]Adapter

// NewRegistry builds a Registry keyed by each adapter's Name.
func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Name()] = a
	}
	return r
}
