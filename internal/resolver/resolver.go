// Package resolver runs the ordered provider fallback for a single product
// and composes its final per-refresh result.
package resolver

import (
	"context"
	"time"

	"fundboard/internal/product"
	"fundboard/internal/provider"
	"fundboard/internal/staleness"
)

// Status is the per-product outcome of one refresh.
type Status string

const (
	// StatusOK means a fresh value was obtained.
	StatusOK Status = "ok"
	// StatusNA means only stale values were obtained; the value is shown
	// but is not authoritative.
	StatusNA Status = "na"
	// StatusError means every configured provider failed outright.
	StatusError Status = "error"
)

// Timestamp renders as ISO-8601 local time at seconds precision.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// ResultRecord is the final per-product output of a refresh. It is
// constructed once and never mutated afterwards.
type ResultRecord struct {
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Kind         string            `json:"kind"`
	IntradayPct  *float64          `json:"intradayPct"`
	Status       Status            `json:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Provider     string            `json:"provider"`
	SourceURL    string            `json:"sourceUrl"`
	AsOfTime     Timestamp         `json:"asOfTime"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Resolver tries a product's providers strictly in configured order. The
// order is authoritative and never adjusted by runtime heuristics, so a
// given refresh is reproducible attempt by attempt.
type Resolver struct {
	registry provider.Registry
	clock    staleness.Clock

	// now stamps asOfTime when a product finishes; overridable in tests.
	now func() time.Time
}

// New creates a Resolver over the given adapters and session clock.
func New(registry provider.Registry, clock staleness.Clock) *Resolver {
	return &Resolver{
		registry: registry,
		clock:    clock,
		now:      time.Now,
	}
}

// Resolve evaluates one product: first provider to yield a fresh candidate
// wins; otherwise the first stale candidate is returned as a degraded value;
// otherwise the last failure is reported. It never returns an error — every
// outcome is a ResultRecord.
func (r *Resolver) Resolve(ctx context.Context, d product.Descriptor, now time.Time) ResultRecord {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = product.DefaultTimeout
	}

	var (
		lastFailure    *provider.Failure
		lastProvider   string
		lastURL        string
		degraded       *provider.CandidateQuote
		degradedReason string
	)

	for _, id := range d.Providers {
		lastProvider = id

		adapter, ok := r.registry[id]
		if !ok {
			lastFailure = provider.NewUnknownProvider(id)
			lastURL = ""
			continue
		}
		lastURL = adapter.URL(d.Code)

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		quote, err := adapter.Fetch(attemptCtx, d.Code)
		cancel()
		if err != nil {
			lastFailure = provider.AsFailure(id, err)
			continue
		}

		lastURL = quote.SourceURL
		verdict, reason := r.clock.Classify(quote, now, d.StaleRule)
		if verdict == staleness.Fresh {
			return r.record(d, quote, StatusOK, "", "")
		}
		// First stale candidate wins the degraded slot, keeping provider
		// precedence deterministic.
		if degraded == nil {
			degraded = quote
			degradedReason = reason
		}
	}

	if degraded != nil {
		return r.record(d, degraded, StatusNA, "", degradedReason)
	}

	rec := ResultRecord{
		Code:      d.Code,
		Name:      d.Name,
		Kind:      d.Kind,
		Status:    StatusError,
		Provider:  lastProvider,
		SourceURL: lastURL,
		AsOfTime:  Timestamp{r.now().In(r.clock.Location)},
	}
	if lastFailure != nil {
		rec.ErrorMessage = lastFailure.Error()
		if lastFailure.Raw != "" {
			rec.Meta = map[string]string{"raw_text": lastFailure.Raw}
		}
	} else {
		rec.ErrorMessage = "no providers configured"
	}
	return rec
}

func (r *Resolver) record(d product.Descriptor, q *provider.CandidateQuote, status Status, errMsg, staleReason string) ResultRecord {
	meta := make(map[string]string, len(q.Meta)+1)
	for k, v := range q.Meta {
		meta[k] = v
	}
	if staleReason != "" {
		meta["stale_reason"] = staleReason
	}
	return ResultRecord{
		Code:         d.Code,
		Name:         d.Name,
		Kind:         d.Kind,
		IntradayPct:  q.PctChange,
		Status:       status,
		ErrorMessage: errMsg,
		Provider:     q.Provider,
		SourceURL:    q.SourceURL,
		AsOfTime:     Timestamp{r.now().In(r.clock.Location)},
		Meta:         meta,
	}
}
