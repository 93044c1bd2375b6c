package provider

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind categorizes what went wrong during a provider attempt.
type FailureKind string

const (
	// KindTimeout indicates the attempt exceeded its configured bound.
	KindTimeout FailureKind = "timeout"
	// KindParseError indicates the payload did not match the expected shape.
	KindParseError FailureKind = "parse_error"
	// KindNetwork indicates a network-level error (connection refused, DNS, etc.)
	KindNetwork FailureKind = "network"
	// KindHTTPStatus indicates the endpoint answered with a non-2xx status.
	KindHTTPStatus FailureKind = "http_status"
	// KindUnknownProvider indicates a configured provider id with no
	// registered adapter.
	KindUnknownProvider FailureKind = "unknown_provider"
)

// Failure is the structured error value an adapter attempt resolves to.
// It never escapes the fallback layer as an uncaught fault.
type Failure struct {
	Provider   string
	Kind       FailureKind
	StatusCode int
	Message    string
	// Raw carries a truncated copy of the offending payload on parse
	// failures, for diagnostics only.
	Raw   string
	Cause error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (status %d): %s", f.Provider, f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", f.Provider, f.Kind, f.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// NewTimeout creates a timeout failure.
func NewTimeout(providerID string, cause error) *Failure {
	return &Failure{
		Provider: providerID,
		Kind:     KindTimeout,
		Message:  "request timed out",
		Cause:    cause,
	}
}

// NewParse creates a parse failure carrying the raw payload.
func NewParse(providerID, message, raw string) *Failure {
	return &Failure{
		Provider: providerID,
		Kind:     KindParseError,
		Message:  message,
		Raw:      Snippet(raw),
	}
}

// NewNetwork creates a network failure.
func NewNetwork(providerID string, cause error) *Failure {
	return &Failure{
		Provider: providerID,
		Kind:     KindNetwork,
		Message:  "network request failed",
		Cause:    cause,
	}
}

// NewHTTPStatus creates a failure for a non-success HTTP status.
func NewHTTPStatus(providerID string, statusCode int) *Failure {
	return &Failure{
		Provider:   providerID,
		Kind:       KindHTTPStatus,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("endpoint returned HTTP %d", statusCode),
	}
}

// NewUnknownProvider creates a failure for an unregistered provider id.
func NewUnknownProvider(providerID string) *Failure {
	return &Failure{
		Provider: providerID,
		Kind:     KindUnknownProvider,
		Message:  fmt.Sprintf("no adapter registered for provider %q", providerID),
	}
}

// AsFailure coerces any attempt error into a *Failure, classifying transport
// errors by cause. Context expiry maps to a timeout.
func AsFailure(providerID string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTimeout(providerID, err)
	}
	return NewNetwork(providerID, err)
}

// Snippet truncates a raw payload to a diagnostics-sized prefix.
func Snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max]
}
