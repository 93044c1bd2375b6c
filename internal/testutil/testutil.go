package testutil

import (
	"context"
	"sync/atomic"

	"fundboard/internal/provider"
)

// MockAdapter is a mock implementation of the Adapter interface for testing.
// It counts Fetch invocations so tests can assert which providers were tried.
type MockAdapter struct {
	FetchFunc func(ctx context.Context, code string) (*provider.CandidateQuote, error)
	NameValue string

	calls atomic.Int64
}

// Fetch implements the Adapter interface
func (m *MockAdapter) Fetch(ctx context.Context, code string) (*provider.CandidateQuote, error) {
	m.calls.Add(1)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, code)
	}
	return &provider.CandidateQuote{Provider: m.NameValue, SourceURL: m.URL(code)}, nil
}

// Name implements the Adapter interface
func (m *MockAdapter) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// URL implements the Adapter interface
func (m *MockAdapter) URL(code string) string {
	return "mock://" + m.Name() + "/" + code
}

// Calls returns how many times Fetch has been invoked.
func (m *MockAdapter) Calls() int {
	return int(m.calls.Load())
}

// NewMockAdapter creates a mock adapter returning a fixed quote or error.
func NewMockAdapter(name string, quote *provider.CandidateQuote, err error) *MockAdapter {
	return &MockAdapter{
		NameValue: name,
		FetchFunc: func(ctx context.Context, code string) (*provider.CandidateQuote, error) {
			if err != nil {
				return nil, err
			}
			return quote, nil
		},
	}
}
