package provider

import (
	"resty.dev/v3"
)

// browserUserAgent is sent on every request; some of the public quote
// endpoints reject Go's default agent string.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewHTTPClient creates an HTTP client for a provider adapter. Retries are
// deliberately disabled: each attempt must stay a single, independently
// reproducible request, and recovery happens by falling back to the next
// configured provider instead.
func NewHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json, text/javascript, */*").
		SetHeader("User-Agent", browserUserAgent).
		SetRetryCount(0)
}
