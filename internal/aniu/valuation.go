// Package aniu fetches intraday fund valuations from aniu.com. The source
// answers either with a JSON object or with an HTML page embedding the same
// fields as a JSON fragment, and exposes the valuation under two URL shapes.
package aniu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"fundboard/internal/provider"
	"fundboard/internal/ratelimit"
)

// ProviderID is the identifier used in configured provider order lists.
const ProviderID = "aniu"

// DefaultBaseURL is the production endpoint.
const DefaultBaseURL = "https://www.aniu.com"

// valuationPayload is the expected JSON shape. The percent fields appear
// under several historical names and are quoted on some responses, so they
// decode in two stages via RawMessage.
type valuationPayload struct {
	Gszzl         json.RawMessage `json:"gszzl"`
	Gzzl          json.RawMessage `json:"gzzl"`
	EstimateRate  json.RawMessage `json:"estimate_rate"`
	EstimateRate2 json.RawMessage `json:"estimateRate"`
	Gztime        string          `json:"gztime"`
	Time          string          `json:"time"`
}

var (
	pctPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"gszzl"\s*:\s*"([+-]?[0-9.]+)"`),
		regexp.MustCompile(`"gzzl"\s*:\s*"([+-]?[0-9.]+)"`),
		regexp.MustCompile(`"estimate_rate"\s*:\s*"([+-]?[0-9.]+)"`),
		regexp.MustCompile(`"estimateRate"\s*:\s*"([+-]?[0-9.]+)"`),
	}
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"gztime"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`"time"\s*:\s*"([^"]+)"`),
	}
)

// Adapter fetches and parses aniu valuations.
type Adapter struct {
	baseURL string
	loc     *time.Location
	client  *resty.Client
}

// New creates an aniu adapter. Source timestamps are interpreted in loc.
func New(baseURL string, loc *time.Location) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		loc:     loc,
		client:  provider.NewHTTPClient(baseURL),
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return ProviderID }

// URL returns the primary request URL for a code.
func (a *Adapter) URL(code string) string {
	return fmt.Sprintf("%s/fund/valuation/%s.json", a.baseURL, code)
}

// Fetch retrieves the current valuation for one fund code, trying the JSON
// URL first and the plain page second.
func (a *Adapter) Fetch(ctx context.Context, code string) (*provider.CandidateQuote, error) {
	candidates := []string{
		a.URL(code),
		fmt.Sprintf("%s/fund/valuation/%s", a.baseURL, code),
	}

	var lastErr error
	for _, url := range candidates {
		quote, err := a.fetchOne(ctx, url)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		slog.Debug("aniu fetch complete", "code", code, "url", url)
		return quote, nil
	}
	return nil, provider.AsFailure(ProviderID, lastErr)
}

func (a *Adapter) fetchOne(ctx context.Context, url string) (*provider.CandidateQuote, error) {
	if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.APIAniu); err != nil {
		return nil, provider.AsFailure(ProviderID, err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, provider.AsFailure(ProviderID, err)
	}
	if !resp.IsSuccess() {
		return nil, provider.NewHTTPStatus(ProviderID, resp.StatusCode())
	}
	return a.parse(resp.String(), url)
}

func (a *Adapter) parse(raw, url string) (*provider.CandidateQuote, error) {
	pct, observed, ok := a.parseJSON(raw)
	if !ok {
		pct, observed, ok = a.parseFragment(raw)
	}
	if !ok || pct == nil {
		// Unlike fundgz there is no explicit no-data marker here; a
		// payload without a percent value is a shape mismatch.
		return nil, provider.NewParse(ProviderID, "payload missing intraday percent", raw)
	}

	return &provider.CandidateQuote{
		Provider:   ProviderID,
		PctChange:  pct,
		ObservedAt: observed,
		Meta: map[string]string{
			"provider": ProviderID,
			"raw_text": provider.Snippet(raw),
		},
		SourceURL: url,
	}, nil
}

// parseJSON handles the object-shaped responses.
func (a *Adapter) parseJSON(raw string) (*float64, time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, time.Time{}, false
	}
	var payload valuationPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, time.Time{}, false
	}

	var pct *float64
	for _, field := range []json.RawMessage{payload.Gszzl, payload.Gzzl, payload.EstimateRate, payload.EstimateRate2} {
		if v, ok := parsePercent(field); ok {
			pct = &v
			break
		}
	}

	value := payload.Gztime
	if value == "" {
		value = payload.Time
	}
	return pct, parseValuationTime(value, a.loc), true
}

// parseFragment handles HTML pages embedding the valuation fields.
func (a *Adapter) parseFragment(raw string) (*float64, time.Time, bool) {
	var pct *float64
	for _, re := range pctPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				pct = &v
			}
			break
		}
	}
	if pct == nil {
		return nil, time.Time{}, false
	}

	var observed time.Time
	for _, re := range timePatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			observed = parseValuationTime(m[1], a.loc)
			break
		}
	}
	return pct, observed, true
}

// parsePercent accepts the value either as a JSON string or a bare number.
func parsePercent(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	s := string(raw)
	var unquoted string
	if err := json.Unmarshal(raw, &unquoted); err == nil {
		s = unquoted
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseValuationTime(value string, loc *time.Location) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
