// Package fundgz fetches intraday fund estimates from the public
// fundgz.1234567.com.cn endpoint. The payload is a JSONP callback wrapping a
// JSON literal; unknown codes answer with an empty callback, which is a valid
// "no data" response, not an error.
package fundgz

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
const ProviderID = "fundgz"

// DefaultBaseURL is the production endpoint.
const DefaultBaseURL = "http://fundgz.1234567.com.cn"

// estimatePayload is the expected shape of the callback body. Anything that
// does not decode into it is a parse failure, never a best-effort value.
type estimatePayload struct {
	FundCode  string `json:"fundcode"`
	Name      string `json:"name"`
	NavDate   string `json:"jzrq"`
	NavValue  string `json:"dwjz"`
	Estimate  string `json:"gsz"`
	PctChange string `json:"gszzl"`
	EstTime   string `json:"gztime"`
}

var callbackRe = regexp.MustCompile(`^jsonpgz\((.*)\);?$`)

// Adapter fetches and parses fundgz estimates.
type Adapter struct {
	baseURL string
	loc     *time.Location
	client  *resty.Client

	// nowMillis feeds the rt cache-busting parameter; overridable in tests.
	nowMillis func() int64
}

// New creates a fundgz adapter. Source timestamps carry no zone of their own
// and are interpreted in loc.
func New(baseURL string, loc *time.Location) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		loc:       loc,
		client:    provider.NewHTTPClient(baseURL),
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return ProviderID }

// URL returns the auditable request URL for a code, without the rt
// cache-busting parameter the live fetch appends.
func (a *Adapter) URL(code string) string {
	return fmt.Sprintf("%s/js/%s.js", a.baseURL, code)
}

// Fetch retrieves the current estimate for one fund code.
func (a *Adapter) Fetch(ctx context.Context, code string) (*provider.CandidateQuote, error) {
	if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.APIFundgz); err != nil {
		return nil, provider.AsFailure(ProviderID, err)
	}

	url := a.URL(code) + "?rt=" + strconv.FormatInt(a.nowMillis(), 10)
	resp, err := a.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, provider.AsFailure(ProviderID, err)
	}
	if !resp.IsSuccess() {
		return nil, provider.NewHTTPStatus(ProviderID, resp.StatusCode())
	}

	quote, err := a.parse(resp.String(), code, url)
	if err != nil {
		return nil, err
	}
	slog.Debug("fundgz fetch complete", "code", code, "has_value", quote.PctChange != nil)
	return quote, nil
}

func (a *Adapter) parse(raw, code, url string) (*provider.CandidateQuote, error) {
	m := callbackRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, provider.NewParse(ProviderID, "response is not a jsonpgz callback", raw)
	}

	body := strings.TrimSpace(m[1])
	if body == "" {
		// Empty callback: the source knows the code has no estimate.
		return &provider.CandidateQuote{
			Provider:  ProviderID,
			Meta:      map[string]string{"provider": ProviderID, "raw_text": provider.Snippet(raw)},
			SourceURL: url,
		}, nil
	}

	var payload estimatePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, provider.NewParse(ProviderID, "callback body is not the estimate shape", raw)
	}
	if payload.FundCode == "" {
		return nil, provider.NewParse(ProviderID, "payload missing fundcode", raw)
	}

	quote := &provider.CandidateQuote{
		Provider: ProviderID,
		Meta: map[string]string{
			"provider": ProviderID,
			"gztime":   payload.EstTime,
			"est_date": payload.NavDate,
			"raw_text": provider.Snippet(raw),
		},
		SourceURL: url,
	}

	if payload.PctChange != "" {
		pct, err := strconv.ParseFloat(payload.PctChange, 64)
		if err != nil {
			return nil, provider.NewParse(ProviderID, fmt.Sprintf("bad gszzl value %q", payload.PctChange), raw)
		}
		quote.PctChange = &pct

		observed, err := parseEstTime(payload.EstTime, a.loc)
		if err != nil {
			return nil, provider.NewParse(ProviderID, fmt.Sprintf("bad gztime value %q", payload.EstTime), raw)
		}
		quote.ObservedAt = observed
	}

	return quote, nil
}

func parseEstTime(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
