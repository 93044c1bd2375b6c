package fundgz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundboard/internal/provider"
)

const estimateBody = `jsonpgz({"fundcode":"008888","name":"Growth Mix","jzrq":"2025-06-09","dwjz":"1.1000","gsz":"1.1072","gszzl":"0.64","gztime":"2025-06-10 10:00"});`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, time.UTC)
}

func TestFetch_Success(t *testing.T) {
	var gotPath, gotRT string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRT = r.URL.Query().Get("rt")
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(estimateBody))
	})
	adapter.nowMillis = func() int64 { return 1749549600000 }

	quote, err := adapter.Fetch(context.Background(), "008888")
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}

	if gotPath != "/js/008888.js" {
		t.Errorf("request path = %q, want /js/008888.js", gotPath)
	}
	if gotRT != "1749549600000" {
		t.Errorf("rt param = %q, want cache buster", gotRT)
	}

	if quote.Provider != ProviderID {
		t.Errorf("Provider = %q, want %q", quote.Provider, ProviderID)
	}
	if quote.PctChange == nil || *quote.PctChange != 0.64 {
		t.Errorf("PctChange = %v, want 0.64", quote.PctChange)
	}
	wantObserved := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	if !quote.ObservedAt.Equal(wantObserved) {
		t.Errorf("ObservedAt = %v, want %v", quote.ObservedAt, wantObserved)
	}
	if quote.Meta["est_date"] != "2025-06-09" {
		t.Errorf("Meta[est_date] = %q, want 2025-06-09", quote.Meta["est_date"])
	}
	if !strings.Contains(quote.SourceURL, "/js/008888.js?rt=") {
		t.Errorf("SourceURL = %q, want audit URL with rt param", quote.SourceURL)
	}
}

func TestFetch_NoDataCallback(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`jsonpgz();`))
	})

	quote, err := adapter.Fetch(context.Background(), "999999")
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error for no-data response: %v", err)
	}
	if quote.PctChange != nil {
		t.Errorf("PctChange = %v, want nil for no-data response", quote.PctChange)
	}
	if quote.Meta["raw_text"] == "" {
		t.Error("Meta[raw_text] is empty, want raw payload retained")
	}
}

func TestFetch_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html error page", "<html><body>502 Bad Gateway</body></html>"},
		{"callback with bad json", `jsonpgz({fundcode});`},
		{"missing fundcode", `jsonpgz({"gszzl":"0.64"});`},
		{"non-numeric gszzl", `jsonpgz({"fundcode":"008888","gszzl":"abc","gztime":"2025-06-10 10:00"});`},
		{"bad gztime", `jsonpgz({"fundcode":"008888","gszzl":"0.64","gztime":"today"});`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := adapter.Fetch(context.Background(), "008888")
			var failure *provider.Failure
			if !errors.As(err, &failure) {
				t.Fatalf("Fetch() error = %v, want *provider.Failure", err)
			}
			if failure.Kind != provider.KindParseError {
				t.Errorf("Kind = %q, want %q", failure.Kind, provider.KindParseError)
			}
			if failure.Raw == "" {
				t.Error("Raw is empty, want offending payload retained")
			}
		})
	}
}

func TestFetch_HTTPStatusFailure(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := adapter.Fetch(context.Background(), "008888")
	var failure *provider.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch() error = %v, want *provider.Failure", err)
	}
	if failure.Kind != provider.KindHTTPStatus {
		t.Errorf("Kind = %q, want %q", failure.Kind, provider.KindHTTPStatus)
	}
	if failure.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", failure.StatusCode)
	}
}

func TestFetch_Timeout(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(estimateBody))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := adapter.Fetch(ctx, "008888")
	var failure *provider.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch() error = %v, want *provider.Failure", err)
	}
	if failure.Kind != provider.KindTimeout {
		t.Errorf("Kind = %q, want %q", failure.Kind, provider.KindTimeout)
	}
}

func TestFetch_MissingGztimeLeavesZeroObservedAt(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`jsonpgz({"fundcode":"008888","gszzl":"0.64"});`))
	})

	quote, err := adapter.Fetch(context.Background(), "008888")
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
	if !quote.ObservedAt.IsZero() {
		t.Errorf("ObservedAt = %v, want zero when the payload has no timestamp", quote.ObservedAt)
	}
}

func TestURL_Deterministic(t *testing.T) {
	adapter := New("http://fundgz.example", time.UTC)
	want := "http://fundgz.example/js/008888.js"
	if got := adapter.URL("008888"); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
