package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundboard/internal/aniu"
	"fundboard/internal/coordinator"
	"fundboard/internal/fundgz"
	"fundboard/internal/product"
	"fundboard/internal/provider"
	"fundboard/internal/resolver"
	"fundboard/internal/staleness"
)

// TestIntegration_RefreshWithFallback drives the full engine through both
// real adapters against mock HTTP servers: three products, fundgz hangs for
// the first one and serves fresh estimates for the other two, aniu backs the
// first product up.
func TestIntegration_RefreshWithFallback(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) // Tuesday, mid-session

	fundgzServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/js/000001.js":
			// Slow enough to trip the per-attempt timeout.
			time.Sleep(2 * time.Second)
		case "/js/008888.js":
			w.Write([]byte(`jsonpgz({"fundcode":"008888","name":"Growth Mix","jzrq":"2025-06-09","gszzl":"0.64","gztime":"2025-06-10 09:59"});`))
		case "/js/510300.js":
			w.Write([]byte(`jsonpgz({"fundcode":"510300","name":"CSI 300 ETF","jzrq":"2025-06-09","gszzl":"-0.21","gztime":"2025-06-10 09:58"});`))
		default:
			w.Write([]byte(`jsonpgz();`))
		}
	}))
	defer fundgzServer.Close()

	aniuServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"gszzl":"1.10","gztime":"2025-06-10 09:59"}`))
	}))
	defer aniuServer.Close()

	clock := staleness.Default(time.UTC)
	registry := provider.NewRegistry(
		fundgz.New(fundgzServer.URL, time.UTC),
		aniu.New(aniuServer.URL, time.UTC),
	)
	coord := coordinator.New(resolver.New(registry, clock))

	descriptor := func(code, name string) product.Descriptor {
		return product.Descriptor{
			Code:      code,
			Name:      name,
			Kind:      "OTC",
			Providers: []string{"fundgz", "aniu"},
			StaleRule: staleness.RuleAuto,
			Timeout:   200 * time.Millisecond,
			Enabled:   true,
		}
	}

	descriptors := []product.Descriptor{
		descriptor("000001", "Flagship"),
		descriptor("008888", "Growth Mix"),
		descriptor("510300", "CSI 300 ETF"),
	}

	records, err := coord.Refresh(context.Background(), descriptors, now)
	if err != nil {
		t.Fatalf("Refresh() returned unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Refresh() returned %d records, want 3", len(records))
	}

	// Output preserves descriptor order regardless of completion order.
	for i, want := range []string{"000001", "008888", "510300"} {
		if records[i].Code != want {
			t.Errorf("records[%d].Code = %q, want %q", i, records[i].Code, want)
		}
	}

	// Product 1: fundgz timed out, aniu supplied the fresh value.
	first := records[0]
	if first.Status != resolver.StatusOK {
		t.Errorf("records[0].Status = %q, want ok via fallback", first.Status)
	}
	if first.Provider != "aniu" {
		t.Errorf("records[0].Provider = %q, want aniu", first.Provider)
	}
	if first.IntradayPct == nil || *first.IntradayPct != 1.10 {
		t.Errorf("records[0].IntradayPct = %v, want 1.10", first.IntradayPct)
	}

	// Products 2-3: fundgz answered fresh, aniu never needed.
	for i, wantPct := range map[int]float64{1: 0.64, 2: -0.21} {
		rec := records[i]
		if rec.Status != resolver.StatusOK {
			t.Errorf("records[%d].Status = %q, want ok", i, rec.Status)
		}
		if rec.Provider != "fundgz" {
			t.Errorf("records[%d].Provider = %q, want fundgz", i, rec.Provider)
		}
		if rec.IntradayPct == nil || *rec.IntradayPct != wantPct {
			t.Errorf("records[%d].IntradayPct = %v, want %v", i, rec.IntradayPct, wantPct)
		}
	}
}

// TestIntegration_StaleFallsBackToNA verifies a refresh where every source
// answers with yesterday's data.
func TestIntegration_StaleFallsBackToNA(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	fundgzServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`jsonpgz({"fundcode":"008888","name":"Growth Mix","jzrq":"2025-06-06","gszzl":"0.64","gztime":"2025-06-09 15:00"});`))
	}))
	defer fundgzServer.Close()

	aniuServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"gszzl":"0.70","gztime":"2025-06-09 15:00"}`))
	}))
	defer aniuServer.Close()

	registry := provider.NewRegistry(
		fundgz.New(fundgzServer.URL, time.UTC),
		aniu.New(aniuServer.URL, time.UTC),
	)
	coord := coordinator.New(resolver.New(registry, staleness.Default(time.UTC)))

	records, err := coord.Refresh(context.Background(), []product.Descriptor{{
		Code:      "008888",
		Name:      "Growth Mix",
		Kind:      "OTC",
		Providers: []string{"fundgz", "aniu"},
		StaleRule: staleness.RuleAuto,
		Timeout:   time.Second,
		Enabled:   true,
	}}, now)
	if err != nil {
		t.Fatalf("Refresh() returned unexpected error: %v", err)
	}

	rec := records[0]
	if rec.Status != resolver.StatusNA {
		t.Fatalf("Status = %q, want na when only stale values exist", rec.Status)
	}
	// First provider in configured order wins the degraded slot.
	if rec.Provider != "fundgz" {
		t.Errorf("Provider = %q, want fundgz", rec.Provider)
	}
	if rec.IntradayPct == nil || *rec.IntradayPct != 0.64 {
		t.Errorf("IntradayPct = %v, want 0.64", rec.IntradayPct)
	}
	if rec.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty for na", rec.ErrorMessage)
	}
}
