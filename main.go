package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"fundboard/internal/aniu"
	"fundboard/internal/config"
	"fundboard/internal/coordinator"
	"fundboard/internal/fundgz"
	"fundboard/internal/product"
	"fundboard/internal/provider"
	"fundboard/internal/resolver"
)

func main() {
	jsonOut := flag.Bool("json", false, "emit results as JSON instead of a table")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	clock, err := cfg.Clock()
	if err != nil {
		log.Fatalf("Failed to build session clock: %v", err)
	}

	// Load the product list
	descriptors, err := product.LoadCSV(cfg.ProductsPath, product.Defaults{
		Providers: cfg.DefaultProviders,
		Timeout:   time.Duration(cfg.DefaultTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to load products: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// One adapter per data source
	registry := provider.NewRegistry(
		fundgz.New(cfg.FundgzBaseURL, clock.Location),
		aniu.New(cfg.AniuBaseURL, clock.Location),
	)

	coord := coordinator.New(resolver.New(registry, clock))

	// Bound the whole refresh to prevent hanging indefinitely
	refreshCtx, refreshCancel := context.WithTimeout(ctx, time.Duration(cfg.RefreshTimeoutSeconds)*time.Second)
	defer refreshCancel()

	records, err := coord.Refresh(refreshCtx, descriptors, time.Now().In(clock.Location))
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		return
	}

	printTable(records)
}

func printTable(records []resolver.ResultRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tKIND\tPCT\tSTATUS\tPROVIDER\tAS OF\tNOTE")
	for _, r := range records {
		pct := "-"
		if r.IntradayPct != nil {
			pct = fmt.Sprintf("%+.2f%%", *r.IntradayPct)
		}
		note := r.ErrorMessage
		if note == "" && r.Status == resolver.StatusNA {
			note = r.Meta["stale_reason"]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Code, r.Name, r.Kind, pct, r.Status, r.Provider,
			r.AsOfTime.Format("15:04:05"), note)
	}
	w.Flush()
}
