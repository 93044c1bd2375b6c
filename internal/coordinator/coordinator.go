// Package coordinator fans a refresh out across all enabled products and
// assembles the results back into configured order.
package coordinator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"fundboard/internal/product"
	"fundboard/internal/resolver"
)

// ErrNoProducts is returned when a refresh is requested with no enabled
// descriptors. This is the only caller-visible fault; every per-product
// problem surfaces as a ResultRecord status instead.
var ErrNoProducts = errors.New("no enabled products to refresh")

// Coordinator runs the fallback resolver concurrently across products.
// Each refresh is a clean snapshot: the coordinator keeps no state between
// invocations.
type Coordinator struct {
	resolver *resolver.Resolver
}

// New creates a Coordinator over the given resolver.
func New(r *resolver.Resolver) *Coordinator {
	return &Coordinator{resolver: r}
}

// Refresh resolves every enabled descriptor concurrently and returns one
// ResultRecord per enabled product, ordered by descriptor order rather than
// completion order. One product's slowness or failure never blocks or
// corrupts another's result; ctx bounds the refresh as a whole.
func (c *Coordinator) Refresh(ctx context.Context, descriptors []product.Descriptor, now time.Time) ([]resolver.ResultRecord, error) {
	enabled := make([]product.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoProducts
	}

	// Index-addressed slots keep output order independent of completion
	// order; no slot is shared between tasks.
	results := make([]resolver.ResultRecord, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range enabled {
		g.Go(func() error {
			results[i] = c.resolver.Resolve(gctx, d, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
