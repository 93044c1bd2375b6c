package ratelimit

import (
	"context"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different public quote endpoints we poll.
type API string

const (
	// APIFundgz represents the fundgz.1234567.com.cn JSONP endpoint
	APIFundgz API = "fundgz"
	// APIAniu represents the aniu.com valuation endpoint
	APIAniu API = "aniu"
)

// Limiter manages rate limits for different endpoints
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

var (
	instance *Limiter
	once     sync.Once
)

// GetLimiter returns the singleton rate limiter instance
func GetLimiter() *Limiter {
	once.Do(func() {
		instance = &Limiter{
			limiters: make(map[API]*rate.Limiter),
		}
		instance.initLimiters()
	})
	return instance
}

// initLimiters initializes rate limiters for each endpoint with conservative
// defaults. These are keyless public endpoints; staying polite keeps them
// usable.
func (l *Limiter) initLimiters() {
	// In test mode, use unlimited rate limits to avoid slowing down tests
	if os.Getenv("GO_TESTING") == "1" || isTestMode() {
		l.limiters[APIFundgz] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[APIAniu] = rate.NewLimiter(rate.Inf, 1)
		return
	}

	// fundgz serves static JS snapshots from a CDN; 10 req/s is well below
	// what a single browser tab generates.
	l.limiters[APIFundgz] = rate.NewLimiter(rate.Limit(10), 2)

	// aniu renders valuations server-side; keep it slower.
	l.limiters[APIAniu] = rate.NewLimiter(rate.Limit(4), 1)
}

// isTestMode checks if we're running in test mode
func isTestMode() bool {
	for _, arg := range os.Args {
		if len(arg) > 6 && arg[:6] == "-test." {
			return true
		}
	}
	return false
}

// Wait blocks until the rate limiter permits an event for the given API.
// It returns an error if the context is canceled before the event can proceed.
func (l *Limiter) Wait(ctx context.Context, api API) error {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
