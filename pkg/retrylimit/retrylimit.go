// Package retrylimit provides adaptive rate limiting and retry with
// exponential backoff for outbound lookups. The limiter speeds up while
// requests succeed and backs off when they fail, so a flaky upstream is
// probed gently instead of hammered.
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20)
//	err := retrylimit.WithRetry(ctx, func() error { return lookup() }, lim)
package retrylimit

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxAttempts  = 3
	initialDelay = 500 * time.Millisecond
	maxDelay     = 10 * time.Second
	cooldown     = 10 * time.Second
)

// AdaptiveLimiter manages a rate limit that adjusts based on request
// outcomes. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, never going below min or above max.
func NewAdaptiveLimiter(initial, min, max rate.Limit) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if min < 1 {
		min = 1
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, int(initial)),
		minLimit: min,
		maxLimit: max,
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success nudges the rate up, once the last failure is far enough behind.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > cooldown {
		a.setLimit(a.limiter.Limit() + 1)
	}
}

// Failure halves the rate.
func (a *AdaptiveLimiter) Failure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.setLimit(a.limiter.Limit() / 2)
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(limit rate.Limit) {
	if limit > a.maxLimit {
		limit = a.maxLimit
	} else if limit < a.minLimit {
		limit = a.minLimit
	}
	if limit != a.limiter.Limit() {
		a.limiter.SetLimit(limit)
		if int(limit) > 0 {
			a.limiter.SetBurst(int(limit))
		}
	}
}

// FatalError wraps errors that should stop retries immediately, such as a
// lookup for a resource that does not exist.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as non-retryable. A nil err returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// WithRetry executes fn with exponential backoff, honoring lim between
// attempts. It stops when fn succeeds, fn returns a FatalError, the context
// is cancelled, or the attempt budget runs out. lim may be nil.
func WithRetry(ctx context.Context, fn func() error, lim *AdaptiveLimiter) error {
	delay := initialDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}
		lastErr = err

		if fatal, ok := err.(*FatalError); ok {
			return fatal.Err
		}

		if lim != nil {
			lim.Failure()
			log.Printf("[Retry] Attempt %d failed: %v. Limiter at %.2f rps", attempt, err, lim.CurrentLimit())
		}

		// jittered exponential backoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + time.Duration(rand.Int63n(int64(delay/4)+1))):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", maxAttempts, lastErr)
}
