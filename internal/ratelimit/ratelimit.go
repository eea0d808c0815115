package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces out page fetches so a batch does not hammer one site.
type Limiter interface {
	Wait(ctx context.Context) error
}

// SimpleLimiter enforces a jittered minimum delay between actions.
type SimpleLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewSimpleLimiter(minDelay, maxDelay time.Duration) *SimpleLimiter {
	return &SimpleLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (r *SimpleLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleLimiter) calculateDelay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}

// None is a no-op limiter for tests and concurrent mode, where each task
// owns its own browser session.
type None struct{}

func (None) Wait(context.Context) error { return nil }
