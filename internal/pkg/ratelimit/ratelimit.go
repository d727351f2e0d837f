// Package ratelimit implements fixed-window request counting keyed by caller.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store counts hits for a key inside a fixed window. The first hit of a
// window starts it; the count resets once resetAt has passed.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the current window closes, never below one second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limiter admits at most limit hits per key per window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	prefix string
}

func New(store Store, limit int, window time.Duration, prefix string) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Limiter{store: store, limit: limit, window: window, prefix: prefix}, nil
}

func (l *Limiter) Limit() int { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records a hit for key. On a store error the decision allows the
// request and the error is returned so the caller can log it.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.store.Incr(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
