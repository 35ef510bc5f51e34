package ratelimiter

import (
	"context"
	"time"
)

// Limiter applies one token bucket Config per key.
type Limiter struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter. Panics if store is nil.
func New(store Store, cfg Config, opts ...LimiterOption) (*Limiter, error) {
	if store == nil {
		panic("ratelimiter: store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l := &Limiter{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow takes one token for key.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN takes n tokens for key. Denied requests do not drain the bucket.
func (l *Limiter) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, errorf(ErrInvalidTokenCount, "got %d", n)
	}
	now := l.now()
	remaining, resetAt, err := l.store.Take(ctx, key, n, l.cfg, now)
	if err != nil {
		return nil, err
	}
	return &Result{Limit: l.cfg.Capacity, Remaining: remaining, ResetAt: resetAt, now: now}, nil
}

// Reset clears the bucket for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
