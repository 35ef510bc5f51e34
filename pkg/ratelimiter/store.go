package ratelimiter

import (
	"context"
	"time"
)

// Store keeps bucket state. Implementations must be safe for concurrent use
// and must not deduct tokens for a denied request.
type Store interface {
	// Take refills the bucket up to now and takes n tokens if available.
	// remaining is negative when fewer than n tokens were left.
	Take(ctx context.Context, key string, n int, cfg Config, now time.Time) (remaining int, resetAt time.Time, err error)

	// Reset drops the bucket for key.
	Reset(ctx context.Context, key string) error
}

// refill computes the bucket after the intervals elapsed since last.
// last advances by whole intervals so partial intervals are not lost.
func refill(tokens int, last time.Time, cfg Config, now time.Time) (int, time.Time) {
	if now.Before(last) {
		return tokens, last
	}
	intervals := int64(now.Sub(last) / cfg.RefillInterval)
	if intervals <= 0 {
		return tokens, last
	}
	// enough intervals to fill the bucket from empty
	full := int64(cfg.Capacity/cfg.RefillRate + 1)
	if intervals >= full {
		return cfg.Capacity, last.Add(time.Duration(intervals) * cfg.RefillInterval)
	}
	return min(tokens+int(intervals)*cfg.RefillRate, cfg.Capacity), last.Add(time.Duration(intervals) * cfg.RefillInterval)
}
