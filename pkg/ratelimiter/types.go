package ratelimiter

import "time"

// Config describes a token bucket. Env tags let it load straight from the
// environment via pkg/config.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`       // burst size
	RefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"60"`    // tokens added per interval
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1m"`
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return errorf(ErrInvalidConfig, "capacity must be positive, got %d", c.Capacity)
	case c.RefillRate <= 0:
		return errorf(ErrInvalidConfig, "refill rate must be positive, got %d", c.RefillRate)
	case c.RefillInterval <= 0:
		return errorf(ErrInvalidConfig, "refill interval must be positive, got %v", c.RefillInterval)
	}
	return nil
}

// Result is the outcome of one Allow call.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative when the request was denied
	ResetAt   time.Time // next refill
	now       time.Time
}

// Allowed reports whether the tokens were granted.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is zero for allowed requests, otherwise the wait until the next refill.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(r.ResetAt.Sub(r.now), 0)
}
