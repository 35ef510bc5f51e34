package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTrialDays sets the trial length applied by StartTrial.
func WithTrialDays(days int) ServiceOption {
	return func(s *service) {
		s.trialDays = days
	}
}

// WithDeduplicator sets the idempotency store used to process each webhook event once.
// Use a shared store (Redis) when running more than one instance.
func WithDeduplicator(d Deduplicator, ttl time.Duration) ServiceOption {
	return func(s *service) {
		if d != nil {
			s.dedup = d
		}
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithObserver registers a telemetry sink.
func WithObserver(o Observer) ServiceOption {
	return func(s *service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMaxRetries bounds optimistic concurrency retries per mutation.
func WithMaxRetries(n int) ServiceOption {
	return func(s *service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}
