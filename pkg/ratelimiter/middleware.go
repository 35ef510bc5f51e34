package ratelimiter

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/journalkit/handler"
	"github.com/dmitrymomot/journalkit/pkg/clientip"
	"github.com/dmitrymomot/journalkit/pkg/logger"
)

// KeyFunc derives the bucket key for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by the address stored by clientip.Middleware,
// falling back to the connection address.
func ByClientIP(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.FromRequest(r, false)
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	key KeyFunc
	log *slog.Logger
}

// WithKeyFunc replaces ByClientIP.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.key = fn
		}
	}
}

// WithLogger sets the logger for store failures.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// Middleware rejects requests over the limit with a JSON 429 and
// Retry-After. Store failures let the request through.
func Middleware(l *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if l == nil {
		panic("ratelimiter: limiter is required")
	}
	cfg := middlewareConfig{key: ByClientIP, log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), key)
			if err != nil {
				cfg.log.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					logger.Error(err),
					logger.Component("ratelimiter"),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if res.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(res.RetryAfter().Seconds()))
			resp := handler.JSONError(
				handler.NewHTTPError(http.StatusTooManyRequests, "rate_limited"),
				handler.WithHeader("Retry-After", strconv.Itoa(max(retryAfter, 1))),
			)
			if err := resp.Render(w, r); err != nil {
				cfg.log.ErrorContext(r.Context(), "failed to render rate limit response", logger.Error(err))
			}
		})
	}
}
