package subscription

import (
	"log/slog"
	"net/http"
	"time"
)

// ProviderOption configures a provider implementation.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func defaultProviderOptions() providerOptions {
	return providerOptions{
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// WithHTTPClient sets the HTTP client used for provider API calls.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(o *providerOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithProviderTimeout bounds every provider API call.
func WithProviderTimeout(d time.Duration) ProviderOption {
	return func(o *providerOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithProviderLogger sets the logger used for provider diagnostics.
func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(o *providerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProviderClock overrides the clock used for signature tolerance checks.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(o *providerOptions) {
		if now != nil {
			o.now = now
		}
	}
}
