package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// errNotFound marks a 4xx lookup failure; providers translate it to ErrSessionNotFound.
var errNotFound = errors.New("provider resource not found")

// apiClient is a small JSON-over-HTTP client shared by providers without an SDK.
// Every call is bounded by a timeout and wrapped in a circuit breaker so a
// failing provider API fails fast instead of tying up webhook workers.
type apiClient struct {
	baseURL   string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[[]byte]
	authorize func(*http.Request)
}

type apiClientConfig struct {
	name      string
	baseURL   string
	timeout   time.Duration
	authorize func(*http.Request)
	client    *http.Client
	logger    *slog.Logger
}

func newAPIClient(cfg apiClientConfig) *apiClient {
	httpClient := cfg.client
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		c := *httpClient
		c.Timeout = cfg.timeout
		httpClient = &c
	}
	log := cfg.logger
	if log == nil {
		log = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cfg.name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Lookups of unknown IDs say nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider circuit breaker state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &apiClient{
		baseURL:   cfg.baseURL,
		http:      httpClient,
		breaker:   breaker,
		authorize: cfg.authorize,
	}
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, path, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return errors.Join(ErrProviderUnavailable, err)
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Join(ErrMalformedPayload, fmt.Errorf("failed to decode provider response: %w", err))
	}
	return nil
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		c.authorize(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: provider rejected API credentials", ErrConfigMissing)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", errNotFound, resp.StatusCode)
	}
	return body, nil
}
