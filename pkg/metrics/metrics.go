// Package metrics exports billing telemetry to Prometheus.
//
// Metrics implements subscription.Observer, so passing it to
// subscription.WithObserver is enough to count webhook outcomes, status
// checks and provider calls. Middleware and Handler cover the HTTP side.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

const namespace = "journalkit"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	webhooks         *prometheus.CounterVec
	statusChecks     *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

var _ subscription.Observer = (*Metrics)(nil)

// New registers the collectors on reg. Passing nil creates a private registry,
// which keeps parallel tests from colliding on the default one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by provider, normalized event type and outcome.",
		}, []string{"provider", "event", "outcome"}),
		statusChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "status_checks_total",
			Help:      "Subscription status checks by resulting status.",
		}, []string{"status", "result"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "provider_calls_total",
			Help:      "Outbound provider API calls.",
		}, []string{"provider", "operation", "result"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "provider_call_duration_seconds",
			Help:      "Outbound provider API call latency.",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"provider", "operation"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path", "status"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
	}
}

func (m *Metrics) WebhookHandled(provider subscription.ProviderName, event subscription.EventType, outcome subscription.Outcome) {
	m.webhooks.WithLabelValues(string(provider), string(event), string(outcome)).Inc()
}

func (m *Metrics) StatusChecked(status subscription.Status, err error) {
	m.statusChecks.WithLabelValues(string(status), result(err)).Inc()
}

func (m *Metrics) ProviderCalled(provider subscription.ProviderName, operation string, d time.Duration, err error) {
	m.providerCalls.WithLabelValues(string(provider), operation, result(err)).Inc()
	m.providerDuration.WithLabelValues(string(provider), operation).Observe(d.Seconds())
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, subscription.ErrSubscriptionNotFound), errors.Is(err, subscription.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, subscription.ErrProviderUnavailable), errors.Is(err, subscription.ErrStatusUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by the chi route pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(rec.status)
		m.httpRequests.WithLabelValues(r.Method, route, status).Inc()
		m.httpDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
