package billing

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/journalkit/pkg/clientip"
	"github.com/dmitrymomot/journalkit/pkg/httpserver"
	"github.com/dmitrymomot/journalkit/pkg/metrics"
	"github.com/dmitrymomot/journalkit/pkg/ratelimiter"
	"github.com/dmitrymomot/journalkit/pkg/requestid"
)

// Mountable is anything that serves a sub-tree of routes.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures the root router. Only Billing is required.
type RouterOptions struct {
	Billing          Mountable
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
	Checks           []httpserver.Check
	ReadinessTimeout time.Duration

	// RateLimiter throttles billing routes per client address.
	// Webhooks, health probes and /metrics are never limited.
	RateLimiter *ratelimiter.Limiter
	// TrustProxy makes client address resolution honor proxy headers.
	TrustProxy bool
}

// Router assembles the service. Request IDs, client addresses and panic
// recovery apply to every route; the optional rate limiter only to the
// user-facing billing routes. Provider webhooks bypass it.
//
//	mod := billing.New(svc, authn, billing.WithLogger(log))
//	r := billing.Router(billing.RouterOptions{
//	    Billing: mod,
//	    Metrics: m,
//	    Checks:  []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(pool)}},
//	})
func Router(opts RouterOptions) chi.Router {
	if opts.Billing == nil {
		panic("billing: router requires the billing module")
	}
	if opts.ReadinessTimeout <= 0 {
		opts.ReadinessTimeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware(opts.TrustProxy))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(opts.Logger, opts.ReadinessTimeout, opts.Checks...))

	routes := opts.Billing.Handle()
	if opts.RateLimiter != nil {
		routes = exceptWebhooks(routes, ratelimiter.Middleware(opts.RateLimiter, ratelimiter.WithLogger(opts.Logger)))
	}
	r.Mount("/", routes)

	return r
}

// exceptWebhooks applies mw to next for every path outside /webhooks/.
func exceptWebhooks(next http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	wrapped := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/webhooks/") {
			next.ServeHTTP(w, r)
			return
		}
		wrapped.ServeHTTP(w, r)
	})
}
