package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/journalkit/handler"
	"github.com/dmitrymomot/journalkit/pkg/auth"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

// DefaultMaxWebhookBody bounds webhook payloads read into memory.
const DefaultMaxWebhookBody = 1 << 20

// Module serves the billing and entitlement endpoints.
type Module struct {
	svc            subscription.Service
	authn          auth.Authenticator
	log            *slog.Logger
	errs           handler.ErrorHandler[handler.Context]
	maxWebhookBody int64
	now            func() time.Time
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock sets the time source used for trial start dates.
func WithClock(now func() time.Time) Option {
	return func(m *Module) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMaxWebhookBody overrides DefaultMaxWebhookBody.
func WithMaxWebhookBody(n int64) Option {
	return func(m *Module) {
		if n > 0 {
			m.maxWebhookBody = n
		}
	}
}

// New creates the billing module. Panics if svc or authn is nil.
func New(svc subscription.Service, authn auth.Authenticator, opts ...Option) *Module {
	if svc == nil {
		panic("billing: subscription service is required")
	}
	if authn == nil {
		panic("billing: authenticator is required")
	}

	m := &Module{
		svc:            svc,
		authn:          authn,
		log:            slog.Default(),
		maxWebhookBody: DefaultMaxWebhookBody,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.errs = handler.NewErrorHandler(m.log, mapError)
	return m
}

// Handle returns the module routes:
//
//	POST /webhooks/{provider}
//	GET  /plans/requirements
//	GET  /subscription/status
//	GET  /subscription/features
//	POST /subscription/trial
//	POST /subscription/verify-session
//	POST /auth/sign-out
//
// Webhook and plan routes are public; the rest require a user.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhooks/{provider}", handler.Wrap(m.webhook,
		handler.WithBinders[handler.Context, webhookRequest](m.bindWebhook),
		handler.WithErrorHandler[handler.Context, webhookRequest](m.errs),
	))
	r.Get("/plans/requirements", handler.Wrap(m.requirements,
		handler.WithErrorHandler[handler.Context, struct{}](m.errs),
	))

	r.Route("/subscription", func(r chi.Router) {
		r.Use(auth.Middleware(m.authn, m.unauthenticated))

		r.Get("/status", handler.Wrap(m.status,
			handler.WithErrorHandler[handler.Context, struct{}](m.errs),
		))
		r.Get("/features", handler.Wrap(m.features,
			handler.WithErrorHandler[handler.Context, struct{}](m.errs),
		))
		r.Post("/trial", handler.Wrap(m.startTrial,
			handler.WithErrorHandler[handler.Context, struct{}](m.errs),
		))
		r.Post("/verify-session", handler.Wrap(m.verifySession,
			handler.WithBinders[handler.Context, verifySessionRequest](m.bindVerifySession),
			handler.WithErrorHandler[handler.Context, verifySessionRequest](m.errs),
		))
	})

	r.With(auth.Middleware(m.authn, m.unauthenticated)).Post("/auth/sign-out", handler.Wrap(m.signOut,
		handler.WithErrorHandler[handler.Context, struct{}](m.errs),
	))

	return r
}

func (m *Module) unauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	m.errs(handler.NewContext(w, r), err)
}
