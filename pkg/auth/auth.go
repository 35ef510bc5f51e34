package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Authenticator identifies the user behind a request.
// Implementations are chosen once at construction; handlers only see this interface.
type Authenticator interface {
	// CurrentUser returns the authenticated user or ErrUnauthenticated.
	CurrentUser(r *http.Request) (uuid.UUID, error)

	// SignOut discards whatever credential the authenticator issued.
	SignOut(w http.ResponseWriter, r *http.Request) error
}

type contextKey struct{}

// WithUser stores the user ID in ctx.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFromContext returns the user stored by Middleware.
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// Middleware resolves the user once per request and stores it in the context.
// Requests without a valid identity are passed to onError, which defaults to a plain 401.
func Middleware(a Authenticator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	if a == nil {
		panic("auth: authenticator is required")
	}
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := a.CurrentUser(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}
