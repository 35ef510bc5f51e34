package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenAuthenticator accepts HS256 JWTs whose subject is the user ID, read
// from the Authorization bearer header or, failing that, a session cookie.
type TokenAuthenticator struct {
	secret     []byte
	issuer     string
	cookieName string
	leeway     time.Duration
	now        func() time.Time
}

// TokenOption configures a TokenAuthenticator.
type TokenOption func(*TokenAuthenticator)

// WithIssuer requires and stamps the iss claim.
func WithIssuer(iss string) TokenOption {
	return func(a *TokenAuthenticator) { a.issuer = iss }
}

// WithCookieName sets the cookie consulted when no bearer token is sent.
func WithCookieName(name string) TokenOption {
	return func(a *TokenAuthenticator) { a.cookieName = name }
}

// WithLeeway tolerates clock skew when validating exp and nbf.
func WithLeeway(d time.Duration) TokenOption {
	return func(a *TokenAuthenticator) { a.leeway = d }
}

// WithClock overrides time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(a *TokenAuthenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewTokenAuthenticator returns ErrMissingSecret for an empty secret.
func NewTokenAuthenticator(secret string, opts ...TokenOption) (*TokenAuthenticator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	a := &TokenAuthenticator{
		secret:     []byte(secret),
		cookieName: DefaultCookieName,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue signs a token for userID valid for ttl.
func (a *TokenAuthenticator) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidToken)
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (a *TokenAuthenticator) CurrentUser(r *http.Request) (uuid.UUID, error) {
	raw := bearerToken(r)
	if raw == "" {
		if c, err := r.Cookie(a.cookieName); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, errors.Join(ErrUnauthenticated, ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, errors.Join(ErrUnauthenticated, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken))
	}
	return userID, nil
}

// SignOut expires the session cookie. Bearer tokens are stateless and simply age out.
func (a *TokenAuthenticator) SignOut(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
