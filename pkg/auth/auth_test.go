package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/pkg/auth"
)

const secret = "test-signing-secret"

func fixedClock() func() time.Time {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestTokenAuthenticator(t *testing.T) {
	t.Parallel()

	a, err := auth.NewTokenAuthenticator(secret, auth.WithIssuer("journalkit"), auth.WithClock(fixedClock()))
	require.NoError(t, err)
	userID := uuid.New()

	t.Run("bearer token round trip", func(t *testing.T) {
		t.Parallel()
		token, err := a.Issue(userID, time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		got, err := a.CurrentUser(r)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		t.Parallel()
		token, err := a.Issue(userID, time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})

		got, err := a.CurrentUser(r)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()
		_, err := a.CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		token, err := a.Issue(userID, -time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = a.CurrentUser(r)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		other, err := auth.NewTokenAuthenticator("another-secret", auth.WithIssuer("journalkit"), auth.WithClock(fixedClock()))
		require.NoError(t, err)
		token, err := other.Issue(userID, time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = a.CurrentUser(r)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()
		other, err := auth.NewTokenAuthenticator(secret, auth.WithIssuer("someone-else"), auth.WithClock(fixedClock()))
		require.NoError(t, err)
		token, err := other.Issue(userID, time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = a.CurrentUser(r)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("non uuid subject", func(t *testing.T) {
		t.Parallel()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "journalkit",
			ExpiresAt: jwt.NewNumericDate(fixedClock()().Add(time.Hour)),
		}).SignedString([]byte(secret))
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = a.CurrentUser(r)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("rejects alg none", func(t *testing.T) {
		t.Parallel()
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "journalkit",
			ExpiresAt: jwt.NewNumericDate(fixedClock()().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = a.CurrentUser(r)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("sign out expires the cookie", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		require.NoError(t, a.SignOut(rec, httptest.NewRequest(http.MethodPost, "/", nil)))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, auth.DefaultCookieName, cookies[0].Name)
		assert.Negative(t, cookies[0].MaxAge)
	})
}

func TestNewTokenAuthenticator_MissingSecret(t *testing.T) {
	t.Parallel()

	_, err := auth.NewTokenAuthenticator("")
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestHeaderAuthenticator(t *testing.T) {
	t.Parallel()

	a := auth.NewHeaderAuthenticator("")
	userID := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("x-user-id", userID.String())
	got, err := a.CurrentUser(r)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	r.Header.Set(auth.DefaultUserHeader, "not-a-uuid")
	_, err = a.CurrentUser(r)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = a.CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	assert.NoError(t, a.SignOut(httptest.NewRecorder(), r))
}

func TestConfig_Authenticator(t *testing.T) {
	t.Parallel()

	a, err := auth.Config{Mode: auth.ModeToken, JWTSecret: secret}.Authenticator()
	require.NoError(t, err)
	assert.IsType(t, &auth.TokenAuthenticator{}, a)

	a, err = auth.Config{Mode: auth.ModeHeader}.Authenticator()
	require.NoError(t, err)
	assert.IsType(t, &auth.HeaderAuthenticator{}, a)

	_, err = auth.Config{Mode: auth.ModeToken}.Authenticator()
	assert.ErrorIs(t, err, auth.ErrMissingSecret)

	_, err = auth.Config{Mode: "oauth"}.Authenticator()
	assert.ErrorIs(t, err, auth.ErrUnknownMode)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	var seen uuid.UUID
	h := auth.Middleware(auth.NewHeaderAuthenticator(""), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserFromContext(r.Context())
		require.True(t, ok)
		seen = id
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(auth.DefaultUserHeader, userID.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Panics(t, func() { auth.Middleware(nil, nil) })
}
