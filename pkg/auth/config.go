package auth

import (
	"fmt"
	"time"
)

const (
	ModeToken  = "token"
	ModeHeader = "header"

	DefaultCookieName = "journalkit_session"
	DefaultUserHeader = "X-User-ID"
)

// Config selects and configures the Authenticator.
type Config struct {
	Mode       string        `env:"AUTH_MODE" envDefault:"token"`
	JWTSecret  string        `env:"AUTH_JWT_SECRET"`
	JWTIssuer  string        `env:"AUTH_JWT_ISSUER" envDefault:"journalkit"`
	JWTLeeway  time.Duration `env:"AUTH_JWT_LEEWAY" envDefault:"30s"`
	CookieName string        `env:"AUTH_COOKIE_NAME" envDefault:"journalkit_session"`
	UserHeader string        `env:"AUTH_USER_HEADER" envDefault:"X-User-ID"`
}

// Authenticator builds the variant named by Mode.
func (c Config) Authenticator() (Authenticator, error) {
	switch c.Mode {
	case ModeToken, "":
		return NewTokenAuthenticator(c.JWTSecret,
			WithIssuer(c.JWTIssuer),
			WithLeeway(c.JWTLeeway),
			WithCookieName(c.CookieName),
		)
	case ModeHeader:
		return NewHeaderAuthenticator(c.UserHeader), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
}
