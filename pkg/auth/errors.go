package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: request is not authenticated")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrMissingSecret   = errors.New("auth: signing secret is required")
	ErrUnknownMode     = errors.New("auth: unknown authenticator mode")
)
