package webhook

import "errors"

// Errors returned by signature helpers. Callers map them onto their own
// taxonomy: ErrMissingSecret is a server misconfiguration, ErrMalformedHeader
// and ErrInvalidPayload are client errors, the rest are authentication failures.
var (
	ErrMissingSecret       = errors.New("webhook signing secret is not configured")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
	ErrMalformedHeader     = errors.New("malformed webhook signature header")
	ErrSignatureMismatch   = errors.New("webhook signature mismatch")
	ErrTimestampOutOfRange = errors.New("webhook signature timestamp outside tolerance")
)
