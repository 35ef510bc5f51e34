package subscription

import "errors"

var (
	// Webhook verification. None of these reach business logic.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrConfigMissing    = errors.New("billing provider is not configured")

	ErrUnknownProvider     = errors.New("unknown billing provider")
	ErrUnknownEventType    = errors.New("unknown billing event type")
	ErrUnknownPlanMapping  = errors.New("price id is not mapped to a plan")
	ErrProviderUnavailable = errors.New("billing provider API unavailable")
	ErrInvalidPriceTable   = errors.New("invalid price table configuration")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrVersionConflict           = errors.New("subscription was modified concurrently")
	ErrInvalidTransition         = errors.New("invalid subscription status transition")

	// Interactive status checks. Recoverable: the caller should retry.
	ErrStatusUnavailable = errors.New("subscription status temporarily unavailable")

	ErrSessionNotFound = errors.New("checkout session not found")
	ErrSessionMismatch = errors.New("checkout session belongs to another user")
	ErrCheckoutNotPaid = errors.New("checkout session is not paid")
	ErrMissingUserID   = errors.New("user ID is required")
)

// errUnmatched marks an event that names no known user. Its idempotency claim is released.
var errUnmatched = errors.New("webhook event does not match any user")
