package subscription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// Provider is a payment provider integration.
// Implementations verify signatures before parsing anything and translate
// provider payloads into normalized events. They hold no subscription state.
type Provider interface {
	Name() ProviderName

	// ParseWebhook verifies the signature carried in header and parses payload.
	// Returns ErrSignatureInvalid, ErrMalformedPayload or ErrConfigMissing on failure.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error)

	// RetrieveCheckout fetches a checkout session from the provider API.
	// Network and 5xx failures are reported as ErrProviderUnavailable.
	RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// WebhookEvent is a verified, normalized provider event.
type WebhookEvent struct {
	ID            string       // Provider event ID, or a body digest when the provider sends none
	Provider      ProviderName // Set by the provider implementation
	Type          EventType    // Normalized event type
	ProviderEvent string       // Original provider event name

	UserID         string // Our user ID from checkout metadata, when present
	CustomerID     string // Provider's customer ID
	SubscriptionID string // Provider's subscription ID
	SessionID      string // Checkout session / order / transaction ID
	PriceID        string // Price, variant or plan ID used for plan lookup

	Status            string // Raw provider subscription status
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	OccurredAt        time.Time
}

// IdempotencyKey scopes the event ID by provider.
func (e *WebhookEvent) IdempotencyKey() string {
	return string(e.Provider) + ":" + e.ID
}

// CheckoutSession is the provider's view of a completed or pending checkout.
type CheckoutSession struct {
	ID               string
	Paid             bool
	UserID           string
	CustomerID       string
	SubscriptionID   string
	PriceID          string
	CurrentPeriodEnd *time.Time
}

// statusAction is the lifecycle effect of a raw provider subscription status.
type statusAction int

const (
	actionNone statusAction = iota
	actionActivate
	actionCancel
	actionExpire
)

// classifyStatus maps provider subscription statuses onto lifecycle actions.
// past_due keeps access while the provider retries payment; unpaid and the
// various expired statuses revoke it. Unknown statuses change nothing.
func classifyStatus(raw string) statusAction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "trialing", "on_trial", "past_due", "paid", "completed", "no_payment_required":
		return actionActivate
	case "canceled", "cancelled":
		return actionCancel
	case "expired", "unpaid", "incomplete_expired", "paused":
		return actionExpire
	default:
		return actionNone
	}
}

// bodyDigest derives a stable event ID for providers that don't send one.
func bodyDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func parseTimePtr(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
