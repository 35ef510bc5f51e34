package subscription

// Status is the lifecycle state of a user's subscription record.
type Status string

const (
	// StatusNone marks the absence of a record. It is never persisted.
	StatusNone      Status = "none"
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Name implements statemachine.State.
func (s Status) Name() string {
	return string(s)
}

// Valid reports whether s can be persisted.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// ProviderName identifies a payment provider.
type ProviderName string

const (
	ProviderStripe       ProviderName = "stripe"
	ProviderLemonSqueezy ProviderName = "lemonsqueezy"
	ProviderPaddle       ProviderName = "paddle"
)

func (p ProviderName) String() string {
	return string(p)
}

// EventType is the normalized billing event type.
// Each provider maps its own event names onto these.
type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout_completed"
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventSubscriptionExpired   EventType = "subscription_expired"

	// EventUnknown is acknowledged and ignored.
	EventUnknown EventType = "unknown"
)

// Outcome describes what happened to a delivered webhook event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // state changed
	OutcomeUnchanged Outcome = "unchanged" // valid event, nothing to change
	OutcomeIgnored   Outcome = "ignored"   // unknown type or uncorrelated user
	OutcomeUnmapped  Outcome = "unmapped"  // price id not in the price table
	OutcomeRejected  Outcome = "rejected"  // transition not allowed from the current status
	OutcomeDuplicate Outcome = "duplicate" // event id already processed
	OutcomeInvalid   Outcome = "invalid"   // signature or payload rejected
	OutcomeFailed    Outcome = "failed"
)
