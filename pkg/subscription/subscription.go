package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
)

// Subscription is the per-user billing record.
// Each user has at most one, so UserID serves as the primary key.
type Subscription struct {
	UserID uuid.UUID
	Plan   entitlement.Plan
	Status Status

	// TrialEndsAt is required while Status is StatusTrial.
	TrialEndsAt *time.Time

	// Provider correlation, set by the first paid event.
	Provider       ProviderName
	CustomerID     string
	SubscriptionID string

	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool // access is kept until CurrentPeriodEnd

	// LastEventAt is the provider time of the newest webhook event applied.
	// Events older than it are not applied.
	LastEventAt *time.Time

	// Version is the optimistic concurrency token; stores bump it on every update.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTrialing returns true if the subscription is in trial status.
func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrial
}

// IsActive returns true if the subscription is paid and not yet ended.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// TrialExpiredAt reports whether a trial has run out at the given time.
func (s *Subscription) TrialExpiredAt(now time.Time) bool {
	return s.IsTrialing() && s.TrialEndsAt != nil && !now.Before(*s.TrialEndsAt)
}

// PendingCancellation reports whether the subscription is scheduled to end at the period boundary.
func (s *Subscription) PendingCancellation() bool {
	return s.IsActive() && s.CancelAtPeriodEnd
}

// PeriodElapsedAt reports whether a pending cancellation has taken effect at the given time.
func (s *Subscription) PeriodElapsedAt(now time.Time) bool {
	return s.PendingCancellation() && s.CurrentPeriodEnd != nil && !now.Before(*s.CurrentPeriodEnd)
}

// TrialDaysRemainingAt returns whole days left in the trial, rounded up.
// Returns 0 if not in trial or the trial has ended.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if !s.IsTrialing() || s.TrialEndsAt == nil {
		return 0
	}

	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	return int(math.Ceil(remaining.Hours() / 24))
}

// EffectivePlan is the plan that currently drives feature access.
func (s *Subscription) EffectivePlan() entitlement.Plan {
	switch s.Status {
	case StatusTrial:
		return entitlement.PlanTrial
	case StatusActive:
		return s.Plan
	default:
		return entitlement.PlanNone
	}
}

// Clone returns a deep copy so stores never share pointers with callers.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.TrialEndsAt = clonePtr(s.TrialEndsAt)
	c.CurrentPeriodEnd = clonePtr(s.CurrentPeriodEnd)
	c.LastEventAt = clonePtr(s.LastEventAt)
	return &c
}

// StatusView is the client-facing representation of a subscription.
type StatusView struct {
	Status            Status             `json:"status"`
	Plan              entitlement.Plan   `json:"plan"`
	TrialEndsAt       *time.Time         `json:"trialEndsAt,omitempty"`
	DaysLeft          *int               `json:"daysLeft,omitempty"`
	Provider          ProviderName       `json:"provider,omitempty"`
	CustomerID        string             `json:"stripeCustomerId,omitempty"`
	SubscriptionID    string             `json:"stripeSubscriptionId,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *time.Time         `json:"currentPeriodEnd,omitempty"`
	Features          entitlement.Access `json:"features"`
}

// View renders the subscription as seen at the given time.
// Callers are expected to apply lazy transitions first; View does not mutate.
func (s *Subscription) View(now time.Time) *StatusView {
	v := &StatusView{
		Status:            s.Status,
		Plan:              s.EffectivePlan(),
		Provider:          s.Provider,
		CustomerID:        s.CustomerID,
		SubscriptionID:    s.SubscriptionID,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CurrentPeriodEnd:  clonePtr(s.CurrentPeriodEnd),
		Features:          entitlement.Resolve(s.EffectivePlan()),
	}
	if s.IsTrialing() {
		v.TrialEndsAt = clonePtr(s.TrialEndsAt)
		days := s.TrialDaysRemainingAt(now)
		v.DaysLeft = &days
	}
	return v
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
