package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/idempotency"
	"github.com/dmitrymomot/journalkit/pkg/logger"
)

const (
	defaultTrialDays      = 7
	defaultMaxRetries     = 5
	defaultIdempotencyTTL = 72 * time.Hour
)

// Service defines the public interface for subscription management.
type Service interface {
	// StartTrial creates the initial trial record for a new user.
	StartTrial(ctx context.Context, userID uuid.UUID, createdAt time.Time) (*Subscription, error)

	// CheckStatus returns the current status, applying lazy expiry first.
	CheckStatus(ctx context.Context, userID uuid.UUID) (*StatusView, error)

	// Access resolves the user's feature flags from their effective plan.
	Access(ctx context.Context, userID uuid.UUID) (entitlement.Access, error)

	// VerifySession confirms a checkout with the provider and grants the purchased plan.
	VerifySession(ctx context.Context, userID uuid.UUID, provider ProviderName, sessionID string) (*StatusView, error)

	// HandleWebhook verifies, deduplicates and applies a provider webhook.
	HandleWebhook(ctx context.Context, provider ProviderName, payload []byte, header http.Header) (*WebhookResult, error)

	// Providers lists the configured provider names.
	Providers() []ProviderName
}

// Deduplicator claims event keys so each webhook event is applied at most once.
type Deduplicator interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// WebhookResult reports how a delivered event was handled.
type WebhookResult struct {
	EventID       string
	Type          EventType
	ProviderEvent string
	Outcome       Outcome
}

type service struct {
	store          Store
	prices         PriceTable
	providers      map[ProviderName]Provider
	dedup          Deduplicator
	observer       Observer
	logger         *slog.Logger
	now            func() time.Time
	trialDays      int
	maxRetries     int
	idempotencyTTL time.Duration
}

// NewService creates a new Service with the given dependencies.
// Panics if store is nil to fail fast during initialization.
func NewService(store Store, prices PriceTable, providers []Provider, opts ...ServiceOption) (Service, error) {
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &service{
		store:          store,
		prices:         prices,
		providers:      make(map[ProviderName]Provider, len(providers)),
		dedup:          idempotency.NewMemoryStore(10_000),
		observer:       nopObserver{},
		logger:         slog.Default(),
		now:            time.Now,
		trialDays:      defaultTrialDays,
		maxRetries:     defaultMaxRetries,
		idempotencyTTL: defaultIdempotencyTTL,
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := s.providers[p.Name()]; dup {
			return nil, fmt.Errorf("subscription: provider %s registered twice", p.Name())
		}
		s.providers[p.Name()] = p
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.trialDays <= 0 {
		return nil, fmt.Errorf("subscription: trial days must be positive, got %d", s.trialDays)
	}
	if s.prices == nil {
		s.prices = PriceTable{}
	}

	return s, nil
}

func (s *service) Providers() []ProviderName {
	names := make([]ProviderName, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// StartTrial creates {status: trial, plan: trial, trialEndsAt: createdAt + trial days}.
func (s *service) StartTrial(ctx context.Context, userID uuid.UUID, createdAt time.Time) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	sub, _, err := s.mutate(ctx, userID, true, func(ctx context.Context, sub *Subscription) error {
		if sub.Status != StatusNone {
			return ErrSubscriptionAlreadyExists
		}
		if err := transition(ctx, sub, eventStartTrial, nil); err != nil {
			return err
		}
		trialEnd := createdAt.AddDate(0, 0, s.trialDays)
		sub.Plan = entitlement.PlanTrial
		sub.TrialEndsAt = &trialEnd
		sub.CreatedAt = createdAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "trial started",
		logger.UserID(userID),
		slog.Time("trial_ends_at", *sub.TrialEndsAt),
	)
	return sub, nil
}

// CheckStatus applies lazy transitions and renders the status.
// Store failures are wrapped in ErrStatusUnavailable so callers can offer a retry.
func (s *service) CheckStatus(ctx context.Context, userID uuid.UUID) (view *StatusView, err error) {
	defer func() {
		status := StatusNone
		if view != nil {
			status = view.Status
		}
		s.observer.StatusChecked(status, err)
	}()

	now := s.now()
	sub, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Join(ErrStatusUnavailable, err)
	}

	if sub.TrialExpiredAt(now) || sub.PeriodElapsedAt(now) {
		sub, _, err = s.mutate(ctx, userID, false, s.settle(now))
		if err != nil {
			return nil, errors.Join(ErrStatusUnavailable, err)
		}
		s.logger.InfoContext(ctx, "subscription lazily transitioned",
			logger.UserID(userID),
			logger.Status(string(sub.Status)),
			logger.Plan(string(sub.Plan)),
		)
	}

	return sub.View(now), nil
}

// Access returns no features for users without a record.
func (s *service) Access(ctx context.Context, userID uuid.UUID) (entitlement.Access, error) {
	view, err := s.CheckStatus(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return entitlement.Resolve(entitlement.PlanNone), nil
	}
	if err != nil {
		return entitlement.Access{}, err
	}
	return view.Features, nil
}

// VerifySession merges a paid checkout into the user's record.
// The webhook for the same checkout may arrive before or after; both converge on the same state.
func (s *service) VerifySession(ctx context.Context, userID uuid.UUID, name ProviderName, sessionID string) (*StatusView, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}

	start := s.now()
	session, err := p.RetrieveCheckout(ctx, sessionID)
	s.observer.ProviderCalled(name, "retrieve_checkout", s.now().Sub(start), err)
	if err != nil {
		s.logger.WarnContext(ctx, "checkout session lookup failed",
			logger.Provider(string(name)),
			logger.UserID(userID),
			logger.Error(err),
		)
		return nil, err
	}

	if session.UserID != "" && session.UserID != userID.String() {
		return nil, ErrSessionMismatch
	}
	if session.CustomerID != "" {
		owner, err := s.store.FindByCustomerID(ctx, name, session.CustomerID)
		switch {
		case err == nil && owner.UserID != userID:
			return nil, ErrSessionMismatch
		case err != nil && !errors.Is(err, ErrSubscriptionNotFound):
			return nil, errors.Join(ErrStatusUnavailable, err)
		}
	}
	if !session.Paid {
		return nil, ErrCheckoutNotPaid
	}

	outcome, err := s.activate(ctx, userID, purchase{
		provider:         name,
		customerID:       session.CustomerID,
		subscriptionID:   session.SubscriptionID,
		priceID:          session.PriceID,
		currentPeriodEnd: session.CurrentPeriodEnd,
	})
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, errors.Join(ErrStatusUnavailable, err)
	}
	s.logger.InfoContext(ctx, "checkout session verified",
		logger.Provider(string(name)),
		logger.UserID(userID),
		logger.Outcome(string(outcome)),
	)

	return s.CheckStatus(ctx, userID)
}

// HandleWebhook verifies the payload before anything else, then claims the event
// so concurrent or repeated deliveries are applied once. The claim is released on
// failure so the provider's retry gets processed.
func (s *service) HandleWebhook(ctx context.Context, name ProviderName, payload []byte, header http.Header) (*WebhookResult, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	log := s.logger.With(logger.Provider(string(name)))

	event, err := p.ParseWebhook(ctx, payload, header)
	if err != nil {
		s.observer.WebhookHandled(name, EventUnknown, OutcomeInvalid)
		if errors.Is(err, ErrConfigMissing) {
			log.ErrorContext(ctx, "webhook rejected: provider is not configured", logger.Error(err))
		} else {
			log.WarnContext(ctx, "webhook rejected", logger.Error(err))
		}
		return nil, err
	}
	event.Provider = name
	if event.ID == "" {
		event.ID = bodyDigest(payload)
	}

	log = log.With(logger.EventID(event.ID), logger.EventType(event.ProviderEvent))
	result := &WebhookResult{EventID: event.ID, Type: event.Type, ProviderEvent: event.ProviderEvent}
	key := event.IdempotencyKey()

	claimed, err := s.dedup.Claim(ctx, key, s.idempotencyTTL)
	if err != nil {
		s.observer.WebhookHandled(name, event.Type, OutcomeFailed)
		log.ErrorContext(ctx, "failed to claim webhook event", logger.Error(err))
		return nil, fmt.Errorf("failed to claim webhook event: %w", err)
	}
	if !claimed {
		result.Outcome = OutcomeDuplicate
		s.observer.WebhookHandled(name, event.Type, OutcomeDuplicate)
		log.InfoContext(ctx, "duplicate webhook event acknowledged")
		return result, nil
	}

	outcome, err := s.apply(ctx, event, log)
	if errors.Is(err, errUnmatched) {
		// Not recorded as processed: a redelivery after the linking checkout is applied.
		s.release(ctx, key, log)
		outcome, err = OutcomeIgnored, nil
	}
	if err != nil {
		s.release(ctx, key, log)
		s.observer.WebhookHandled(name, event.Type, OutcomeFailed)
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
		return nil, err
	}

	result.Outcome = outcome
	s.observer.WebhookHandled(name, event.Type, outcome)
	log.InfoContext(ctx, "webhook processed", logger.Outcome(string(outcome)))
	return result, nil
}

func (s *service) release(ctx context.Context, key string, log *slog.Logger) {
	if err := s.dedup.Release(ctx, key); err != nil {
		log.ErrorContext(ctx, "failed to release webhook claim", logger.Error(err))
	}
}

// purchase is the subset of a checkout or subscription event that grants a plan.
type purchase struct {
	provider          ProviderName
	customerID        string
	subscriptionID    string
	priceID           string
	currentPeriodEnd  *time.Time
	cancelAtPeriodEnd bool
	occurredAt        time.Time
}

func purchaseFromEvent(e *WebhookEvent) purchase {
	return purchase{
		provider:          e.Provider,
		customerID:        e.CustomerID,
		subscriptionID:    e.SubscriptionID,
		priceID:           e.PriceID,
		currentPeriodEnd:  e.CurrentPeriodEnd,
		cancelAtPeriodEnd: e.CancelAtPeriodEnd,
		occurredAt:        e.OccurredAt,
	}
}

func (s *service) apply(ctx context.Context, event *WebhookEvent, log *slog.Logger) (Outcome, error) {
	if event.Type == EventUnknown {
		log.InfoContext(ctx, "ignoring webhook event", logger.Error(ErrUnknownEventType))
		return OutcomeIgnored, nil
	}

	userID, err := s.correlate(ctx, event)
	if errors.Is(err, ErrMissingUserID) || errors.Is(err, ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "webhook event does not match any user",
			slog.String("customer_id", event.CustomerID),
			logger.Error(err),
		)
		return OutcomeIgnored, errUnmatched
	}
	if err != nil {
		return "", err
	}
	log = log.With(logger.UserID(userID))

	var outcome Outcome
	switch event.Type {
	case EventCheckoutCompleted:
		outcome, err = s.applyStatus(ctx, userID, event, actionActivate)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		action := classifyStatus(event.Status)
		if action == actionNone {
			log.InfoContext(ctx, "ignoring unrecognized provider status", logger.Status(event.Status))
			return OutcomeIgnored, nil
		}
		outcome, err = s.applyStatus(ctx, userID, event, action)
	case EventSubscriptionCancelled:
		outcome, err = s.applyStatus(ctx, userID, event, actionCancel)
	case EventSubscriptionExpired:
		outcome, err = s.applyStatus(ctx, userID, event, actionExpire)
	default:
		return OutcomeIgnored, nil
	}

	switch {
	case errors.Is(err, ErrInvalidTransition):
		// Late or replayed events must not move the user to an earlier state.
		log.WarnContext(ctx, "webhook event rejected by subscription lifecycle", logger.Error(err))
		return OutcomeRejected, nil
	case errors.Is(err, ErrSubscriptionNotFound):
		log.WarnContext(ctx, "no subscription record to update", logger.Error(err))
		return OutcomeIgnored, errUnmatched
	case err != nil:
		return "", err
	}

	if outcome == OutcomeUnmapped {
		log.WarnContext(ctx, "price id is not mapped to a plan",
			slog.String("price_id", event.PriceID),
			logger.Error(ErrUnknownPlanMapping),
		)
	}
	return outcome, nil
}

func (s *service) applyStatus(ctx context.Context, userID uuid.UUID, event *WebhookEvent, action statusAction) (Outcome, error) {
	switch action {
	case actionActivate:
		if event.Type == EventCheckoutCompleted && event.Status != "" && classifyStatus(event.Status) != actionActivate {
			// Async payment methods complete the checkout before the money arrives.
			return s.link(ctx, userID, purchaseFromEvent(event))
		}
		return s.activate(ctx, userID, purchaseFromEvent(event))
	case actionCancel:
		return s.cancel(ctx, userID, event)
	case actionExpire:
		return s.expire(ctx, userID, event)
	default:
		return OutcomeIgnored, nil
	}
}

// correlate finds our user for an event: metadata first, then the provider customer ID.
func (s *service) correlate(ctx context.Context, event *WebhookEvent) (uuid.UUID, error) {
	if event.UserID != "" {
		if id, err := uuid.Parse(event.UserID); err == nil {
			return id, nil
		}
	}
	if event.CustomerID == "" {
		return uuid.Nil, ErrMissingUserID
	}
	sub, err := s.store.FindByCustomerID(ctx, event.Provider, event.CustomerID)
	if err != nil {
		return uuid.Nil, err
	}
	return sub.UserID, nil
}

// activate grants the purchased plan. Unknown prices only record the provider IDs.
func (s *service) activate(ctx context.Context, userID uuid.UUID, p purchase) (Outcome, error) {
	plan := s.prices.Resolve(p.priceID)
	if !plan.Paid() {
		outcome, err := s.link(ctx, userID, p)
		if err != nil || outcome == OutcomeIgnored {
			return outcome, err
		}
		return OutcomeUnmapped, nil
	}

	stale := false
	_, changed, err := s.mutate(ctx, userID, true, func(ctx context.Context, sub *Subscription) error {
		if stale = predates(sub, p.occurredAt); stale {
			return nil
		}
		if err := transition(ctx, sub, eventActivate, plan); err != nil {
			return err
		}
		markEvent(sub, p.occurredAt)
		linkProvider(sub, p)
		sub.Plan = plan
		sub.TrialEndsAt = nil
		sub.CancelAtPeriodEnd = p.cancelAtPeriodEnd
		if p.currentPeriodEnd != nil {
			sub.CurrentPeriodEnd = clonePtr(p.currentPeriodEnd)
		}
		return nil
	})
	if stale {
		return OutcomeIgnored, err
	}
	return changedOutcome(changed), err
}

// link records provider IDs on an existing record without touching its status.
func (s *service) link(ctx context.Context, userID uuid.UUID, p purchase) (Outcome, error) {
	stale := false
	_, changed, err := s.mutate(ctx, userID, false, func(_ context.Context, sub *Subscription) error {
		if stale = predates(sub, p.occurredAt); stale {
			return nil
		}
		linkProvider(sub, p)
		markEvent(sub, p.occurredAt)
		return nil
	})
	if stale {
		return OutcomeIgnored, err
	}
	return changedOutcome(changed), err
}

// cancel revokes access now, or schedules it when the paid period is still running.
func (s *service) cancel(ctx context.Context, userID uuid.UUID, event *WebhookEvent) (Outcome, error) {
	now := s.now()
	stale := false
	_, changed, err := s.mutate(ctx, userID, false, func(ctx context.Context, sub *Subscription) error {
		if stale = isStaleSubscription(sub, event) || predates(sub, event.OccurredAt); stale {
			return nil
		}
		markEvent(sub, event.OccurredAt)
		if sub.IsActive() && event.CurrentPeriodEnd != nil && event.CurrentPeriodEnd.After(now) {
			sub.CancelAtPeriodEnd = true
			sub.CurrentPeriodEnd = clonePtr(event.CurrentPeriodEnd)
			return nil
		}
		if err := transition(ctx, sub, eventCancel, nil); err != nil {
			return err
		}
		sub.Plan = entitlement.PlanNone
		sub.CancelAtPeriodEnd = false
		return nil
	})
	if stale {
		return OutcomeIgnored, err
	}
	return changedOutcome(changed), err
}

func (s *service) expire(ctx context.Context, userID uuid.UUID, event *WebhookEvent) (Outcome, error) {
	stale := false
	_, changed, err := s.mutate(ctx, userID, false, func(ctx context.Context, sub *Subscription) error {
		if stale = isStaleSubscription(sub, event) || predates(sub, event.OccurredAt); stale {
			return nil
		}
		markEvent(sub, event.OccurredAt)
		if err := transition(ctx, sub, eventExpire, nil); err != nil {
			return err
		}
		sub.Plan = entitlement.PlanNone
		sub.CancelAtPeriodEnd = false
		return nil
	})
	if stale {
		return OutcomeIgnored, err
	}
	return changedOutcome(changed), err
}

// settle applies the transitions that happen by the passage of time.
func (s *service) settle(now time.Time) mutation {
	return func(ctx context.Context, sub *Subscription) error {
		switch {
		case sub.TrialExpiredAt(now):
			if err := transition(ctx, sub, eventExpire, nil); err != nil {
				return err
			}
		case sub.PeriodElapsedAt(now):
			if err := transition(ctx, sub, eventCancel, nil); err != nil {
				return err
			}
			sub.CancelAtPeriodEnd = false
		default:
			return nil
		}
		sub.Plan = entitlement.PlanNone
		return nil
	}
}

// mutation edits a loaded record in place. Returning an error aborts the write.
type mutation func(ctx context.Context, sub *Subscription) error

// mutate runs a read-modify-write against the store with optimistic concurrency.
// When create is true a missing record starts from StatusNone and is inserted.
// The record is written only if fn changed it.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, create bool, fn mutation) (*Subscription, bool, error) {
	for attempt := range s.maxRetries {
		isNew := false
		sub, err := s.store.Get(ctx, userID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound) && create:
			sub = &Subscription{
				UserID:    userID,
				Plan:      entitlement.PlanNone,
				Status:    StatusNone,
				CreatedAt: s.now().UTC(),
			}
			isNew = true
		case err != nil:
			return nil, false, err
		}

		before := sub.Clone()
		if err := fn(ctx, sub); err != nil {
			return nil, false, err
		}
		if sameState(before, sub) {
			return sub, false, nil
		}
		if !sub.Status.Valid() {
			return nil, false, fmt.Errorf("%w: refusing to persist status %q", ErrInvalidTransition, sub.Status)
		}

		sub.UpdatedAt = s.now().UTC()
		if isNew {
			err = s.store.Create(ctx, sub)
		} else {
			err = s.store.Update(ctx, sub)
		}
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrSubscriptionAlreadyExists) {
			s.logger.DebugContext(ctx, "subscription write conflict, retrying",
				logger.UserID(userID),
				logger.RetryCount(attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}

	return nil, false, fmt.Errorf("%w: gave up after %d attempts", ErrVersionConflict, s.maxRetries)
}

func linkProvider(sub *Subscription, p purchase) {
	if p.customerID != "" {
		sub.CustomerID = p.customerID
		sub.Provider = p.provider
	}
	if p.subscriptionID != "" {
		sub.SubscriptionID = p.subscriptionID
		sub.Provider = p.provider
	}
}

// isStaleSubscription reports whether event concerns a provider subscription
// the user has since replaced, e.g. the old one after a plan change.
func isStaleSubscription(sub *Subscription, event *WebhookEvent) bool {
	return sub.SubscriptionID != "" && event.SubscriptionID != "" && sub.SubscriptionID != event.SubscriptionID
}

// predates reports whether the record already reflects a provider event newer than at.
// Events without a timestamp are never considered late.
func predates(sub *Subscription, at time.Time) bool {
	return !at.IsZero() && sub.LastEventAt != nil && at.Before(*sub.LastEventAt)
}

func markEvent(sub *Subscription, at time.Time) {
	if at.IsZero() || (sub.LastEventAt != nil && !at.After(*sub.LastEventAt)) {
		return
	}
	t := at.UTC()
	sub.LastEventAt = &t
}

// sameState ignores LastEventAt: an event that changes nothing else is not written.
func sameState(a, b *Subscription) bool {
	return a.Plan == b.Plan &&
		a.Status == b.Status &&
		a.Provider == b.Provider &&
		a.CustomerID == b.CustomerID &&
		a.SubscriptionID == b.SubscriptionID &&
		a.CancelAtPeriodEnd == b.CancelAtPeriodEnd &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		sameTime(a.TrialEndsAt, b.TrialEndsAt) &&
		sameTime(a.CurrentPeriodEnd, b.CurrentPeriodEnd)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func changedOutcome(changed bool) Outcome {
	if changed {
		return OutcomeApplied
	}
	return OutcomeUnchanged
}
