package subscription_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
	"github.com/dmitrymomot/journalkit/pkg/webhook"
)

const (
	stripeSecret = "whsec_test_stripe"
	lsSecret     = "ls_test_secret"
)

var testPrices = subscription.PriceTable{
	"price_pro":       entitlement.PlanPro,
	"price_unlimited": entitlement.PlanUnlimited,
	"1001":            entitlement.PlanPro,
	"1002":            entitlement.PlanUnlimited,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   subscription.Service
	store subscription.Store
	clock *fakeClock
}

func newFixture(t *testing.T, opts ...subscription.ServiceOption) *fixture {
	t.Helper()
	clock := newClock()
	store := subscription.NewMemoryStore()
	return newFixtureWithStore(t, store, clock, opts...)
}

func newFixtureWithStore(t *testing.T, store subscription.Store, clock *fakeClock, opts ...subscription.ServiceOption) *fixture {
	t.Helper()
	providers := []subscription.Provider{
		subscription.NewStripeProvider(subscription.StripeConfig{WebhookSecret: stripeSecret},
			subscription.WithProviderClock(clock.Now)),
		subscription.NewLemonSqueezyProvider(subscription.LemonSqueezyConfig{WebhookSecret: lsSecret}),
	}
	svc, err := subscription.NewService(store, testPrices, providers,
		append([]subscription.ServiceOption{subscription.WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, clock: clock}
}

// startTrial creates a trial record at the fixture's current time.
func (f *fixture) startTrial(t *testing.T) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := f.svc.StartTrial(context.Background(), userID, f.clock.Now())
	require.NoError(t, err)
	return userID
}

func (f *fixture) get(t *testing.T, userID uuid.UUID) *subscription.Subscription {
	t.Helper()
	sub, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return sub
}

func (f *fixture) deliverStripe(t *testing.T, payload []byte) (*subscription.WebhookResult, error) {
	t.Helper()
	return f.svc.HandleWebhook(context.Background(), subscription.ProviderStripe, payload, signStripe(t, f.clock.Now(), payload))
}

func (f *fixture) deliverLemonSqueezy(t *testing.T, payload []byte) (*subscription.WebhookResult, error) {
	t.Helper()
	return f.svc.HandleWebhook(context.Background(), subscription.ProviderLemonSqueezy, payload, signLemonSqueezy(payload))
}

func signStripe(t *testing.T, at time.Time, payload []byte) http.Header {
	t.Helper()
	sig, err := webhook.NewTimestampedHeader(stripeSecret, payload, at)
	require.NoError(t, err)
	h := http.Header{}
	h.Set(subscription.StripeSignatureHeader, sig.String())
	return h
}

func signLemonSqueezy(payload []byte) http.Header {
	h := http.Header{}
	h.Set(subscription.LemonSqueezySignatureHeader, webhook.Sign(lsSecret, payload))
	return h
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

const stripeCreated int64 = 1740819600

func stripeEvent(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	return mustJSON(t, map[string]any{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": stripeCreated,
		"data":    map[string]any{"object": object},
	})
}

// withCreated moves a Stripe event by delta seconds from the default created time.
func withCreated(t *testing.T, payload []byte, delta int64) []byte {
	t.Helper()
	var evt map[string]any
	require.NoError(t, json.Unmarshal(payload, &evt))
	evt["created"] = stripeCreated + delta
	return mustJSON(t, evt)
}

func stripeCheckout(t *testing.T, eventID string, userID uuid.UUID, planID string) []byte {
	t.Helper()
	return stripeEvent(t, eventID, "checkout.session.completed", map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"customer":       "cus_1",
		"subscription":   "sub_1",
		"payment_status": "paid",
		"status":         "complete",
		"metadata":       map[string]string{"userId": userID.String(), "planId": planID},
	})
}

func stripeSubscription(t *testing.T, eventID, eventType, status string, cancelAtPeriodEnd bool, periodEnd time.Time) []byte {
	t.Helper()
	return stripeEvent(t, eventID, eventType, map[string]any{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             "cus_1",
		"status":               status,
		"cancel_at_period_end": cancelAtPeriodEnd,
		"current_period_end":   periodEnd.Unix(),
		"items": map[string]any{"data": []any{
			map[string]any{"price": map[string]any{"id": "price_pro"}},
		}},
	})
}

func lsEvent(t *testing.T, eventName string, userID uuid.UUID, dataType string, id any, attrs map[string]any) []byte {
	t.Helper()
	meta := map[string]any{"event_name": eventName}
	if userID != uuid.Nil {
		meta["custom_data"] = map[string]any{"user_id": userID.String()}
	}
	return mustJSON(t, map[string]any{
		"meta": meta,
		"data": map[string]any{"type": dataType, "id": id, "attributes": attrs},
	})
}

// mockStore lets tests inject store failures.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockStore) FindByCustomerID(ctx context.Context, provider subscription.ProviderName, customerID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, provider, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

// mockProvider stands in for a provider API in checkout verification tests.
type mockProvider struct {
	mock.Mock
	name subscription.ProviderName
}

func (m *mockProvider) Name() subscription.ProviderName { return m.name }

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.WebhookEvent), args.Error(1)
}

func (m *mockProvider) RetrieveCheckout(ctx context.Context, sessionID string) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutSession), args.Error(1)
}

// conflictingStore fails the next n updates with ErrVersionConflict.
type conflictingStore struct {
	*subscription.MemoryStore
	mu        sync.Mutex
	conflicts int
	failWith  error
}

func (s *conflictingStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	if s.failWith != nil {
		err := s.failWith
		s.failWith = nil
		s.mu.Unlock()
		return err
	}
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return subscription.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.MemoryStore.Update(ctx, sub)
}
