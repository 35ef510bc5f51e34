package subscription_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("panics without store", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			_, _ = subscription.NewService(nil, testPrices, nil)
		})
	})

	t.Run("rejects duplicate providers", func(t *testing.T) {
		t.Parallel()
		p := subscription.NewStripeProvider(subscription.StripeConfig{})
		_, err := subscription.NewService(subscription.NewMemoryStore(), testPrices, []subscription.Provider{p, p})
		assert.Error(t, err)
	})

	t.Run("rejects non-positive trial length", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.NewService(subscription.NewMemoryStore(), testPrices, nil, subscription.WithTrialDays(0))
		assert.Error(t, err)
	})

	t.Run("lists providers sorted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		assert.Equal(t, []subscription.ProviderName{subscription.ProviderLemonSqueezy, subscription.ProviderStripe}, f.svc.Providers())
	})
}

func TestService_StartTrial(t *testing.T) {
	t.Parallel()

	t.Run("creates trial record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		sub, err := f.svc.StartTrial(context.Background(), userID, f.clock.Now())
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusTrial, sub.Status)
		assert.Equal(t, entitlement.PlanTrial, sub.Plan)
		require.NotNil(t, sub.TrialEndsAt)
		assert.Equal(t, f.clock.Now().AddDate(0, 0, 7), *sub.TrialEndsAt)
		assert.Equal(t, int64(1), sub.Version)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusTrial, stored.Status)
	})

	t.Run("uses configured trial length", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, subscription.WithTrialDays(14))
		userID := f.startTrial(t)
		assert.Equal(t, f.clock.Now().AddDate(0, 0, 14), *f.get(t, userID).TrialEndsAt)
	})

	t.Run("never restarts an existing record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		_, err := f.svc.StartTrial(context.Background(), userID, f.clock.Now())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
	})

	t.Run("requires user id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.StartTrial(context.Background(), uuid.Nil, f.clock.Now())
		assert.ErrorIs(t, err, subscription.ErrMissingUserID)
	})
}

func TestService_CheckStatus(t *testing.T) {
	t.Parallel()

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.CheckStatus(context.Background(), uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("trial reports days left rounded up", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		f.clock.Advance(time.Hour)
		view, err := f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, view.Status)
		assert.Equal(t, entitlement.PlanTrial, view.Plan)
		require.NotNil(t, view.DaysLeft)
		assert.Equal(t, 7, *view.DaysLeft)
		assert.Equal(t, entitlement.Access{}, view.Features)

		f.clock.Advance(6 * 24 * time.Hour)
		view, err = f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, *view.DaysLeft)
	})

	t.Run("elapsed trial is expired and persisted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		f.clock.Advance(7 * 24 * time.Hour)
		view, err := f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, view.Status)
		assert.Equal(t, entitlement.PlanNone, view.Plan)
		assert.Nil(t, view.DaysLeft)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusExpired, stored.Status)
		assert.Equal(t, entitlement.PlanNone, stored.Plan)
		assert.Equal(t, int64(2), stored.Version)

		_, err = f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), f.get(t, userID).Version, "settled records are not rewritten")
	})

	t.Run("store failure is recoverable", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		userID := uuid.New()
		store.On("Get", mock.Anything, userID).Return(nil, errors.New("connection refused"))

		svc, err := subscription.NewService(store, testPrices, nil)
		require.NoError(t, err)

		_, err = svc.CheckStatus(context.Background(), userID)
		assert.ErrorIs(t, err, subscription.ErrStatusUnavailable)
		store.AssertExpectations(t)
	})

	t.Run("failed lazy write is recoverable and grants nothing", func(t *testing.T) {
		t.Parallel()
		clock := newClock()
		userID := uuid.New()
		trialEnd := clock.Now().Add(-time.Minute)
		sub := &subscription.Subscription{
			UserID:      userID,
			Plan:        entitlement.PlanTrial,
			Status:      subscription.StatusTrial,
			TrialEndsAt: &trialEnd,
			Version:     3,
		}

		store := &mockStore{}
		store.On("Get", mock.Anything, userID).Return(sub.Clone(), nil).Once()
		store.On("Get", mock.Anything, userID).Return(sub.Clone(), nil).Once()
		store.On("Update", mock.Anything, mock.Anything).Return(errors.New("read-only replica"))

		svc, err := subscription.NewService(store, testPrices, nil, subscription.WithClock(clock.Now))
		require.NoError(t, err)

		view, err := svc.CheckStatus(context.Background(), userID)
		assert.ErrorIs(t, err, subscription.ErrStatusUnavailable)
		assert.Nil(t, view)
		store.AssertExpectations(t)
	})
}

func TestService_Access(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	access, err := f.svc.Access(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, entitlement.Access{}, access, "users without a record get nothing")

	userID := f.startTrial(t)
	access, err = f.svc.Access(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.Resolve(entitlement.PlanTrial), access)

	_, err = f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
	require.NoError(t, err)

	access, err = f.svc.Access(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.Resolve(entitlement.PlanPro), access)
	assert.True(t, access.GoalTracking)
	assert.False(t, access.AdvancedAnalytics)
}

func TestService_HandleWebhook_Checkout(t *testing.T) {
	t.Parallel()

	t.Run("stripe checkout activates the mapped plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		res, err := f.deliverStripe(t, stripeCheckout(t, "evt_checkout", userID, "price_unlimited"))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)
		assert.Equal(t, subscription.EventCheckoutCompleted, res.Type)
		assert.Equal(t, "evt_checkout", res.EventID)

		view, err := f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, view.Status)
		assert.Equal(t, entitlement.PlanUnlimited, view.Plan)
		assert.Nil(t, view.TrialEndsAt)
		assert.Nil(t, view.DaysLeft)
		assert.Equal(t, "cus_1", view.CustomerID)
		assert.Equal(t, "sub_1", view.SubscriptionID)
		assert.Equal(t, subscription.ProviderStripe, view.Provider)
		for c, ok := range view.Features.Map() {
			assert.True(t, ok, c)
		}
	})

	t.Run("purchase without a trial record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()

		res, err := f.deliverStripe(t, stripeCheckout(t, "evt_new", userID, "price_pro"))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusActive, stored.Status)
		assert.Equal(t, entitlement.PlanPro, stored.Plan)
	})

	t.Run("unknown variant is acknowledged without a plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		payload := lsEvent(t, "order_created", userID, "orders", 5001, map[string]any{
			"status":           "paid",
			"customer_id":      777,
			"first_order_item": map[string]any{"variant_id": 999999},
		})
		res, err := f.deliverLemonSqueezy(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeUnmapped, res.Outcome)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusTrial, stored.Status, "status does not change")
		assert.Equal(t, entitlement.PlanTrial, stored.Plan)
		assert.Equal(t, "777", stored.CustomerID, "provider ids are still recorded")
		assert.Equal(t, subscription.ProviderLemonSqueezy, stored.Provider)
	})

	t.Run("mapped lemonsqueezy variant", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		payload := lsEvent(t, "order_created", userID, "orders", "5002", map[string]any{
			"status":           "paid",
			"customer_id":      "778",
			"first_order_item": map[string]any{"variant_id": 1002},
		})
		res, err := f.deliverLemonSqueezy(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)
		assert.Equal(t, entitlement.PlanUnlimited, f.get(t, userID).Plan)
	})

	t.Run("unpaid async checkout only links the customer", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		payload := stripeEvent(t, "evt_async", "checkout.session.completed", map[string]any{
			"id":             "cs_async",
			"customer":       "cus_async",
			"payment_status": "unpaid",
			"metadata":       map[string]string{"userId": userID.String(), "planId": "price_pro"},
		})
		res, err := f.deliverStripe(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusTrial, stored.Status)
		assert.Equal(t, "cus_async", stored.CustomerID)
	})
}

func TestService_HandleWebhook_Idempotency(t *testing.T) {
	t.Parallel()

	t.Run("duplicate delivery is acknowledged once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		payload := stripeCheckout(t, "evt_dup", userID, "price_pro")

		first, err := f.deliverStripe(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, first.Outcome)
		version := f.get(t, userID).Version

		second, err := f.deliverStripe(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeDuplicate, second.Outcome)
		assert.Equal(t, version, f.get(t, userID).Version)
	})

	t.Run("lemonsqueezy duplicates are keyed by body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		payload := lsEvent(t, "order_created", userID, "orders", 5003, map[string]any{
			"status":           "paid",
			"customer_id":      779,
			"first_order_item": map[string]any{"variant_id": 1001},
		})

		first, err := f.deliverLemonSqueezy(t, payload)
		require.NoError(t, err)
		second, err := f.deliverLemonSqueezy(t, payload)
		require.NoError(t, err)

		assert.Equal(t, subscription.OutcomeApplied, first.Outcome)
		assert.Equal(t, subscription.OutcomeDuplicate, second.Outcome)
		assert.Equal(t, first.EventID, second.EventID)
	})

	t.Run("replay under a new id does not change an active record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_a", userID, "price_pro"))
		require.NoError(t, err)
		res, err := f.deliverStripe(t, stripeCheckout(t, "evt_b", userID, "price_pro"))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeUnchanged, res.Outcome)

		_, err = f.svc.StartTrial(context.Background(), userID, f.clock.Now())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)

		assert.Equal(t, subscription.StatusActive, f.get(t, userID).Status, "active never returns to trial")
	})

	t.Run("concurrent deliveries apply once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		payload := stripeCheckout(t, "evt_race", userID, "price_unlimited")
		header := signStripe(t, f.clock.Now(), payload)

		var applied, duplicates atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := f.svc.HandleWebhook(context.Background(), subscription.ProviderStripe, payload, header)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				switch res.Outcome {
				case subscription.OutcomeApplied:
					applied.Add(1)
				case subscription.OutcomeDuplicate:
					duplicates.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), applied.Load())
		assert.Equal(t, int32(19), duplicates.Load())
	})

	t.Run("failed processing releases the claim", func(t *testing.T) {
		t.Parallel()
		store := &conflictingStore{MemoryStore: subscription.NewMemoryStore(), failWith: errors.New("disk full")}
		f := newFixtureWithStore(t, store, newClock())
		userID := f.startTrial(t)
		payload := stripeCheckout(t, "evt_retry", userID, "price_pro")

		_, err := f.deliverStripe(t, payload)
		require.Error(t, err)
		assert.Equal(t, subscription.StatusTrial, f.get(t, userID).Status)

		res, err := f.deliverStripe(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome, "provider retry is processed")
		assert.Equal(t, subscription.StatusActive, f.get(t, userID).Status)
	})
}

func TestService_HandleWebhook_Verification(t *testing.T) {
	t.Parallel()

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		signed := stripeCheckout(t, "evt_t", userID, "price_pro")
		tampered := stripeCheckout(t, "evt_t", userID, "price_unlimited")
		_, err := f.svc.HandleWebhook(context.Background(), subscription.ProviderStripe, tampered, signStripe(t, f.clock.Now(), signed))
		assert.ErrorIs(t, err, subscription.ErrSignatureInvalid)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusTrial, stored.Status)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		payload := stripeCheckout(t, "evt_old", userID, "price_pro")

		header := signStripe(t, f.clock.Now().Add(-10*time.Minute), payload)
		_, err := f.svc.HandleWebhook(context.Background(), subscription.ProviderStripe, payload, header)
		assert.ErrorIs(t, err, subscription.ErrSignatureInvalid)
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.HandleWebhook(context.Background(), subscription.ProviderLemonSqueezy, []byte(`{}`), http.Header{})
		assert.ErrorIs(t, err, subscription.ErrMalformedPayload)
	})

	t.Run("lemonsqueezy wrong secret", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		payload := []byte(`{"meta":{"event_name":"order_created"}}`)
		header := http.Header{}
		header.Set(subscription.LemonSqueezySignatureHeader, "deadbeef")
		_, err := f.svc.HandleWebhook(context.Background(), subscription.ProviderLemonSqueezy, payload, header)
		assert.ErrorIs(t, err, subscription.ErrSignatureInvalid)
	})

	t.Run("missing secret fails closed", func(t *testing.T) {
		t.Parallel()
		svc, err := subscription.NewService(subscription.NewMemoryStore(), testPrices,
			[]subscription.Provider{subscription.NewStripeProvider(subscription.StripeConfig{})})
		require.NoError(t, err)

		payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
		_, err = svc.HandleWebhook(context.Background(), subscription.ProviderStripe, payload, signStripe(t, time.Now(), payload))
		assert.ErrorIs(t, err, subscription.ErrConfigMissing)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.HandleWebhook(context.Background(), subscription.ProviderName("paypal"), []byte(`{}`), http.Header{})
		assert.ErrorIs(t, err, subscription.ErrUnknownProvider)
	})
}

func TestService_HandleWebhook_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("unknown event types are ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		res, err := f.deliverStripe(t, stripeEvent(t, "evt_inv", "invoice.created", map[string]any{"id": "in_1"}))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeIgnored, res.Outcome)
		assert.Equal(t, subscription.EventUnknown, res.Type)
		assert.Equal(t, int64(1), f.get(t, userID).Version)
	})

	t.Run("events for unknown customers are ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		res, err := f.deliverStripe(t, stripeSubscription(t, "evt_x", "customer.subscription.updated", "active", false, f.clock.Now().Add(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeIgnored, res.Outcome)
	})

	t.Run("stripe deletion expires", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		res, err := f.deliverStripe(t, stripeSubscription(t, "evt_2", "customer.subscription.deleted", "canceled", false, f.clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusExpired, stored.Status)
		assert.Equal(t, entitlement.PlanNone, stored.EffectivePlan())
	})

	t.Run("unpaid subscription expires", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		_, err = f.deliverStripe(t, stripeSubscription(t, "evt_2", "customer.subscription.updated", "unpaid", false, f.clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, f.get(t, userID).Status)

		res, err := f.deliverStripe(t, stripeSubscription(t, "evt_3", "customer.subscription.updated", "active", false, f.clock.Now().Add(30*24*time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome, "paying again reactivates")
		assert.Equal(t, subscription.StatusActive, f.get(t, userID).Status)
	})

	t.Run("cancel at period end keeps access until the period ends", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_unlimited"))
		require.NoError(t, err)

		periodEnd := f.clock.Now().Add(10 * 24 * time.Hour)
		_, err = f.deliverStripe(t, stripeSubscription(t, "evt_2", "customer.subscription.updated", "active", true, periodEnd))
		require.NoError(t, err)

		view, err := f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, view.Status)
		assert.True(t, view.CancelAtPeriodEnd)
		assert.Equal(t, entitlement.PlanPro, view.Plan, "plan is re-resolved from the subscription price")
		require.NotNil(t, view.CurrentPeriodEnd)
		assert.True(t, periodEnd.Truncate(time.Second).Equal(*view.CurrentPeriodEnd))

		f.clock.Advance(11 * 24 * time.Hour)
		view, err = f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, view.Status)
		assert.Equal(t, entitlement.Access{}, view.Features)
		assert.Equal(t, subscription.StatusCancelled, f.get(t, userID).Status, "persisted before returning")
	})

	t.Run("lemonsqueezy cancellation with future end is pending", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverLemonSqueezy(t, lsEvent(t, "order_created", userID, "orders", 6001, map[string]any{
			"status":           "paid",
			"customer_id":      880,
			"first_order_item": map[string]any{"variant_id": 1002},
		}))
		require.NoError(t, err)

		endsAt := f.clock.Now().Add(5 * 24 * time.Hour)
		res, err := f.deliverLemonSqueezy(t, lsEvent(t, "subscription_cancelled", userID, "subscriptions", 7001, map[string]any{
			"status":      "cancelled",
			"customer_id": 880,
			"variant_id":  1002,
			"cancelled":   true,
			"ends_at":     endsAt.Format(time.RFC3339),
		}))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)

		stored := f.get(t, userID)
		assert.Equal(t, subscription.StatusActive, stored.Status)
		assert.True(t, stored.PendingCancellation())

		f.clock.Advance(6 * 24 * time.Hour)
		view, err := f.svc.CheckStatus(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, view.Status)
	})

	t.Run("cancellation without future end revokes now", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverLemonSqueezy(t, lsEvent(t, "order_created", userID, "orders", 6002, map[string]any{
			"status":           "paid",
			"customer_id":      881,
			"first_order_item": map[string]any{"variant_id": 1001},
		}))
		require.NoError(t, err)

		res, err := f.deliverLemonSqueezy(t, lsEvent(t, "subscription_cancelled", userID, "subscriptions", 7002, map[string]any{
			"status":    "cancelled",
			"cancelled": true,
		}))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)
		assert.Equal(t, subscription.StatusCancelled, f.get(t, userID).Status)
	})

	t.Run("disallowed transition is acknowledged without change", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)

		res, err := f.deliverLemonSqueezy(t, lsEvent(t, "subscription_cancelled", userID, "subscriptions", 7003, map[string]any{
			"status":    "cancelled",
			"cancelled": true,
		}))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeRejected, res.Outcome)
		assert.Equal(t, subscription.StatusTrial, f.get(t, userID).Status)
	})

	t.Run("events about a replaced subscription are ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		payload := stripeEvent(t, "evt_old_sub", "customer.subscription.deleted", map[string]any{
			"id":       "sub_old",
			"customer": "cus_1",
			"status":   "canceled",
		})
		res, err := f.deliverStripe(t, payload)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeIgnored, res.Outcome)
		assert.Equal(t, subscription.StatusActive, f.get(t, userID).Status)
	})
}

func TestService_HandleWebhook_EventOrdering(t *testing.T) {
	t.Parallel()

	t.Run("late update does not revive a deleted subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		periodEnd := f.clock.Now().Add(30 * 24 * time.Hour)
		deleted := withCreated(t, stripeSubscription(t, "evt_del", "customer.subscription.deleted", "canceled", false, periodEnd), 120)
		res, err := f.deliverStripe(t, deleted)
		require.NoError(t, err)
		require.Equal(t, subscription.OutcomeApplied, res.Outcome)

		late := withCreated(t, stripeSubscription(t, "evt_upd", "customer.subscription.updated", "active", false, periodEnd), 60)
		res, err = f.deliverStripe(t, late)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeIgnored, res.Outcome)

		sub := f.get(t, userID)
		assert.Equal(t, subscription.StatusExpired, sub.Status)
		assert.Equal(t, entitlement.PlanNone, sub.EffectivePlan())
		require.NotNil(t, sub.LastEventAt)
		assert.Equal(t, time.Unix(stripeCreated+120, 0).UTC(), *sub.LastEventAt)
	})

	t.Run("late cancellation does not end a renewed subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		periodEnd := f.clock.Now().Add(30 * 24 * time.Hour)
		renewed := withCreated(t, stripeSubscription(t, "evt_renew", "customer.subscription.updated", "active", false, periodEnd), 300)
		res, err := f.deliverStripe(t, renewed)
		require.NoError(t, err)
		require.Equal(t, subscription.OutcomeApplied, res.Outcome)

		expired := withCreated(t, stripeSubscription(t, "evt_old", "customer.subscription.deleted", "canceled", false, f.clock.Now()), 100)
		res, err = f.deliverStripe(t, expired)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeIgnored, res.Outcome)
		assert.Equal(t, subscription.StatusActive, f.get(t, userID).Status)
	})

	t.Run("events in the same second still apply", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := f.startTrial(t)
		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		res, err := f.deliverStripe(t, stripeSubscription(t, "evt_del", "customer.subscription.deleted", "canceled", false, f.clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)
		assert.Equal(t, subscription.StatusExpired, f.get(t, userID).Status)
	})

	t.Run("unmatched event is processed on redelivery", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		periodEnd := f.clock.Now().Add(30 * 24 * time.Hour)
		early := stripeSubscription(t, "evt_early", "customer.subscription.updated", "active", false, periodEnd)

		res, err := f.deliverStripe(t, early)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeIgnored, res.Outcome)

		userID := f.startTrial(t)
		_, err = f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)

		res, err = f.deliverStripe(t, early)
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)

		sub := f.get(t, userID)
		require.NotNil(t, sub.CurrentPeriodEnd)
		assert.True(t, periodEnd.Truncate(time.Second).Equal(*sub.CurrentPeriodEnd))
	})
}

func TestService_OptimisticConcurrency(t *testing.T) {
	t.Parallel()

	t.Run("retries on version conflict", func(t *testing.T) {
		t.Parallel()
		store := &conflictingStore{MemoryStore: subscription.NewMemoryStore()}
		f := newFixtureWithStore(t, store, newClock())
		userID := f.startTrial(t)

		store.mu.Lock()
		store.conflicts = 2
		store.mu.Unlock()

		res, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)
		assert.Equal(t, subscription.StatusActive, f.get(t, userID).Status)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()
		store := &conflictingStore{MemoryStore: subscription.NewMemoryStore()}
		f := newFixtureWithStore(t, store, newClock(), subscription.WithMaxRetries(3))
		userID := f.startTrial(t)

		store.mu.Lock()
		store.conflicts = 3
		store.mu.Unlock()

		_, err := f.deliverStripe(t, stripeCheckout(t, "evt_1", userID, "price_pro"))
		assert.ErrorIs(t, err, subscription.ErrVersionConflict)
		assert.Equal(t, subscription.StatusTrial, f.get(t, userID).Status)
	})

	t.Run("memory store rejects stale versions", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		ctx := context.Background()
		sub := &subscription.Subscription{UserID: uuid.New(), Status: subscription.StatusTrial}
		require.NoError(t, store.Create(ctx, sub))

		a, _ := store.Get(ctx, sub.UserID)
		b, _ := store.Get(ctx, sub.UserID)
		a.Status = subscription.StatusActive
		require.NoError(t, store.Update(ctx, a))
		assert.Equal(t, int64(2), a.Version)

		b.Status = subscription.StatusExpired
		assert.ErrorIs(t, store.Update(ctx, b), subscription.ErrVersionConflict)
	})
}

func TestService_VerifySession(t *testing.T) {
	t.Parallel()

	newService := func(t *testing.T, provider *mockProvider, store subscription.Store) subscription.Service {
		t.Helper()
		svc, err := subscription.NewService(store, testPrices, []subscription.Provider{provider})
		require.NoError(t, err)
		return svc
	}

	t.Run("paid session activates the plan", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		store := subscription.NewMemoryStore()
		provider := &mockProvider{name: subscription.ProviderStripe}
		provider.On("RetrieveCheckout", mock.Anything, "cs_1").Return(&subscription.CheckoutSession{
			ID:             "cs_1",
			Paid:           true,
			UserID:         userID.String(),
			CustomerID:     "cus_9",
			SubscriptionID: "sub_9",
			PriceID:        "price_pro",
		}, nil)
		svc := newService(t, provider, store)

		view, err := svc.VerifySession(context.Background(), userID, subscription.ProviderStripe, "cs_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, view.Status)
		assert.Equal(t, entitlement.PlanPro, view.Plan)
		assert.Equal(t, "cus_9", view.CustomerID)

		again, err := svc.VerifySession(context.Background(), userID, subscription.ProviderStripe, "cs_1")
		require.NoError(t, err)
		assert.Equal(t, view, again, "verification is idempotent")
		provider.AssertExpectations(t)
	})

	t.Run("session of another user", func(t *testing.T) {
		t.Parallel()
		provider := &mockProvider{name: subscription.ProviderStripe}
		provider.On("RetrieveCheckout", mock.Anything, "cs_1").Return(&subscription.CheckoutSession{
			ID: "cs_1", Paid: true, UserID: uuid.NewString(), PriceID: "price_pro",
		}, nil)
		svc := newService(t, provider, subscription.NewMemoryStore())

		_, err := svc.VerifySession(context.Background(), uuid.New(), subscription.ProviderStripe, "cs_1")
		assert.ErrorIs(t, err, subscription.ErrSessionMismatch)
	})

	t.Run("customer owned by another user", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		owner := &subscription.Subscription{
			UserID:     uuid.New(),
			Status:     subscription.StatusActive,
			Plan:       entitlement.PlanPro,
			Provider:   subscription.ProviderStripe,
			CustomerID: "cus_taken",
		}
		require.NoError(t, store.Create(context.Background(), owner))

		provider := &mockProvider{name: subscription.ProviderStripe}
		provider.On("RetrieveCheckout", mock.Anything, "cs_1").Return(&subscription.CheckoutSession{
			ID: "cs_1", Paid: true, CustomerID: "cus_taken", PriceID: "price_unlimited",
		}, nil)
		svc := newService(t, provider, store)

		_, err := svc.VerifySession(context.Background(), uuid.New(), subscription.ProviderStripe, "cs_1")
		assert.ErrorIs(t, err, subscription.ErrSessionMismatch)
	})

	t.Run("unpaid session grants nothing", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		store := subscription.NewMemoryStore()
		provider := &mockProvider{name: subscription.ProviderStripe}
		provider.On("RetrieveCheckout", mock.Anything, "cs_1").Return(&subscription.CheckoutSession{
			ID: "cs_1", Paid: false, UserID: userID.String(), PriceID: "price_pro",
		}, nil)
		svc := newService(t, provider, store)

		_, err := svc.VerifySession(context.Background(), userID, subscription.ProviderStripe, "cs_1")
		assert.ErrorIs(t, err, subscription.ErrCheckoutNotPaid)

		_, err = store.Get(context.Background(), userID)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("provider outage is reported", func(t *testing.T) {
		t.Parallel()
		provider := &mockProvider{name: subscription.ProviderStripe}
		provider.On("RetrieveCheckout", mock.Anything, "cs_1").Return(nil, subscription.ErrProviderUnavailable)
		svc := newService(t, provider, subscription.NewMemoryStore())

		_, err := svc.VerifySession(context.Background(), uuid.New(), subscription.ProviderStripe, "cs_1")
		assert.ErrorIs(t, err, subscription.ErrProviderUnavailable)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, &mockProvider{name: subscription.ProviderStripe}, subscription.NewMemoryStore())
		_, err := svc.VerifySession(context.Background(), uuid.New(), subscription.ProviderPaddle, "txn_1")
		assert.ErrorIs(t, err, subscription.ErrUnknownProvider)
	})
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []subscription.Outcome
	checks   []subscription.Status
}

func (o *recordingObserver) WebhookHandled(_ subscription.ProviderName, _ subscription.EventType, outcome subscription.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) StatusChecked(status subscription.Status, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks = append(o.checks, status)
}

func (o *recordingObserver) ProviderCalled(subscription.ProviderName, string, time.Duration, error) {}

func TestService_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	f := newFixture(t, subscription.WithObserver(obs))
	userID := f.startTrial(t)
	payload := stripeCheckout(t, "evt_obs", userID, "price_pro")

	_, err := f.deliverStripe(t, payload)
	require.NoError(t, err)
	_, err = f.deliverStripe(t, payload)
	require.NoError(t, err)
	_, _ = f.svc.HandleWebhook(context.Background(), subscription.ProviderStripe, payload, http.Header{})
	_, err = f.svc.CheckStatus(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, []subscription.Outcome{
		subscription.OutcomeApplied,
		subscription.OutcomeDuplicate,
		subscription.OutcomeInvalid,
	}, obs.outcomes)
	assert.Equal(t, []subscription.Status{subscription.StatusActive}, obs.checks)
}
