// Package storetest holds the behavioural contract every subscription.Store
// implementation must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

// Factory returns a ready store. Subtests use fresh user and customer IDs,
// so a single shared database is fine.
type Factory func(t *testing.T) subscription.Store

// Run executes the contract against the store returned by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("create round trips every field", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := paidSubscription()
		sub.Version = 42
		require.NoError(t, store.Create(ctx, sub))
		assert.Equal(t, int64(1), sub.Version)

		got, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		assertSameSubscription(t, sub, got)
	})

	t.Run("create keeps nil times nil", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := trialSubscription()
		require.NoError(t, store.Create(ctx, sub))

		got, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		assertSameSubscription(t, sub, got)
		assert.Nil(t, got.CurrentPeriodEnd)
		assert.Empty(t, got.CustomerID)
	})

	t.Run("create duplicate", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := trialSubscription()
		require.NoError(t, store.Create(ctx, sub))

		dup := trialSubscription()
		dup.UserID = sub.UserID
		assert.ErrorIs(t, store.Create(ctx, dup), subscription.ErrSubscriptionAlreadyExists)
	})

	t.Run("update compares versions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := trialSubscription()
		require.NoError(t, store.Create(ctx, sub))

		fresh, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		stale := fresh.Clone()

		periodEnd := at(2025, 4, 1)
		fresh.Status = subscription.StatusActive
		fresh.Plan = entitlement.PlanUnlimited
		fresh.Provider = subscription.ProviderStripe
		fresh.CustomerID = "cus_" + uuid.NewString()
		fresh.SubscriptionID = "sub_" + uuid.NewString()
		fresh.CurrentPeriodEnd = &periodEnd
		lastEvent := at(2025, 3, 2)
		fresh.LastEventAt = &lastEvent
		fresh.UpdatedAt = at(2025, 3, 2)
		require.NoError(t, store.Update(ctx, fresh))
		assert.Equal(t, int64(2), fresh.Version)

		stale.Status = subscription.StatusExpired
		assert.ErrorIs(t, store.Update(ctx, stale), subscription.ErrVersionConflict)

		got, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		assertSameSubscription(t, fresh, got)
	})

	t.Run("update missing", func(t *testing.T) {
		store := newStore(t)

		sub := trialSubscription()
		sub.Version = 1
		assert.ErrorIs(t, store.Update(context.Background(), sub), subscription.ErrSubscriptionNotFound)
	})

	t.Run("find by customer id", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := paidSubscription()
		require.NoError(t, store.Create(ctx, sub))

		got, err := store.FindByCustomerID(ctx, sub.Provider, sub.CustomerID)
		require.NoError(t, err)
		assert.Equal(t, sub.UserID, got.UserID)

		_, err = store.FindByCustomerID(ctx, subscription.ProviderPaddle, sub.CustomerID)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound, "lookup is scoped to the provider")

		_, err = store.FindByCustomerID(ctx, sub.Provider, "")
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("concurrent updates apply once", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := trialSubscription()
		require.NoError(t, store.Create(ctx, sub))

		const writers = 8
		var (
			wg        sync.WaitGroup
			applied   atomic.Int32
			conflicts atomic.Int32
		)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cp := sub.Clone()
				cp.SubscriptionID = "sub_" + uuid.NewString()
				cp.UpdatedAt = sub.UpdatedAt.Add(time.Duration(i+1) * time.Second)
				switch err := store.Update(ctx, cp); {
				case err == nil:
					applied.Add(1)
				case assert.ErrorIs(t, err, subscription.ErrVersionConflict):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), applied.Load())
		assert.Equal(t, int32(writers-1), conflicts.Load())

		got, err := store.Get(ctx, sub.UserID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func trialSubscription() *subscription.Subscription {
	trialEnd := at(2025, 3, 8)
	return &subscription.Subscription{
		UserID:      uuid.New(),
		Plan:        entitlement.PlanTrial,
		Status:      subscription.StatusTrial,
		TrialEndsAt: &trialEnd,
		CreatedAt:   at(2025, 3, 1),
		UpdatedAt:   at(2025, 3, 1),
	}
}

func paidSubscription() *subscription.Subscription {
	trialEnd := at(2025, 3, 8)
	periodEnd := at(2025, 4, 3)
	lastEvent := at(2025, 3, 3)
	return &subscription.Subscription{
		UserID:            uuid.New(),
		Plan:              entitlement.PlanPro,
		Status:            subscription.StatusActive,
		TrialEndsAt:       &trialEnd,
		Provider:          subscription.ProviderLemonSqueezy,
		CustomerID:        uuid.NewString(),
		SubscriptionID:    uuid.NewString(),
		CurrentPeriodEnd:  &periodEnd,
		CancelAtPeriodEnd: true,
		LastEventAt:       &lastEvent,
		CreatedAt:         at(2025, 3, 1),
		UpdatedAt:         at(2025, 3, 3),
	}
}

func assertSameSubscription(t *testing.T, want, got *subscription.Subscription) {
	t.Helper()

	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Plan, got.Plan)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Provider, got.Provider)
	assert.Equal(t, want.CustomerID, got.CustomerID)
	assert.Equal(t, want.SubscriptionID, got.SubscriptionID)
	assert.Equal(t, want.CancelAtPeriodEnd, got.CancelAtPeriodEnd)
	assert.Equal(t, want.Version, got.Version)
	assertSameTime(t, &want.CreatedAt, &got.CreatedAt, "created_at")
	assertSameTime(t, &want.UpdatedAt, &got.UpdatedAt, "updated_at")
	assertSameTime(t, want.TrialEndsAt, got.TrialEndsAt, "trial_ends_at")
	assertSameTime(t, want.CurrentPeriodEnd, got.CurrentPeriodEnd, "current_period_end")
	assertSameTime(t, want.LastEventAt, got.LastEventAt, "last_event_at")
}

func assertSameTime(t *testing.T, want, got *time.Time, field string) {
	t.Helper()

	if want == nil {
		assert.Nil(t, got, field)
		return
	}
	if assert.NotNil(t, got, field) {
		assert.True(t, want.Equal(*got), "%s: want %s, got %s", field, want, got)
	}
}
