// Package pgstore persists subscriptions in PostgreSQL through pgx/v5.
//
// Update is a compare-and-swap on the version column, so concurrent webhook
// deliveries for the same user resolve to exactly one write.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/pg"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements subscription.Store.
type Store struct {
	db DBTX
}

var _ subscription.Store = (*Store)(nil)

// New creates a Store over db. The schema from Migrations must be applied first.
func New(db DBTX) *Store {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Store{db: db}
}

const selectColumns = `user_id, plan, status, trial_ends_at, provider, customer_id, subscription_id,
	current_period_end, cancel_at_period_end, last_event_at, version, created_at, updated_at`

const (
	getQuery = `SELECT ` + selectColumns + ` FROM subscriptions WHERE user_id = $1`

	findByCustomerQuery = `SELECT ` + selectColumns + ` FROM subscriptions
	WHERE provider = $1 AND customer_id = $2
	ORDER BY updated_at DESC
	LIMIT 1`

	insertQuery = `INSERT INTO subscriptions (` + selectColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)`

	updateQuery = `UPDATE subscriptions SET
		plan = $2,
		status = $3,
		trial_ends_at = $4,
		provider = $5,
		customer_id = $6,
		subscription_id = $7,
		current_period_end = $8,
		cancel_at_period_end = $9,
		last_event_at = $10,
		updated_at = $11,
		version = version + 1
	WHERE user_id = $1 AND version = $12`

	existsQuery = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1)`
)

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, getQuery, userID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) FindByCustomerID(ctx context.Context, provider subscription.ProviderName, customerID string) (*subscription.Subscription, error) {
	if customerID == "" {
		return nil, subscription.ErrSubscriptionNotFound
	}

	sub, err := scanSubscription(s.db.QueryRow(ctx, findByCustomerQuery, string(provider), customerID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to find subscription by customer: %w", err)
	}
	return sub, nil
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.Exec(ctx, insertQuery,
		sub.UserID,
		string(sub.Plan),
		string(sub.Status),
		sub.TrialEndsAt,
		string(sub.Provider),
		sub.CustomerID,
		sub.SubscriptionID,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.LastEventAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return subscription.ErrSubscriptionAlreadyExists
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.Version = 1
	return nil
}

func (s *Store) Update(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := s.db.Exec(ctx, updateQuery,
		sub.UserID,
		string(sub.Plan),
		string(sub.Status),
		sub.TrialEndsAt,
		string(sub.Provider),
		sub.CustomerID,
		sub.SubscriptionID,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.LastEventAt,
		sub.UpdatedAt,
		sub.Version,
	)
	if err != nil {
		if pg.IsSerializationError(err) {
			return errors.Join(subscription.ErrVersionConflict, err)
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, sub.UserID)
	}
	sub.Version++
	return nil
}

// missOrConflict tells a missing row apart from a stale version after an update matched nothing.
func (s *Store) missOrConflict(ctx context.Context, userID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, existsQuery, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if !exists {
		return subscription.ErrSubscriptionNotFound
	}
	return subscription.ErrVersionConflict
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub                    subscription.Subscription
		plan, status, provider string
		trialEndsAt, periodEnd *time.Time
		lastEventAt            *time.Time
	)
	err := row.Scan(
		&sub.UserID,
		&plan,
		&status,
		&trialEndsAt,
		&provider,
		&sub.CustomerID,
		&sub.SubscriptionID,
		&periodEnd,
		&sub.CancelAtPeriodEnd,
		&lastEventAt,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Plan = entitlement.Plan(plan)
	sub.Status = subscription.Status(status)
	sub.Provider = subscription.ProviderName(provider)
	sub.TrialEndsAt = utcPtr(trialEndsAt)
	sub.CurrentPeriodEnd = utcPtr(periodEnd)
	sub.LastEventAt = utcPtr(lastEventAt)
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
