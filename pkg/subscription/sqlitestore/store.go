// Package sqlitestore persists subscriptions in SQLite using the pure Go
// modernc.org/sqlite driver. It suits single-instance deployments and local
// development where running PostgreSQL is overkill.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

// Store implements subscription.Store on a *sql.DB opened with Open.
type Store struct {
	db *sql.DB
}

var _ subscription.Store = (*Store)(nil)

// New wraps db. Migrations must already be applied.
func New(db *sql.DB) *Store {
	if db == nil {
		panic("sqlitestore: db is required")
	}
	return &Store{db: db}
}

const columns = `user_id, plan, status, trial_ends_at, provider, customer_id, subscription_id,
	current_period_end, cancel_at_period_end, last_event_at, version, created_at, updated_at`

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM subscriptions WHERE user_id = ?`, userID.String())
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM subscriptions WHERE provider = ? AND customer_id = ? ORDER BY updated_at DESC LIMIT 1`,
		string(provider), customerID,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to find subscription by customer: %w", err)
	}
	return sub, nil
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		sub.UserID.String(),
		string(sub.Plan),
		string(sub.Status),
		formatTimePtr(sub.TrialEndsAt),
		string(sub.Provider),
		sub.CustomerID,
		sub.SubscriptionID,
		formatTimePtr(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
		formatTimePtr(sub.LastEventAt),
		formatTime(sub.CreatedAt),
		formatTime(sub.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return subscription.ErrSubscriptionAlreadyExists
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.Version = 1
	return nil
}

func (s *Store) Update(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET
			plan = ?,
			status = ?,
			trial_ends_at = ?,
			provider = ?,
			customer_id = ?,
			subscription_id = ?,
			current_period_end = ?,
			cancel_at_period_end = ?,
			last_event_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE user_id = ? AND version = ?`,
		string(sub.Plan),
		string(sub.Status),
		formatTimePtr(sub.TrialEndsAt),
		string(sub.Provider),
		sub.CustomerID,
		sub.SubscriptionID,
		formatTimePtr(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
		formatTimePtr(sub.LastEventAt),
		formatTime(sub.UpdatedAt),
		sub.UserID.String(),
		sub.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = ?)`, sub.UserID.String(),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}
		if !exists {
			return subscription.ErrSubscriptionNotFound
		}
		return subscription.ErrVersionConflict
	}
	sub.Version++
	return nil
}

func scanSubscription(row *sql.Row) (*subscription.Subscription, error) {
	var (
		sub                            subscription.Subscription
		userID, plan, status, provider string
		createdAt, updatedAt           string
		trialEndsAt, periodEnd         sql.NullString
		lastEventAt                    sql.NullString
	)
	err := row.Scan(
		&userID,
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sub.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user_id %q: %w", userID, err)
	}
	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sub.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sub.TrialEndsAt, err = parseNullTime(trialEndsAt); err != nil {
		return nil, err
	}
	if sub.CurrentPeriodEnd, err = parseNullTime(periodEnd); err != nil {
		return nil, err
	}
	if sub.LastEventAt, err = parseNullTime(lastEventAt); err != nil {
		return nil, err
	}
	sub.Plan = entitlement.Plan(plan)
	sub.Status = subscription.Status(status)
	sub.Provider = subscription.ProviderName(provider)
	return &sub, nil
}

// Times are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
