package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store defines the interface for subscription persistence.
// Each user has exactly one subscription, so UserID serves as the primary key.
type Store interface {
	// Get retrieves a subscription by user ID.
	// Returns ErrSubscriptionNotFound if no subscription exists.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// FindByCustomerID looks a subscription up by the provider's customer ID.
	// Returns ErrSubscriptionNotFound if none matches.
	FindByCustomerID(ctx context.Context, provider ProviderName, customerID string) (*Subscription, error)

	// Create inserts a new record with Version 1.
	// Returns ErrSubscriptionAlreadyExists if the user already has one.
	Create(ctx context.Context, sub *Subscription) error

	// Update persists sub only if the stored Version equals sub.Version,
	// then increments sub.Version. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, sub *Subscription) error
}

// MemoryStore is a Store backed by a map. Suitable for tests and single-instance development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]*Subscription)}
}

func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (m *MemoryStore) FindByCustomerID(_ context.Context, provider ProviderName, customerID string) (*Subscription, error) {
	if customerID == "" {
		return nil, ErrSubscriptionNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subs {
		if sub.Provider == provider && sub.CustomerID == customerID {
			return sub.Clone(), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subs[sub.UserID]; exists {
		return ErrSubscriptionAlreadyExists
	}
	sub.Version = 1
	m.subs[sub.UserID] = sub.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.subs[sub.UserID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if current.Version != sub.Version {
		return ErrVersionConflict
	}
	sub.Version++
	m.subs[sub.UserID] = sub.Clone()
	return nil
}
