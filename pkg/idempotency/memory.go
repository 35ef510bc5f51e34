package idempotency

import (
	"context"
	"time"

	"github.com/dmitrymomot/journalkit/pkg/cache"
)

// MemoryStore keeps claims in a bounded in-process LRU.
// Claims are lost on restart and not shared between instances.
type MemoryStore struct {
	claims *cache.LRUCache[string, struct{}]
}

// NewMemoryStore creates a store holding at most capacity live claims.
// When full, the least recently used claim is forgotten first.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{claims: cache.NewLRUCache[string, struct{}](capacity)}
}

// SetClock overrides the time source used for expiry. Intended for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.claims.SetClock(now)
}

func (m *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return m.claims.PutIfAbsent(key, struct{}{}, ttl), nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.claims.Remove(key)
	return nil
}
