package idempotency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyKey is returned when claiming or releasing an empty key.
	ErrEmptyKey = errors.New("idempotency: key is required")

	// ErrStoreFailure wraps backend errors. The claim state is unknown and the caller should fail.
	ErrStoreFailure = errors.New("idempotency: store failure")
)

// Store claims keys for a limited time so an operation runs at most once per key.
type Store interface {
	// Claim marks key as taken for ttl. Returns false if it is already taken.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees key so the operation can be retried.
	Release(ctx context.Context, key string) error
}
