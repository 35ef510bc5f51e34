// Package idempotency records which operations have already run, so that
// at-least-once deliveries (webhooks, retried jobs) take effect at most once.
//
// A caller claims a key before doing the work and releases it if the work
// fails, letting the next delivery retry:
//
//	ok, err := store.Claim(ctx, "stripe:evt_123", 72*time.Hour)
//	if err != nil {
//		return err
//	}
//	if !ok {
//		return nil // already processed
//	}
//	if err := process(); err != nil {
//		_ = store.Release(ctx, "stripe:evt_123")
//		return err
//	}
//
// MemoryStore is backed by the LRU in pkg/cache and suits single-instance
// deployments and tests. RedisStore uses SET NX with expiry and is safe to
// share between instances.
package idempotency
