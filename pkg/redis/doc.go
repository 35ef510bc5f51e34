// Package redis connects go-redis clients with retries and exposes a
// readiness probe. The webhook deduplication store in pkg/idempotency runs
// on the client returned by Connect when several instances share one Redis.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	dedup := idempotency.NewRedisStore(client, idempotency.WithKeyPrefix(cfg.KeyPrefix+"webhook:"))
package redis
