// Package ratelimiter implements token bucket rate limiting for HTTP handlers.
//
// A Limiter applies one Config (capacity, refill rate, refill interval) to
// every key. Buckets live in a Store: MemoryStore for a single instance,
// RedisStore when replicas must share limits. RedisStore runs the refill and
// take steps in one Lua script so concurrent requests cannot overdraw.
//
//	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       60,
//		RefillRate:     60,
//		RefillInterval: time.Minute,
//	})
//	r.Use(clientip.Middleware(trustProxy))
//	r.Use(ratelimiter.Middleware(limiter))
//
// Middleware keys requests by client IP, sets X-RateLimit-* headers and
// answers 429 with a Retry-After hint once the bucket is empty.
package ratelimiter
