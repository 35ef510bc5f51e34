package main

import (
	"github.com/dmitrymomot/journalkit/pkg/auth"
	"github.com/dmitrymomot/journalkit/pkg/httpserver"
	"github.com/dmitrymomot/journalkit/pkg/logger"
	"github.com/dmitrymomot/journalkit/pkg/ratelimiter"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

const (
	storeMemory   = "memory"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeMongo    = "mongo"

	dedupMemory = "memory"
	dedupRedis  = "redis"
)

// appConfig is everything the binary reads up front. Backend configs
// (pg, mongo, redis) have required fields, so they are loaded only when
// selected.
type appConfig struct {
	AppEnv          string `env:"APP_ENV" envDefault:"development"`
	Store           string `env:"BILLING_STORE" envDefault:"memory"`
	SQLitePath      string `env:"BILLING_SQLITE_PATH" envDefault:"journalkit.db"`
	MongoCollection string `env:"BILLING_MONGO_COLLECTION" envDefault:"subscriptions"`
	Dedup           string `env:"BILLING_DEDUP" envDefault:"memory"`
	DedupCapacity   int    `env:"BILLING_DEDUP_CAPACITY" envDefault:"10000"`
	Metrics         bool   `env:"METRICS_ENABLED" envDefault:"true"`
	RateLimited     bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	TrustProxy      bool   `env:"HTTP_TRUST_PROXY" envDefault:"false"`

	Log       logger.Config
	HTTP      httpserver.Config
	Auth      auth.Config
	Billing   subscription.Config
	RateLimit ratelimiter.Config
}
