package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/journalkit/pkg/config"
	"github.com/dmitrymomot/journalkit/pkg/httpserver"
	"github.com/dmitrymomot/journalkit/pkg/idempotency"
	"github.com/dmitrymomot/journalkit/pkg/logger"
	"github.com/dmitrymomot/journalkit/pkg/metrics"
	"github.com/dmitrymomot/journalkit/pkg/mongo"
	"github.com/dmitrymomot/journalkit/pkg/pg"
	"github.com/dmitrymomot/journalkit/pkg/ratelimiter"
	"github.com/dmitrymomot/journalkit/pkg/redis"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
	"github.com/dmitrymomot/journalkit/pkg/subscription/mongostore"
	"github.com/dmitrymomot/journalkit/pkg/subscription/pgstore"
	"github.com/dmitrymomot/journalkit/pkg/subscription/sqlitestore"
)

var errUnknownBackend = errors.New("unknown backend")

// app owns every resource opened for one command run.
type app struct {
	cfg     appConfig
	log     *slog.Logger
	store   subscription.Store
	dedup   subscription.Deduplicator
	limiter *ratelimiter.Limiter
	metrics *metrics.Metrics
	checks  []httpserver.Check
	closers []func(context.Context) error

	redis       goredis.UniversalClient
	redisPrefix string
}

// openApp connects the configured store, deduplication backend and rate
// limiter. The limiter shares Redis with deduplication when it is selected.
// When migrate is true the store schema is brought up to date first.
func openApp(ctx context.Context, cfg appConfig, log *slog.Logger, migrate bool) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if cfg.Metrics {
		a.metrics = metrics.New(nil)
	}

	if err := a.openStore(ctx, migrate); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	if err := a.openDedup(ctx); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	if err := a.openLimiter(); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, migrate bool) error {
	log := a.log.With(logger.Component("store"), slog.String("backend", a.cfg.Store))

	switch a.cfg.Store {
	case storeMemory, "":
		a.store = subscription.NewMemoryStore()

	case storeSQLite:
		db, err := sqlitestore.Open(ctx, a.cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		a.checks = append(a.checks, httpserver.Check{Name: "sqlite", Probe: db.PingContext})
		a.store = sqlitestore.New(db)

	case storePostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		if migrate {
			if err := pg.Migrate(ctx, pool, pgstore.Migrations(), pgCfg, log); err != nil {
				return err
			}
		}
		a.checks = append(a.checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)})
		a.store = pgstore.New(pool)

	case storeMongo:
		var mCfg mongo.Config
		if err := config.Load(&mCfg); err != nil {
			return err
		}
		client, err := mongo.New(ctx, mCfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Disconnect)
		store := mongostore.New(client.Database(mCfg.Database), a.cfg.MongoCollection)
		if migrate {
			if err := store.EnsureIndexes(ctx); err != nil {
				return err
			}
		}
		a.checks = append(a.checks, httpserver.Check{Name: "mongo", Probe: mongo.Healthcheck(client)})
		a.store = store

	default:
		return fmt.Errorf("%w: BILLING_STORE=%q", errUnknownBackend, a.cfg.Store)
	}

	log.InfoContext(ctx, "subscription store ready")
	return nil
}

func (a *app) openDedup(ctx context.Context) error {
	switch a.cfg.Dedup {
	case dedupMemory, "":
		a.dedup = idempotency.NewMemoryStore(max(a.cfg.DedupCapacity, 1))

	case dedupRedis:
		var rCfg redis.Config
		if err := config.Load(&rCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, rCfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
		a.redis = client
		a.dedup = idempotency.NewRedisStore(client, idempotency.WithKeyPrefix(rCfg.KeyPrefix+"webhook:"))
		a.redisPrefix = rCfg.KeyPrefix

	default:
		return fmt.Errorf("%w: BILLING_DEDUP=%q", errUnknownBackend, a.cfg.Dedup)
	}
	return nil
}

func (a *app) openLimiter() error {
	if !a.cfg.RateLimited {
		return nil
	}

	var store ratelimiter.Store
	if a.redis != nil {
		store = ratelimiter.NewRedisStore(a.redis, ratelimiter.WithRedisKeyPrefix(a.redisPrefix+"ratelimit:"))
	} else {
		ms := ratelimiter.NewMemoryStore()
		a.closers = append(a.closers, func(context.Context) error { return ms.Close() })
		store = ms
	}

	limiter, err := ratelimiter.New(store, a.cfg.RateLimit)
	if err != nil {
		return err
	}
	a.limiter = limiter
	return nil
}

// service builds the subscription service on top of the opened backends.
func (a *app) service() (subscription.Service, error) {
	prices, err := a.cfg.Billing.PriceTable()
	if err != nil {
		return nil, err
	}
	providers, err := a.cfg.Billing.Providers(subscription.WithProviderLogger(a.log))
	if err != nil {
		return nil, err
	}

	opts := append(a.cfg.Billing.ServiceOptions(),
		subscription.WithLogger(a.log),
		subscription.WithDeduplicator(a.dedup, a.cfg.Billing.IdempotencyTTL),
	)
	if a.metrics != nil {
		opts = append(opts, subscription.WithObserver(a.metrics))
	}
	return subscription.NewService(a.store, prices, providers, opts...)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, closeFn := range slices.Backward(a.closers) {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
