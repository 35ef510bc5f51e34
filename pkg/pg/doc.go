// Package pg wraps pgx/v5 connection pooling, goose migrations, health checks
// and error classification for PostgreSQL.
//
// Config is populated from environment variables (PG_CONN_URL and friends).
// Connect opens a *pgxpool.Pool, retrying with a growing delay until the
// database answers a ping. Migrate runs goose migrations from an fs.FS over
// the same pool, so packages can embed their schema next to the queries that
// use it:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), cfg, slog.Default()); err != nil {
//		return err
//	}
//
// Setting PG_MIGRATIONS_PATH swaps the embedded files for a directory on disk.
//
// # Error Handling
//
// IsNotFoundError, IsDuplicateKeyError and IsSerializationError classify
// errors returned by pgx without callers touching *pgconn.PgError.
package pg
