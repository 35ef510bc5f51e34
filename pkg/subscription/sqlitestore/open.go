package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOpen is returned when the database cannot be opened or migrated.
var ErrOpen = errors.New("sqlitestore: failed to open database")

// Open opens the SQLite database at path and applies the embedded migrations.
// SQLite allows a single writer, so the pool is capped at one connection
// and writers wait on the busy timeout instead of failing.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Join(ErrOpen, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrOpen, err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded goose migrations to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return errors.Join(ErrOpen, err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return errors.Join(ErrOpen, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Join(ErrOpen, fmt.Errorf("failed to apply migrations: %w", err))
	}
	return nil
}
