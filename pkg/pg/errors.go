package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString    = errors.New("postgres connection string is empty, set PG_CONN_URL")
	ErrFailedToParseDBConfig    = errors.New("invalid postgres connection string")
	ErrFailedToOpenDBConnection = errors.New("postgres is not reachable")
	ErrHealthcheckFailed        = errors.New("postgres healthcheck failed")
	ErrFailedToApplyMigrations  = errors.New("failed to apply postgres migrations")
	ErrMigrationsDirNotFound    = errors.New("migrations directory not found")
	ErrMigrationPathNotProvided = errors.New("no migrations provided")
)

// SQLSTATE codes the stores branch on.
const (
	codeUniqueViolation = "23505"
	codeSerialization   = "40001"
)

// IsNotFoundError reports whether err is pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation, such as a second
// subscription row for the same user.
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsSerializationError reports a serialization failure that is safe to retry.
func IsSerializationError(err error) bool {
	return hasCode(err, codeSerialization)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
