package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// constraint, e.g. a second result for the same (model, evaluation).
	ErrConflict = errors.New("storage: conflict")
)

// Postgres error codes mapped onto the sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify maps constraint violations onto ErrConflict and ErrNotFound.
// A foreign key violation means a parent row (model, evaluation,
// application) is gone. Other errors are returned unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return errors.Join(ErrConflict, err)
	case pgForeignKeyViolation:
		return errors.Join(ErrNotFound, err)
	}
	return err
}
