package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	txMaxRetries = 3
	txBaseDelay  = 20 * time.Millisecond
)

// isRetriable reports whether err is a transient Postgres conflict. Cascading
// deletes of a dataset can deadlock with result writes on the same rows.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01": // deadlock_detected
		return true
	default:
		return false
	}
}

// withRetry runs fn, retrying on serialization or deadlock errors with
// jittered exponential backoff.
func withRetry(ctx context.Context, fn func() error) error {
	delay := txBaseDelay
	var err error
	for attempt := range txMaxRetries + 1 {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == txMaxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
	return err
}
