package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			var pgErr *pgconn.PgError
			assert.ErrorAs(t, got, &pgErr, "pg error stays reachable")
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain))
	check := &pgconn.PgError{Code: "23514"}
	assert.Equal(t, error(check), classify(check))
}

func TestWithRetry(t *testing.T) {
	t.Run("retries deadlocks then succeeds", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40P01"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), func() error {
			calls++
			return &pgconn.PgError{Code: "23505"}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), func() error {
			calls++
			return &pgconn.PgError{Code: "40001"}
		})
		assert.True(t, isRetriable(err))
		assert.Equal(t, txMaxRetries+1, calls)
	})
}
