// Package blob is the data server: it holds uploaded evaluation datasets
// either on the local filesystem or in an S3-compatible bucket.
//
// Objects are addressed by a relative key, which is stored verbatim as the
// evaluation's data_path and handed to model servers.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Mode selects where evaluation data lives.
type Mode string

const (
	// ModeLocal keeps data on the dashboard's disk. Model servers cannot
	// read it, so datasets are pushed to them before scoring.
	ModeLocal Mode = "local"
	// ModeS3 keeps data in a bucket shared with the model servers.
	ModeS3 Mode = "s3"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal, ModeS3:
		return Mode(s), nil
	}
	return "", fmt.Errorf("blob: unknown data server mode %q (want local or s3)", s)
}

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("blob: not found")

// Store reads and writes evaluation data.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Mode() Mode
}

// EvaluationKey returns a fresh object key for a dataset of applicationID.
func EvaluationKey(applicationID int64) string {
	return fmt.Sprintf("applications/%d/evaluations/%s", applicationID, uuid.NewString())
}

// ResultKey returns a fresh key under which a model server stores
// per-sample details for one evaluation result.
func ResultKey(applicationID int64) string {
	return fmt.Sprintf("applications/%d/evaluation_results/%s", applicationID, uuid.NewString())
}

// ReadAll opens key and returns its full contents.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", key, err)
	}
	return b, nil
}
