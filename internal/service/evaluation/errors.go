package evaluation

import (
	"fmt"

	"github.com/rekcurd/dashboard/internal/storage"
)

var (
	// ErrNotFound is the storage sentinel, re-exported so callers of this
	// package need not import storage.
	ErrNotFound = storage.ErrNotFound

	// ErrConflict matches any *ConflictError and storage conflicts.
	ErrConflict = storage.ErrConflict

	// ErrNoPriorResult is returned by an update when the pair has never been
	// scored. It matches ErrNotFound.
	ErrNoPriorResult = fmt.Errorf("no result to update: %w", ErrNotFound)
)

// ConflictError reports that a result already exists for the requested
// (model, evaluation) pair. errors.Is(err, ErrConflict) holds.
type ConflictError struct {
	ModelID      int64
	EvaluationID int64
	ResultID     int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("evaluation result %d already exists for model %d and evaluation %d",
		e.ResultID, e.ModelID, e.EvaluationID)
}

// Is makes errors.Is(err, ErrConflict) true.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
