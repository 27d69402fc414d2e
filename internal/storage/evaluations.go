package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rekcurd/dashboard/internal/model"
)

const evaluationColumns = `evaluation_id, application_id, checksum, description, data_path, register_date`

func scanEvaluation(row pgx.Row) (model.Evaluation, error) {
	var e model.Evaluation
	err := row.Scan(&e.EvaluationID, &e.ApplicationID, &e.Checksum, &e.Description, &e.DataPath, &e.CreatedAt)
	return e, err
}

// CreateEvaluation inserts a dataset record. A second dataset with the same
// (application_id, checksum) fails with ErrConflict.
func (db *DB) CreateEvaluation(ctx context.Context, e model.Evaluation) (model.Evaluation, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO evaluations (application_id, checksum, description, data_path, register_date)
		 VALUES ($1, $2, $3, $4, $5) RETURNING evaluation_id`,
		e.ApplicationID, e.Checksum, e.Description, e.DataPath, e.CreatedAt,
	).Scan(&e.EvaluationID)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("storage: create evaluation: %w", classify(err))
	}
	return e, nil
}

// GetEvaluationByChecksum returns the dataset in applicationID with checksum.
func (db *DB) GetEvaluationByChecksum(ctx context.Context, applicationID int64, checksum string) (model.Evaluation, error) {
	e, err := scanEvaluation(db.pool.QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations
		 WHERE application_id = $1 AND checksum = $2`, applicationID, checksum,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Evaluation{}, fmt.Errorf("storage: evaluation with checksum %s: %w", checksum, ErrNotFound)
		}
		return model.Evaluation{}, fmt.Errorf("storage: get evaluation by checksum: %w", err)
	}
	return e, nil
}

// ListEvaluations returns the datasets of an application in creation order.
func (db *DB) ListEvaluations(ctx context.Context, applicationID int64) ([]model.Evaluation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations
		 WHERE application_id = $1 ORDER BY evaluation_id ASC`, applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list evaluations: %w", err)
	}
	defer rows.Close()

	evals := []model.Evaluation{}
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan evaluation: %w", err)
		}
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list evaluations: %w", err)
	}
	return evals, nil
}

// GetEvaluation returns a dataset by id, scoped to its application.
func (db *DB) GetEvaluation(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error) {
	e, err := scanEvaluation(db.pool.QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations
		 WHERE application_id = $1 AND evaluation_id = $2`, applicationID, evaluationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Evaluation{}, fmt.Errorf("storage: evaluation %d: %w", evaluationID, ErrNotFound)
		}
		return model.Evaluation{}, fmt.Errorf("storage: get evaluation: %w", err)
	}
	return e, nil
}

// GetLatestEvaluation returns the most recently created dataset of an
// application. Ties on register_date go to the higher id.
func (db *DB) GetLatestEvaluation(ctx context.Context, applicationID int64) (model.Evaluation, error) {
	e, err := scanEvaluation(db.pool.QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations
		 WHERE application_id = $1
		 ORDER BY register_date DESC, evaluation_id DESC
		 LIMIT 1`, applicationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Evaluation{}, fmt.Errorf("storage: latest evaluation of application %d: %w", applicationID, ErrNotFound)
		}
		return model.Evaluation{}, fmt.Errorf("storage: get latest evaluation: %w", err)
	}
	return e, nil
}

// DeleteEvaluation removes a dataset and, by cascade, every result that
// references it. It returns the deleted row so the caller can drop the blob.
func (db *DB) DeleteEvaluation(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error) {
	var e model.Evaluation
	err := withRetry(ctx, func() error {
		var err error
		e, err = scanEvaluation(db.pool.QueryRow(ctx,
			`DELETE FROM evaluations WHERE application_id = $1 AND evaluation_id = $2
			 RETURNING `+evaluationColumns, applicationID, evaluationID,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Evaluation{}, fmt.Errorf("storage: evaluation %d: %w", evaluationID, ErrNotFound)
		}
		return model.Evaluation{}, fmt.Errorf("storage: delete evaluation: %w", err)
	}
	return e, nil
}
