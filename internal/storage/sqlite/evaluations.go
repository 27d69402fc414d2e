package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/storage"
)

const evaluationColumns = `evaluation_id, application_id, checksum, description, data_path, register_date`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (model.Evaluation, error) {
	var (
		e  model.Evaluation
		ts int64
	)
	if err := row.Scan(&e.EvaluationID, &e.ApplicationID, &e.Checksum, &e.Description, &e.DataPath, &ts); err != nil {
		return model.Evaluation{}, err
	}
	e.CreatedAt = fromNanos(ts)
	return e, nil
}

// CreateEvaluation inserts a dataset record. A duplicate checksum within the
// application fails with storage.ErrConflict.
func (d *DB) CreateEvaluation(ctx context.Context, e model.Evaluation) (model.Evaluation, error) {
	ts := toNanos(e.CreatedAt)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO evaluations (application_id, checksum, description, data_path, register_date)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ApplicationID, e.Checksum, e.Description, e.DataPath, ts)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("storage: create evaluation: %w", classify(err))
	}
	if e.EvaluationID, err = res.LastInsertId(); err != nil {
		return model.Evaluation{}, fmt.Errorf("storage: create evaluation: %w", err)
	}
	e.CreatedAt = fromNanos(ts)
	return e, nil
}

func (d *DB) getEvaluation(ctx context.Context, what, query string, args ...any) (model.Evaluation, error) {
	e, err := scanEvaluation(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Evaluation{}, fmt.Errorf("storage: %s: %w", what, storage.ErrNotFound)
		}
		return model.Evaluation{}, fmt.Errorf("storage: get %s: %w", what, err)
	}
	return e, nil
}

// GetEvaluationByChecksum returns the dataset in applicationID with checksum.
func (d *DB) GetEvaluationByChecksum(ctx context.Context, applicationID int64, checksum string) (model.Evaluation, error) {
	return d.getEvaluation(ctx, "evaluation by checksum",
		`SELECT `+evaluationColumns+` FROM evaluations WHERE application_id = ? AND checksum = ?`,
		applicationID, checksum)
}

// GetEvaluation returns a dataset by id, scoped to its application.
func (d *DB) GetEvaluation(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error) {
	return d.getEvaluation(ctx, fmt.Sprintf("evaluation %d", evaluationID),
		`SELECT `+evaluationColumns+` FROM evaluations WHERE application_id = ? AND evaluation_id = ?`,
		applicationID, evaluationID)
}

// GetLatestEvaluation returns the most recently created dataset of an application.
func (d *DB) GetLatestEvaluation(ctx context.Context, applicationID int64) (model.Evaluation, error) {
	return d.getEvaluation(ctx, fmt.Sprintf("latest evaluation of application %d", applicationID),
		`SELECT `+evaluationColumns+` FROM evaluations WHERE application_id = ?
		 ORDER BY register_date DESC, evaluation_id DESC LIMIT 1`,
		applicationID)
}

// ListEvaluations returns the datasets of an application in creation order.
func (d *DB) ListEvaluations(ctx context.Context, applicationID int64) ([]model.Evaluation, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE application_id = ? ORDER BY evaluation_id ASC`,
		applicationID)
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

// DeleteEvaluation removes a dataset and, by cascade, its results. It
// returns the deleted row.
func (d *DB) DeleteEvaluation(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error) {
	e, err := scanEvaluation(d.db.QueryRowContext(ctx,
		`DELETE FROM evaluations WHERE application_id = ? AND evaluation_id = ? RETURNING `+evaluationColumns,
		applicationID, evaluationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Evaluation{}, fmt.Errorf("storage: evaluation %d: %w", evaluationID, storage.ErrNotFound)
		}
		return model.Evaluation{}, fmt.Errorf("storage: delete evaluation: %w", err)
	}
	return e, nil
}
