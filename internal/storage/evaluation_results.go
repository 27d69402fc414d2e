package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rekcurd/dashboard/internal/model"
)

const resultColumns = `r.evaluation_result_id, r.model_id, r.evaluation_id, r.data_path, r.result, r.register_date`

func scanResult(row pgx.Row) (model.EvaluationResult, error) {
	var r model.EvaluationResult
	err := row.Scan(&r.EvaluationResultID, &r.ModelID, &r.EvaluationID, &r.DataPath, &r.Result, &r.CreatedAt)
	return r, err
}

// ListEvaluationResults returns every result whose dataset belongs to
// applicationID, joined with the dataset and the model.
func (db *DB) ListEvaluationResults(ctx context.Context, applicationID int64) ([]model.EvaluationResultEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.evaluation_result_id, r.result, r.register_date,
		        e.evaluation_id, e.application_id, e.checksum, e.description, e.data_path, e.register_date,
		        m.model_id, m.application_id, m.description, m.filepath, m.register_date
		 FROM evaluation_results r
		 JOIN evaluations e ON e.evaluation_id = r.evaluation_id
		 JOIN models m ON m.model_id = r.model_id
		 WHERE e.application_id = $1
		 ORDER BY r.evaluation_result_id ASC`, applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list evaluation results: %w", err)
	}
	defer rows.Close()

	entries := []model.EvaluationResultEntry{}
	for rows.Next() {
		var en model.EvaluationResultEntry
		if err := rows.Scan(
			&en.EvaluationResultID, &en.Result, &en.CreatedAt,
			&en.Evaluation.EvaluationID, &en.Evaluation.ApplicationID, &en.Evaluation.Checksum,
			&en.Evaluation.Description, &en.Evaluation.DataPath, &en.Evaluation.CreatedAt,
			&en.Model.ModelID, &en.Model.ApplicationID, &en.Model.Description,
			&en.Model.FilePath, &en.Model.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan evaluation result entry: %w", err)
		}
		entries = append(entries, en)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list evaluation results: %w", err)
	}
	return entries, nil
}

// GetEvaluationResult returns a result by id if its dataset belongs to applicationID.
func (db *DB) GetEvaluationResult(ctx context.Context, applicationID, resultID int64) (model.EvaluationResult, error) {
	r, err := scanResult(db.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM evaluation_results r
		 JOIN evaluations e ON e.evaluation_id = r.evaluation_id
		 WHERE e.application_id = $1 AND r.evaluation_result_id = $2`,
		applicationID, resultID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EvaluationResult{}, fmt.Errorf("storage: evaluation result %d: %w", resultID, ErrNotFound)
		}
		return model.EvaluationResult{}, fmt.Errorf("storage: get evaluation result: %w", err)
	}
	return r, nil
}

// FindEvaluationResult looks up the result for (modelID, evaluationID).
// Absence is reported through the bool, not as an error.
func (db *DB) FindEvaluationResult(ctx context.Context, modelID, evaluationID int64) (model.EvaluationResult, bool, error) {
	r, err := scanResult(db.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM evaluation_results r
		 WHERE r.model_id = $1 AND r.evaluation_id = $2`,
		modelID, evaluationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EvaluationResult{}, false, nil
		}
		return model.EvaluationResult{}, false, fmt.Errorf("storage: find evaluation result: %w", err)
	}
	return r, true, nil
}

// CreateEvaluationResult inserts a result. A result already stored for the
// same (model, evaluation) yields ErrConflict; a dataset or model deleted
// concurrently yields ErrNotFound.
func (db *DB) CreateEvaluationResult(ctx context.Context, r model.EvaluationResult) (model.EvaluationResult, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO evaluation_results (model_id, evaluation_id, data_path, result, register_date)
		 VALUES ($1, $2, $3, $4, $5) RETURNING evaluation_result_id`,
		r.ModelID, r.EvaluationID, r.DataPath, r.Result, r.CreatedAt,
	).Scan(&r.EvaluationResultID)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("storage: create evaluation result: %w", classify(err))
	}
	return r, nil
}

// ReplaceEvaluationResult overwrites the stored metrics and data path of an
// existing result in place. The id and register_date are kept.
func (db *DB) ReplaceEvaluationResult(ctx context.Context, r model.EvaluationResult) (model.EvaluationResult, error) {
	var out model.EvaluationResult
	err := withRetry(ctx, func() error {
		var err error
		out, err = scanResult(db.pool.QueryRow(ctx,
			`UPDATE evaluation_results r SET result = $2, data_path = $3
			 WHERE r.evaluation_result_id = $1
			 RETURNING `+resultColumns,
			r.EvaluationResultID, r.Result, r.DataPath,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EvaluationResult{}, fmt.Errorf("storage: evaluation result %d: %w", r.EvaluationResultID, ErrNotFound)
		}
		return model.EvaluationResult{}, fmt.Errorf("storage: replace evaluation result: %w", err)
	}
	return out, nil
}

// DeleteEvaluationResult removes a result if its dataset belongs to applicationID.
func (db *DB) DeleteEvaluationResult(ctx context.Context, applicationID, resultID int64) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM evaluation_results r
		 USING evaluations e
		 WHERE e.evaluation_id = r.evaluation_id
		   AND e.application_id = $1 AND r.evaluation_result_id = $2`,
		applicationID, resultID,
	)
	if err != nil {
		return fmt.Errorf("storage: delete evaluation result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: evaluation result %d: %w", resultID, ErrNotFound)
	}
	return nil
}
