package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/storage"
)

const resultColumns = `r.evaluation_result_id, r.model_id, r.evaluation_id, r.data_path, r.result, r.register_date`

func scanResult(row scanner) (model.EvaluationResult, error) {
	var (
		r   model.EvaluationResult
		raw string
		ts  int64
	)
	if err := row.Scan(&r.EvaluationResultID, &r.ModelID, &r.EvaluationID, &r.DataPath, &raw, &ts); err != nil {
		return model.EvaluationResult{}, err
	}
	if err := json.Unmarshal([]byte(raw), &r.Result); err != nil {
		return model.EvaluationResult{}, fmt.Errorf("decode result column: %w", err)
	}
	r.CreatedAt = fromNanos(ts)
	return r, nil
}

// ListEvaluationResults returns every result whose dataset belongs to
// applicationID, joined with the dataset and the model.
func (d *DB) ListEvaluationResults(ctx context.Context, applicationID int64) ([]model.EvaluationResultEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT r.evaluation_result_id, r.result, r.register_date,
		        e.evaluation_id, e.application_id, e.checksum, e.description, e.data_path, e.register_date,
		        m.model_id, m.application_id, m.description, m.filepath, m.register_date
		 FROM evaluation_results r
		 JOIN evaluations e ON e.evaluation_id = r.evaluation_id
		 JOIN models m ON m.model_id = r.model_id
		 WHERE e.application_id = ?
		 ORDER BY r.evaluation_result_id ASC`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("storage: list evaluation results: %w", err)
	}
	defer rows.Close()

	entries := []model.EvaluationResultEntry{}
	for rows.Next() {
		var (
			en            model.EvaluationResultEntry
			raw           string
			rTS, eTS, mTS int64
		)
		if err := rows.Scan(
			&en.EvaluationResultID, &raw, &rTS,
			&en.Evaluation.EvaluationID, &en.Evaluation.ApplicationID, &en.Evaluation.Checksum,
			&en.Evaluation.Description, &en.Evaluation.DataPath, &eTS,
			&en.Model.ModelID, &en.Model.ApplicationID, &en.Model.Description, &en.Model.FilePath, &mTS,
		); err != nil {
			return nil, fmt.Errorf("storage: scan evaluation result entry: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &en.Result); err != nil {
			return nil, fmt.Errorf("storage: decode result column: %w", err)
		}
		en.CreatedAt = fromNanos(rTS)
		en.Evaluation.CreatedAt = fromNanos(eTS)
		en.Model.CreatedAt = fromNanos(mTS)
		entries = append(entries, en)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list evaluation results: %w", err)
	}
	return entries, nil
}

// GetEvaluationResult returns a result by id if its dataset belongs to applicationID.
func (d *DB) GetEvaluationResult(ctx context.Context, applicationID, resultID int64) (model.EvaluationResult, error) {
	r, err := scanResult(d.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+`
		 FROM evaluation_results r
		 JOIN evaluations e ON e.evaluation_id = r.evaluation_id
		 WHERE e.application_id = ? AND r.evaluation_result_id = ?`,
		applicationID, resultID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EvaluationResult{}, fmt.Errorf("storage: evaluation result %d: %w", resultID, storage.ErrNotFound)
		}
		return model.EvaluationResult{}, fmt.Errorf("storage: get evaluation result: %w", err)
	}
	return r, nil
}

// FindEvaluationResult looks up the result for (modelID, evaluationID).
// Absence is reported through the bool, not as an error.
func (d *DB) FindEvaluationResult(ctx context.Context, modelID, evaluationID int64) (model.EvaluationResult, bool, error) {
	r, err := scanResult(d.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM evaluation_results r WHERE r.model_id = ? AND r.evaluation_id = ?`,
		modelID, evaluationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EvaluationResult{}, false, nil
		}
		return model.EvaluationResult{}, false, fmt.Errorf("storage: find evaluation result: %w", err)
	}
	return r, true, nil
}

// CreateEvaluationResult inserts a result. A second result for the same
// (model, evaluation) yields storage.ErrConflict; a missing parent yields
// storage.ErrNotFound.
func (d *DB) CreateEvaluationResult(ctx context.Context, r model.EvaluationResult) (model.EvaluationResult, error) {
	raw, err := json.Marshal(r.Result)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("storage: encode result: %w", err)
	}
	ts := toNanos(r.CreatedAt)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO evaluation_results (model_id, evaluation_id, data_path, result, register_date)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ModelID, r.EvaluationID, r.DataPath, string(raw), ts)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("storage: create evaluation result: %w", classify(err))
	}
	if r.EvaluationResultID, err = res.LastInsertId(); err != nil {
		return model.EvaluationResult{}, fmt.Errorf("storage: create evaluation result: %w", err)
	}
	r.CreatedAt = fromNanos(ts)
	return r, nil
}

// ReplaceEvaluationResult overwrites the stored metrics and data path of an
// existing result in place.
func (d *DB) ReplaceEvaluationResult(ctx context.Context, r model.EvaluationResult) (model.EvaluationResult, error) {
	raw, err := json.Marshal(r.Result)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("storage: encode result: %w", err)
	}
	out, err := scanResult(d.db.QueryRowContext(ctx,
		`UPDATE evaluation_results SET result = ?, data_path = ?
		 WHERE evaluation_result_id = ?
		 RETURNING evaluation_result_id, model_id, evaluation_id, data_path, result, register_date`,
		string(raw), r.DataPath, r.EvaluationResultID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EvaluationResult{}, fmt.Errorf("storage: evaluation result %d: %w", r.EvaluationResultID, storage.ErrNotFound)
		}
		return model.EvaluationResult{}, fmt.Errorf("storage: replace evaluation result: %w", err)
	}
	return out, nil
}

// DeleteEvaluationResult removes a result if its dataset belongs to applicationID.
func (d *DB) DeleteEvaluationResult(ctx context.Context, applicationID, resultID int64) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM evaluation_results
		 WHERE evaluation_result_id = ?
		   AND evaluation_id IN (SELECT evaluation_id FROM evaluations WHERE application_id = ?)`,
		resultID, applicationID)
	if err != nil {
		return fmt.Errorf("storage: delete evaluation result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete evaluation result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage: evaluation result %d: %w", resultID, storage.ErrNotFound)
	}
	return nil
}
