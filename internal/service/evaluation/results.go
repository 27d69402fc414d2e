package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/scorer"
)

// Results reads and deletes stored evaluation results.
type Results struct {
	store  Store
	scorer Scorer
	logger *slog.Logger
}

// NewResults creates the result service.
func NewResults(store Store, scorer Scorer, logger *slog.Logger) *Results {
	return &Results{store: store, scorer: scorer, logger: logger}
}

// List returns the results of an application joined with dataset and model.
func (r *Results) List(ctx context.Context, applicationID int64) ([]model.EvaluationResultEntry, error) {
	return r.store.ListEvaluationResults(ctx, applicationID)
}

// Find returns the result for a (model, evaluation) pair; absence is not an error.
func (r *Results) Find(ctx context.Context, modelID, evaluationID int64) (model.EvaluationResult, bool, error) {
	return r.store.FindEvaluationResult(ctx, modelID, evaluationID)
}

// Get returns a stored result with its per-sample details, which are read
// back from a model server serving the result's model. Metrics come from
// the stored row.
func (r *Results) Get(ctx context.Context, applicationID, resultID int64) (model.ResultResponse, error) {
	res, err := r.store.GetEvaluationResult(ctx, applicationID, resultID)
	if err != nil {
		return model.ResultResponse{}, err
	}
	ds, err := r.store.GetEvaluation(ctx, applicationID, res.EvaluationID)
	if err != nil {
		return model.ResultResponse{}, fmt.Errorf("result %d: dataset: %w", resultID, err)
	}
	services, err := r.store.ListServicesByModel(ctx, applicationID, res.ModelID)
	if err != nil {
		return model.ResultResponse{}, fmt.Errorf("result %d: services: %w", resultID, err)
	}
	if len(services) == 0 {
		return model.ResultResponse{}, fmt.Errorf("result %d: no service serves model %d: %w", resultID, res.ModelID, ErrNotFound)
	}

	_, details, err := r.scorer.EvaluationResult(ctx, services[0].Endpoint(), ds.DataPath, res.DataPath)
	if err != nil {
		if errors.Is(err, scorer.ErrNotFound) {
			return model.ResultResponse{}, fmt.Errorf("result %d: details: %w", resultID, errors.Join(ErrNotFound, err))
		}
		return model.ResultResponse{}, fmt.Errorf("result %d: details: %w", resultID, err)
	}

	return model.ResultResponse{
		Status:  true,
		Metrics: model.ResultMetrics{MetricsView: res.Result, ResultID: res.EvaluationResultID},
		Details: model.DetailViews(details),
	}, nil
}

// Delete removes a result or returns ErrNotFound.
func (r *Results) Delete(ctx context.Context, applicationID, resultID int64) error {
	if err := r.store.DeleteEvaluationResult(ctx, applicationID, resultID); err != nil {
		return err
	}
	r.logger.Info("evaluation result deleted", "application_id", applicationID, "result_id", resultID)
	return nil
}
