// Package evaluation holds the dataset registry, the result store facade and
// the orchestrator that runs a model against a dataset exactly once per
// (model, evaluation) pair. HTTP handlers and MCP tools both delegate here.
package evaluation

import (
	"context"

	"github.com/rekcurd/dashboard/internal/model"
)

// Store is the persistence the evaluation services need. Both storage.DB and
// sqlite.DB implement it. Uniqueness of (application, checksum) and of
// (model, evaluation) is enforced by the store and reported as ErrConflict.
type Store interface {
	CreateEvaluation(ctx context.Context, e model.Evaluation) (model.Evaluation, error)
	GetEvaluationByChecksum(ctx context.Context, applicationID int64, checksum string) (model.Evaluation, error)
	ListEvaluations(ctx context.Context, applicationID int64) ([]model.Evaluation, error)
	GetEvaluation(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error)
	GetLatestEvaluation(ctx context.Context, applicationID int64) (model.Evaluation, error)
	DeleteEvaluation(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error)

	ListServicesByModel(ctx context.Context, applicationID, modelID int64) ([]model.Service, error)

	ListEvaluationResults(ctx context.Context, applicationID int64) ([]model.EvaluationResultEntry, error)
	GetEvaluationResult(ctx context.Context, applicationID, resultID int64) (model.EvaluationResult, error)
	FindEvaluationResult(ctx context.Context, modelID, evaluationID int64) (model.EvaluationResult, bool, error)
	CreateEvaluationResult(ctx context.Context, r model.EvaluationResult) (model.EvaluationResult, error)
	ReplaceEvaluationResult(ctx context.Context, r model.EvaluationResult) (model.EvaluationResult, error)
	DeleteEvaluationResult(ctx context.Context, applicationID, resultID int64) error
}

// Scorer is the remote model server capability. *scorer.Client implements it.
type Scorer interface {
	EvaluateModel(ctx context.Context, endpoint, dataPath, resultPath string) (model.Metrics, error)
	EvaluationResult(ctx context.Context, endpoint, dataPath, resultPath string) (model.Metrics, []model.Detail, error)
	UploadEvaluationData(ctx context.Context, endpoint, dataPath string, data []byte) error
}
