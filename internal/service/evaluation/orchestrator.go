package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rekcurd/dashboard/internal/blob"
	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/telemetry"
)

// Mode selects create or update semantics for Evaluate.
type Mode int

const (
	// ModeCreate scores only if no result exists yet for the pair.
	ModeCreate Mode = iota + 1
	// ModeUpdate re-scores and overwrites an existing result.
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	}
	return "unknown"
}

// OutcomeKind tells the boundary what Evaluate did.
type OutcomeKind int

const (
	Created OutcomeKind = iota + 1
	Replaced
)

// Outcome is a successful Evaluate. Metrics are the freshly computed ones.
type Outcome struct {
	Kind    OutcomeKind
	Result  model.EvaluationResult
	Metrics model.Metrics
}

// Response flattens the outcome into the evaluate response body.
func (o Outcome) Response() model.EvaluateResponse {
	return model.EvaluateResponse{
		Status:      true,
		ResultID:    o.Result.EvaluationResultID,
		MetricsView: o.Metrics.View(),
	}
}

// Orchestrator runs a model against a dataset and persists one result per
// (model, evaluation) pair.
type Orchestrator struct {
	store    Store
	registry *Registry
	scorer   Scorer
	logger   *slog.Logger

	tracer         trace.Tracer
	scorerDuration metric.Float64Histogram
	outcomes       metric.Int64Counter
}

// NewOrchestrator wires the orchestrator. registry supplies dataset bytes
// when they must be pushed to the model server.
func NewOrchestrator(store Store, registry *Registry, scorer Scorer, logger *slog.Logger) *Orchestrator {
	meter := telemetry.Meter("dashboard/evaluation")
	scorerDur, _ := meter.Float64Histogram("dashboard.scorer.duration",
		metric.WithDescription("Time spent in remote scoring calls (ms)"),
		metric.WithUnit("ms"),
	)
	outcomes, _ := meter.Int64Counter("dashboard.evaluate.outcomes",
		metric.WithDescription("Evaluate calls by outcome"),
	)
	return &Orchestrator{
		store:          store,
		registry:       registry,
		scorer:         scorer,
		logger:         logger,
		tracer:         telemetry.Tracer("dashboard/evaluation"),
		scorerDuration: scorerDur,
		outcomes:       outcomes,
	}
}

// Evaluate scores modelID against a dataset of applicationID. evaluationID
// selects the dataset; nil means the most recently uploaded one.
//
// Resolution of dataset and service happens before any remote call. A
// create for a pair that already has a result fails with *ConflictError; an
// update without a prior result fails with ErrNoPriorResult. A failed remote call
// leaves storage untouched.
func (o *Orchestrator) Evaluate(ctx context.Context, applicationID, modelID int64, evaluationID *int64, mode Mode) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "evaluation.Evaluate", trace.WithAttributes(
		attribute.Int64("dashboard.application_id", applicationID),
		attribute.Int64("dashboard.model_id", modelID),
		attribute.String("dashboard.mode", mode.String()),
	))
	defer span.End()

	out, err := o.evaluate(ctx, applicationID, modelID, evaluationID, mode)
	o.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeLabel(out, err))))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}
	span.SetAttributes(attribute.Int64("dashboard.result_id", out.Result.EvaluationResultID))
	return out, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, applicationID, modelID int64, evaluationID *int64, mode Mode) (Outcome, error) {
	if mode != ModeCreate && mode != ModeUpdate {
		return Outcome{}, fmt.Errorf("evaluate: unknown mode %d", mode)
	}

	ds, err := o.resolveDataset(ctx, applicationID, evaluationID)
	if err != nil {
		return Outcome{}, err
	}
	svc, err := o.resolveService(ctx, applicationID, modelID)
	if err != nil {
		return Outcome{}, err
	}

	existing, found, err := o.store.FindEvaluationResult(ctx, modelID, ds.EvaluationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluate: lookup result: %w", err)
	}

	switch {
	case mode == ModeCreate && found:
		return Outcome{}, &ConflictError{ModelID: modelID, EvaluationID: ds.EvaluationID, ResultID: existing.EvaluationResultID}
	case mode == ModeUpdate && !found:
		return Outcome{}, fmt.Errorf("evaluate: model %d evaluation %d: %w", modelID, ds.EvaluationID, ErrNoPriorResult)
	}

	resultPath := existing.DataPath
	if resultPath == "" {
		resultPath = blob.ResultKey(applicationID)
	}
	metrics, err := o.score(ctx, svc, ds, resultPath)
	if err != nil {
		return Outcome{}, err
	}

	if found {
		existing.Result = metrics.View()
		existing.DataPath = resultPath
		res, err := o.store.ReplaceEvaluationResult(ctx, existing)
		if err != nil {
			return Outcome{}, fmt.Errorf("evaluate: replace result: %w", err)
		}
		o.logger.Info("evaluation result replaced",
			"result_id", res.EvaluationResultID, "model_id", modelID, "evaluation_id", ds.EvaluationID)
		return Outcome{Kind: Replaced, Result: res, Metrics: metrics}, nil
	}

	res, err := o.store.CreateEvaluationResult(ctx, model.EvaluationResult{
		ModelID:      modelID,
		EvaluationID: ds.EvaluationID,
		DataPath:     resultPath,
		Result:       metrics.View(),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// A concurrent create won between lookup and insert.
			winner, ok, lookupErr := o.store.FindEvaluationResult(ctx, modelID, ds.EvaluationID)
			ce := &ConflictError{ModelID: modelID, EvaluationID: ds.EvaluationID}
			if lookupErr == nil && ok {
				ce.ResultID = winner.EvaluationResultID
			}
			return Outcome{}, ce
		}
		return Outcome{}, fmt.Errorf("evaluate: create result: %w", err)
	}
	o.logger.Info("evaluation result created",
		"result_id", res.EvaluationResultID, "model_id", modelID, "evaluation_id", ds.EvaluationID)
	return Outcome{Kind: Created, Result: res, Metrics: metrics}, nil
}

func (o *Orchestrator) resolveDataset(ctx context.Context, applicationID int64, evaluationID *int64) (model.Evaluation, error) {
	if evaluationID != nil {
		ds, err := o.store.GetEvaluation(ctx, applicationID, *evaluationID)
		if err != nil {
			return model.Evaluation{}, fmt.Errorf("evaluate: dataset: %w", err)
		}
		return ds, nil
	}
	ds, err := o.store.GetLatestEvaluation(ctx, applicationID)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("evaluate: latest dataset: %w", err)
	}
	return ds, nil
}

// resolveService picks a service serving modelID. Any match will do; the
// store orders them by service_id so the choice is stable.
func (o *Orchestrator) resolveService(ctx context.Context, applicationID, modelID int64) (model.Service, error) {
	services, err := o.store.ListServicesByModel(ctx, applicationID, modelID)
	if err != nil {
		return model.Service{}, fmt.Errorf("evaluate: services: %w", err)
	}
	if len(services) == 0 {
		return model.Service{}, fmt.Errorf("evaluate: no service serves model %d: %w", modelID, ErrNotFound)
	}
	return services[0], nil
}

// score pushes the dataset to the model server when it cannot read the data
// server itself, then runs the evaluation.
func (o *Orchestrator) score(ctx context.Context, svc model.Service, ds model.Evaluation, resultPath string) (model.Metrics, error) {
	start := time.Now()
	defer func() {
		o.scorerDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("service_id", svc.ServiceID)))
	}()

	endpoint := svc.Endpoint()
	if o.registry.DataMode() == blob.ModeLocal {
		data, err := o.registry.read(ctx, ds)
		if err != nil {
			return model.Metrics{}, fmt.Errorf("evaluate: read dataset: %w", err)
		}
		if err := o.scorer.UploadEvaluationData(ctx, endpoint, ds.DataPath, data); err != nil {
			return model.Metrics{}, fmt.Errorf("evaluate: stage dataset: %w", err)
		}
	}

	metrics, err := o.scorer.EvaluateModel(ctx, endpoint, ds.DataPath, resultPath)
	if err != nil {
		return model.Metrics{}, fmt.Errorf("evaluate: %w", err)
	}
	return metrics, nil
}

func outcomeLabel(out Outcome, err error) string {
	switch {
	case err == nil && out.Kind == Replaced:
		return "replaced"
	case err == nil:
		return "created"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
