package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
)

func (s *Server) registerTools() {
	// dashboard_list_evaluations: datasets uploaded to an application.
	s.mcpServer.AddTool(
		mcplib.NewTool("dashboard_list_evaluations",
			mcplib.WithDescription(`List the evaluation datasets uploaded to an application.

WHEN TO USE: Before scoring a model, to pick the dataset to score against.
Datasets are returned oldest first. dashboard_evaluate uses the newest one
when evaluation_id is omitted.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			withScope(),
		),
		s.handleListEvaluations,
	)

	// dashboard_evaluate: score a model against a dataset.
	s.mcpServer.AddTool(
		mcplib.NewTool("dashboard_evaluate",
			mcplib.WithDescription(`Score a model against an evaluation dataset and store the result.

WHEN TO USE: To measure a model. The model is scored by one of its running
services; the call blocks until scoring finishes.

MODES:
- create (default): fails if the model was already scored on the dataset.
- update: re-scores and overwrites an existing result.

WHAT YOU GET BACK: result_id plus accuracy, precision, recall, fvalue,
num, label and option.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			withScope(),
			mcplib.WithNumber("model_id",
				mcplib.Description("The model to score"),
				mcplib.Required(),
				mcplib.Min(1),
			),
			mcplib.WithNumber("evaluation_id",
				mcplib.Description("Dataset to score against. Defaults to the most recently uploaded dataset."),
				mcplib.Min(1),
			),
			mcplib.WithString("mode",
				mcplib.Description("create or update"),
				mcplib.Enum(evaluation.ModeCreate.String(), evaluation.ModeUpdate.String()),
				mcplib.DefaultString(evaluation.ModeCreate.String()),
			),
		),
		s.handleEvaluate,
	)

	// dashboard_list_results: stored results, best first.
	s.mcpServer.AddTool(
		mcplib.NewTool("dashboard_list_results",
			mcplib.WithDescription(`List stored evaluation results of an application, best accuracy first.

WHEN TO USE: To compare models. Each row names the model and dataset and
summarizes the scores; per-label arrays are reduced to mean_fvalue.
Filter with model_id or evaluation_id to narrow the comparison.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			withScope(),
			mcplib.WithNumber("model_id",
				mcplib.Description("Optional: only results for this model"),
				mcplib.Min(1),
			),
			mcplib.WithNumber("evaluation_id",
				mcplib.Description("Optional: only results on this dataset"),
				mcplib.Min(1),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of results to return"),
				mcplib.Min(1),
				mcplib.Max(100),
				mcplib.DefaultNumber(20),
			),
		),
		s.handleListResults,
	)
}

// withScope adds the project_id and application_id arguments every tool takes.
func withScope() mcplib.ToolOption {
	return func(t *mcplib.Tool) {
		mcplib.WithNumber("project_id", mcplib.Description("Project the application belongs to"), mcplib.Required(), mcplib.Min(1))(t)
		mcplib.WithNumber("application_id", mcplib.Description("Application to operate on"), mcplib.Required(), mcplib.Min(1))(t)
	}
}

func (s *Server) scope(ctx context.Context, request mcplib.CallToolRequest) (model.Application, error) {
	return s.application(ctx,
		int64(request.GetInt("project_id", 0)),
		int64(request.GetInt("application_id", 0)),
	)
}

func (s *Server) handleListEvaluations(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	app, err := s.scope(ctx, request)
	if err != nil {
		return serviceErrorResult(err), nil
	}

	evals, err := s.registry.List(ctx, app.ApplicationID)
	if err != nil {
		return serviceErrorResult(err), nil
	}

	out := make([]map[string]any, 0, len(evals))
	for _, e := range evals {
		out = append(out, compactEvaluation(e))
	}
	return jsonResult(map[string]any{
		"application_id": app.ApplicationID,
		"evaluations":    out,
		"total":          len(out),
	})
}

func (s *Server) handleEvaluate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	app, err := s.scope(ctx, request)
	if err != nil {
		return serviceErrorResult(err), nil
	}

	modelID := int64(request.GetInt("model_id", 0))
	if modelID <= 0 {
		return errorResult("model_id is required"), nil
	}

	var evaluationID *int64
	if id := int64(request.GetInt("evaluation_id", 0)); id > 0 {
		evaluationID = &id
	}

	var mode evaluation.Mode
	switch m := request.GetString("mode", evaluation.ModeCreate.String()); m {
	case evaluation.ModeCreate.String():
		mode = evaluation.ModeCreate
	case evaluation.ModeUpdate.String():
		mode = evaluation.ModeUpdate
	default:
		return errorResult(fmt.Sprintf("mode must be create or update, got %q", m)), nil
	}

	out, err := s.orchestrator.Evaluate(ctx, app.ApplicationID, modelID, evaluationID, mode)
	if err != nil {
		s.logger.Warn("mcp: evaluate failed",
			"application_id", app.ApplicationID, "model_id", modelID, "mode", mode.String(), "error", err)
		return serviceErrorResult(err), nil
	}
	return jsonResult(out.Response())
}

func (s *Server) handleListResults(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	app, err := s.scope(ctx, request)
	if err != nil {
		return serviceErrorResult(err), nil
	}

	modelID := int64(request.GetInt("model_id", 0))
	evaluationID := int64(request.GetInt("evaluation_id", 0))
	limit := request.GetInt("limit", 20)
	if limit < 1 {
		limit = 20
	}

	entries, err := s.results.List(ctx, app.ApplicationID)
	if err != nil {
		return serviceErrorResult(err), nil
	}

	filtered := entries[:0]
	for _, e := range entries {
		if modelID > 0 && e.Model.ModelID != modelID {
			continue
		}
		if evaluationID > 0 && e.Evaluation.EvaluationID != evaluationID {
			continue
		}
		filtered = append(filtered, e)
	}
	rankResults(filtered)

	total := len(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	out := make([]map[string]any, 0, len(filtered))
	for _, e := range filtered {
		out = append(out, compactResult(e))
	}
	return jsonResult(map[string]any{
		"application_id": app.ApplicationID,
		"results":        out,
		"total":          total,
	})
}
