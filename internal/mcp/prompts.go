package mcp

import (
	"context"
	"fmt"
	"strconv"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// compare-models: walks the agent through scoring and ranking models.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("compare-models",
			mcplib.WithPromptDescription("Score every candidate model on the newest dataset and rank them"),
			mcplib.WithArgument("project_id",
				mcplib.ArgumentDescription("Project the application belongs to"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("application_id",
				mcplib.ArgumentDescription("Application whose models are compared"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleCompareModelsPrompt,
	)
}

func (s *Server) handleCompareModelsPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	projectID, err := positiveArg(request.Params.Arguments, "project_id")
	if err != nil {
		return nil, err
	}
	applicationID, err := positiveArg(request.Params.Arguments, "application_id")
	if err != nil {
		return nil, err
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Compare models of application %d", applicationID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Compare the models of application %[2]d in project %[1]d:

1. CALL dashboard_list_evaluations with project_id=%[1]d, application_id=%[2]d.
   Note the newest evaluation_id. If there are none, stop: a dataset must be uploaded first.

2. CALL dashboard_list_results with the same ids and that evaluation_id.
   Models already listed have been scored; do not score them again.

3. For each candidate model not yet scored, CALL dashboard_evaluate with
   mode="create" and the evaluation_id from step 1.
   If a model service is unavailable, report it and move on.

4. CALL dashboard_list_results again and report the ranking by accuracy,
   quoting mean_fvalue and num for each model.`, projectID, applicationID),
				},
			},
		},
	}, nil
}

func positiveArg(args map[string]string, name string) (int64, error) {
	raw := args[name]
	if raw == "" {
		return 0, fmt.Errorf("%s argument is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}
