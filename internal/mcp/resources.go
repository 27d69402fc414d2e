package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const resourcePrefix = "dashboard://projects/"

func (s *Server) registerResources() {
	// dashboard://projects/{project_id}/applications/{application_id}/evaluations
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			resourcePrefix+"{project_id}/applications/{application_id}/evaluations",
			"Evaluation Datasets",
			mcplib.WithTemplateDescription("Evaluation datasets uploaded to an application"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleEvaluationsResource,
	)

	// dashboard://projects/{project_id}/applications/{application_id}/results
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			resourcePrefix+"{project_id}/applications/{application_id}/results",
			"Evaluation Results",
			mcplib.WithTemplateDescription("Stored evaluation results of an application, best accuracy first"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleResultsResource,
	)
}

// parseApplicationURI extracts the ids from
// dashboard://projects/{project_id}/applications/{application_id}/{kind}.
func parseApplicationURI(uri, kind string) (projectID, applicationID int64, err error) {
	rest, ok := strings.CutPrefix(uri, resourcePrefix)
	if !ok {
		return 0, 0, fmt.Errorf("invalid application URI: %s", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "applications" || parts[3] != kind {
		return 0, 0, fmt.Errorf("invalid application URI: %s", uri)
	}
	projectID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || projectID <= 0 {
		return 0, 0, fmt.Errorf("invalid project_id in URI: %s", uri)
	}
	applicationID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || applicationID <= 0 {
		return 0, 0, fmt.Errorf("invalid application_id in URI: %s", uri)
	}
	return projectID, applicationID, nil
}

func (s *Server) handleEvaluationsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	projectID, applicationID, err := parseApplicationURI(uri, "evaluations")
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}
	app, err := s.application(ctx, projectID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("mcp: evaluations resource: %w", err)
	}

	evals, err := s.registry.List(ctx, app.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("mcp: evaluations resource: %w", err)
	}
	out := make([]map[string]any, 0, len(evals))
	for _, e := range evals {
		out = append(out, compactEvaluation(e))
	}
	return textResource(uri, out)
}

func (s *Server) handleResultsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	projectID, applicationID, err := parseApplicationURI(uri, "results")
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}
	app, err := s.application(ctx, projectID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("mcp: results resource: %w", err)
	}

	entries, err := s.results.List(ctx, app.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("mcp: results resource: %w", err)
	}
	rankResults(entries)
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, compactResult(e))
	}
	return textResource(uri, out)
}

func textResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal resource: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
