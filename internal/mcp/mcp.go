// Package mcp implements the Model Context Protocol server for the dashboard.
//
// The MCP server exposes the evaluation workflow of the HTTP API through MCP
// tools, resources and prompts, so MCP-compatible agents can list datasets,
// score models and compare results.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/scorer"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
)

// ApplicationStore resolves an application within its project.
type ApplicationStore interface {
	GetApplication(ctx context.Context, projectID, applicationID int64) (model.Application, error)
}

// Server wraps the MCP server with the dashboard's service layer.
type Server struct {
	mcpServer    *mcpserver.MCPServer
	apps         ApplicationStore
	registry     *evaluation.Registry
	orchestrator *evaluation.Orchestrator
	results      *evaluation.Results
	logger       *slog.Logger
}

// New creates and configures a new MCP server with all resources, tools and prompts.
func New(apps ApplicationStore, registry *evaluation.Registry, orchestrator *evaluation.Orchestrator, results *evaluation.Results, logger *slog.Logger, version string) *Server {
	s := &Server{
		apps:         apps,
		registry:     registry,
		orchestrator: orchestrator,
		results:      results,
		logger:       logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"rekcurd-dashboard",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(false),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// application validates the project/application pair carried by a request.
func (s *Server) application(ctx context.Context, projectID, applicationID int64) (model.Application, error) {
	if projectID <= 0 || applicationID <= 0 {
		return model.Application{}, fmt.Errorf("project_id and application_id must be positive integers")
	}
	app, err := s.apps.GetApplication(ctx, projectID, applicationID)
	if err != nil {
		return model.Application{}, fmt.Errorf("application %d in project %d: %w", applicationID, projectID, err)
	}
	return app, nil
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// serviceErrorResult turns a service error into a tool error an agent can act on.
func serviceErrorResult(err error) *mcplib.CallToolResult {
	var conflict *evaluation.ConflictError
	switch {
	case errors.As(err, &conflict):
		return errorResult(fmt.Sprintf("result %d already exists for model %d and evaluation %d; use mode=update to re-score",
			conflict.ResultID, conflict.ModelID, conflict.EvaluationID))
	case errors.Is(err, evaluation.ErrNoPriorResult):
		return errorResult("no result exists yet for this model and evaluation; use mode=create")
	case errors.Is(err, evaluation.ErrNotFound), errors.Is(err, scorer.ErrNotFound):
		return errorResult("not found: " + err.Error())
	case errors.Is(err, scorer.ErrUnavailable):
		return errorResult("model service unavailable: " + err.Error())
	case errors.Is(err, scorer.ErrRemote):
		return errorResult("model service failed: " + err.Error())
	}
	return errorResult("internal error: " + err.Error())
}
