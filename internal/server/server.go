// Package server implements the HTTP API of the evaluation dashboard.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/ratelimit"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
)

// apiPrefix scopes every dashboard route to one application of one project.
const apiPrefix = "/api/projects/{project_id}/applications/{application_id}"

// Store is the persistence the HTTP layer reads directly. Both storage
// backends implement it.
type Store interface {
	GetApplication(ctx context.Context, projectID, applicationID int64) (model.Application, error)
	Ping(ctx context.Context) error
}

// Server is the dashboard HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, MCPServer, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	Store        Store
	Registry     *evaluation.Registry
	Orchestrator *evaluation.Orchestrator
	Results      *evaluation.Results
	Logger       *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Version        string
	MaxUploadBytes int64

	OpenAPISpec []byte
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:          cfg.Store,
		Registry:       cfg.Registry,
		Orchestrator:   cfg.Orchestrator,
		Results:        cfg.Results,
		Logger:         cfg.Logger,
		Version:        cfg.Version,
		MaxUploadBytes: cfg.MaxUploadBytes,
		OpenAPISpec:    cfg.OpenAPISpec,
	})

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	// Scoring ties up a model server, so only the evaluate routes are limited.
	scoringRL := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, cfg.Logger)

	mux := http.NewServeMux()

	// Datasets.
	mux.Handle("GET "+apiPrefix+"/evaluations", h.scoped(h.HandleListEvaluations))
	mux.Handle("POST "+apiPrefix+"/evaluations", h.scoped(h.HandleUploadEvaluation))
	mux.Handle("DELETE "+apiPrefix+"/evaluations/{evaluation_id}", h.scoped(h.HandleDeleteEvaluation))
	mux.Handle("GET "+apiPrefix+"/evaluations/{evaluation_id}/download", h.scoped(h.HandleDownloadEvaluation))

	// Scoring.
	mux.Handle("POST "+apiPrefix+"/evaluate", scoringRL(h.scoped(h.HandleEvaluate(evaluation.ModeCreate))))
	mux.Handle("PUT "+apiPrefix+"/evaluate", scoringRL(h.scoped(h.HandleEvaluate(evaluation.ModeUpdate))))

	// Results.
	mux.Handle("GET "+apiPrefix+"/evaluation_results", h.scoped(h.HandleListResults))
	mux.Handle("GET "+apiPrefix+"/evaluation_results/{evaluation_result_id}", h.scoped(h.HandleGetResult))
	mux.Handle("DELETE "+apiPrefix+"/evaluation_results/{evaluation_result_id}", h.scoped(h.HandleDeleteResult))

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
