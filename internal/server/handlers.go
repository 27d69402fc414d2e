package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/scorer"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
	"github.com/rekcurd/dashboard/internal/storage"
)

// Failure messages. Not-found uses model.MessageNotFound.
const (
	messageBadRequest      = "Bad Request."
	messageFileRequired    = "filepath is required."
	messageModelIDRequired = "model_id is required."
	messageTooLarge        = "File too large."
	messageResultExists    = "Evaluation result already exists."
	messageNoPriorResult   = "Evaluation result does not exist."
	messageUnavailable     = "Model service unavailable."
	messageRemoteFailure   = "Model service failed."
	messageInternal        = "Internal Server Error."
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store          Store
	registry       *evaluation.Registry
	orchestrator   *evaluation.Orchestrator
	results        *evaluation.Results
	logger         *slog.Logger
	startedAt      time.Time
	version        string
	maxUploadBytes int64
	openapiSpec    []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store          Store
	Registry       *evaluation.Registry
	Orchestrator   *evaluation.Orchestrator
	Results        *evaluation.Results
	Logger         *slog.Logger
	Version        string
	MaxUploadBytes int64
	OpenAPISpec    []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:          d.Store,
		registry:       d.Registry,
		orchestrator:   d.Orchestrator,
		results:        d.Results,
		logger:         d.Logger,
		startedAt:      time.Now(),
		version:        d.Version,
		maxUploadBytes: d.MaxUploadBytes,
		openapiSpec:    d.OpenAPISpec,
	}
}

// scopedHandler serves a request already resolved to an application.
type scopedHandler func(w http.ResponseWriter, r *http.Request, app model.Application)

// scoped resolves {project_id} and {application_id}. An application that does
// not exist, or exists under another project, is a 404.
func (h *Handlers) scoped(next scopedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, ok1 := pathInt64(r, "project_id")
		applicationID, ok2 := pathInt64(r, "application_id")
		if !ok1 || !ok2 {
			writeNotFound(w)
			return
		}
		app, err := h.store.GetApplication(r.Context(), projectID, applicationID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next(w, r, app)
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		dbStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, model.HealthResponse{
		Status:     status,
		Version:    h.version,
		Database:   dbStatus,
		DataServer: string(h.registry.DataMode()),
		Uptime:     int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// writeServiceError maps a service or storage error to a response. Anything
// unrecognized is logged and reported as a 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, evaluation.ErrNoPriorResult):
		writeFailure(w, http.StatusBadRequest, messageNoPriorResult)
	case errors.Is(err, evaluation.ErrConflict):
		writeFailure(w, http.StatusBadRequest, messageResultExists)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, scorer.ErrNotFound):
		writeNotFound(w)
	case errors.Is(err, scorer.ErrUnavailable):
		h.logger.Warn("model service unavailable", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeFailure(w, http.StatusServiceUnavailable, messageUnavailable)
	case errors.Is(err, scorer.ErrRemote):
		h.logger.Warn("model service failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeFailure(w, http.StatusBadGateway, messageRemoteFailure)
	default:
		h.logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
		writeFailure(w, http.StatusInternalServerError, messageInternal)
	}
}

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Failure(message))
}

func writeNotFound(w http.ResponseWriter) {
	writeFailure(w, http.StatusNotFound, model.MessageNotFound)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, model.OK(model.MessageSuccess))
}

// pathInt64 parses a positive integer path value.
func pathInt64(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
