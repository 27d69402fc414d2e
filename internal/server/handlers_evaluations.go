package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory
// before spilling to temp files.
const multipartMemory = 8 << 20

// HandleListEvaluations handles GET /evaluations.
func (h *Handlers) HandleListEvaluations(w http.ResponseWriter, r *http.Request, app model.Application) {
	evals, err := h.registry.List(r.Context(), app.ApplicationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

// HandleUploadEvaluation handles POST /evaluations (multipart form with
// "filepath" and optional "description").
func (h *Handlers) HandleUploadEvaluation(w http.ResponseWriter, r *http.Request, app model.Application) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, messageTooLarge)
			return
		}
		writeFailure(w, http.StatusBadRequest, messageFileRequired)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("filepath")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, messageFileRequired)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, messageBadRequest)
		return
	}

	res, err := h.registry.Upload(r.Context(), app.ApplicationID, data, r.FormValue("description"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := model.UploadResponse{Status: true, EvaluationID: res.Evaluation.EvaluationID}
	if !res.Created {
		resp.Message = &res.Message
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeleteEvaluation handles DELETE /evaluations/{evaluation_id}.
func (h *Handlers) HandleDeleteEvaluation(w http.ResponseWriter, r *http.Request, app model.Application) {
	id, ok := pathInt64(r, "evaluation_id")
	if !ok {
		writeNotFound(w)
		return
	}
	if err := h.registry.Delete(r.Context(), app.ApplicationID, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w)
}

// HandleDownloadEvaluation handles GET /evaluations/{evaluation_id}/download.
func (h *Handlers) HandleDownloadEvaluation(w http.ResponseWriter, r *http.Request, app model.Application) {
	id, ok := pathInt64(r, "evaluation_id")
	if !ok {
		writeNotFound(w)
		return
	}
	rc, ev, err := h.registry.Download(r.Context(), app.ApplicationID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="evaluation-%d"`, ev.EvaluationID))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", "evaluation_id", ev.EvaluationID, "error", err)
	}
}

// HandleEvaluate handles POST and PUT /evaluate. Form fields: model_id
// (required) and evaluation_id (optional, defaults to the newest dataset).
func (h *Handlers) HandleEvaluate(mode evaluation.Mode) scopedHandler {
	return func(w http.ResponseWriter, r *http.Request, app model.Application) {
		modelID, err := strconv.ParseInt(r.FormValue("model_id"), 10, 64)
		if err != nil || modelID <= 0 {
			writeFailure(w, http.StatusBadRequest, messageModelIDRequired)
			return
		}
		var evaluationID *int64
		if v := r.FormValue("evaluation_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				writeFailure(w, http.StatusBadRequest, messageBadRequest)
				return
			}
			evaluationID = &id
		}

		out, err := h.orchestrator.Evaluate(r.Context(), app.ApplicationID, modelID, evaluationID, mode)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Response())
	}
}
