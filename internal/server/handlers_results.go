package server

import (
	"net/http"

	"github.com/rekcurd/dashboard/internal/model"
)

// HandleListResults handles GET /evaluation_results.
func (h *Handlers) HandleListResults(w http.ResponseWriter, r *http.Request, app model.Application) {
	entries, err := h.results.List(r.Context(), app.ApplicationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetResult handles GET /evaluation_results/{evaluation_result_id}.
// Per-sample details are read back from a model server.
func (h *Handlers) HandleGetResult(w http.ResponseWriter, r *http.Request, app model.Application) {
	id, ok := pathInt64(r, "evaluation_result_id")
	if !ok {
		writeNotFound(w)
		return
	}
	resp, err := h.results.Get(r.Context(), app.ApplicationID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeleteResult handles DELETE /evaluation_results/{evaluation_result_id}.
func (h *Handlers) HandleDeleteResult(w http.ResponseWriter, r *http.Request, app model.Application) {
	id, ok := pathInt64(r, "evaluation_result_id")
	if !ok {
		writeNotFound(w)
		return
	}
	if err := h.results.Delete(r.Context(), app.ApplicationID, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w)
}
