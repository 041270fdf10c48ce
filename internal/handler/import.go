package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmfrees/photovault/internal/ctxkeys"
	"github.com/jmfrees/photovault/internal/service"
)

type ImportHandler struct {
	coordinator *service.ImportCoordinator
}

func NewImportHandler(coordinator *service.ImportCoordinator) *ImportHandler {
	return &ImportHandler{coordinator: coordinator}
}

// Start opens a provider picker session. The client surfaces the returned
// picker URI to the user and polls the job status until it settles.
func (h *ImportHandler) Start(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())

	job, err := h.coordinator.Start(r.Context(), ownerID)
	if errors.Is(err, service.ErrIntegrationMissing) {
		writeError(w, http.StatusConflict, "No provider integration connected")
		return
	}
	if err != nil {
		slog.Error("failed to start import", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to start import session")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":     job.ID,
		"pickerUri": job.PickerURI,
	})
}

// Status reports the job's current state and, once terminal, its outcome.
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())
	jobID := r.PathValue("id")

	job, ok := h.coordinator.Job(jobID)
	if !ok || job.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "Import job not found")
		return
	}

	state, result, jobErr := job.Status()

	body := map[string]any{
		"jobId": job.ID,
		"state": state,
	}
	if result != nil {
		body["outcome"] = result.Outcome
		body["imported"] = len(result.Photos)
		body["rejected"] = len(result.Rejected)
	}
	if jobErr != nil {
		body["error"] = jobErr.Error()
	}

	writeJSON(w, http.StatusOK, body)
}

// Cancel stops a running job. Provider session cleanup still runs.
func (h *ImportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxkeys.OwnerID(r.Context())
	jobID := r.PathValue("id")

	job, ok := h.coordinator.Job(jobID)
	if !ok || job.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "Import job not found")
		return
	}

	job.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
