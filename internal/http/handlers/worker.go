package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rafaelmq/docquery-back/internal/repository"
)

type workerRequest struct {
	JobID   string `json:"job_id"`
	TraceID string `json:"trace_id,omitempty"`
}

// WorkerProcess is the invocation target the dispatcher posts claimed
// jobs to. Processing failures are owned by the worker's state machine
// and reported as a normal response, not an HTTP error; only a refused
// hand-off (unknown job, wrong state) is an error status.
func (api *API) WorkerProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request workerRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if strings.TrimSpace(request.JobID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	if err := api.processor.Process(r.Context(), request.JobID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, repository.ErrInvalidTransition):
			writeError(w, r, http.StatusConflict, "invalid_state", "job is not claimable for processing")
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"job_id": request.JobID,
				"status": "failure-recorded",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": request.JobID,
		"status": "completed",
	})
}
