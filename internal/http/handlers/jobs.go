package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rafaelmq/docquery-back/internal/domain"
	"github.com/rafaelmq/docquery-back/internal/http/middleware"
	"github.com/rafaelmq/docquery-back/internal/repository"
	"github.com/rafaelmq/docquery-back/internal/service"
)

type enqueueRequest struct {
	JobType     string          `json:"job_type"`
	QueueName   string          `json:"queue_name,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func (api *API) Jobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request enqueueRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, ok := api.idempotency.Get(idempotencyKey); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict",
					"idempotency key already used with a different payload")
				return
			}
			// The replay reflects wherever the job is by now, not the
			// state it was accepted in.
			view, err := api.jobsService.GetStatus(r.Context(), entry.JobID)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"job_id": entry.JobID,
				"status": view.Status,
			})
			return
		}
	}

	job, err := api.jobsService.Enqueue(r.Context(), service.EnqueueInput{
		Type:        domain.JobType(request.JobType),
		QueueName:   request.QueueName,
		Metadata:    request.Metadata,
		MaxAttempts: request.MaxAttempts,
		TraceID:     middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to enqueue job")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, job.ID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"queue_name": job.QueueName,
		"trace_id":   job.TraceID,
		"created_at": job.CreatedAt,
	})
}

func (api *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	view, err := api.jobsService.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, view)
}
