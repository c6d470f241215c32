package handlers

import (
	"errors"
	"net/http"

	"github.com/rafaelmq/docquery-back/internal/service"
)

type queryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (api *API) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request queryRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	output, err := api.queryService.Answer(r.Context(), service.QueryInput{
		Query:      request.Query,
		MaxResults: request.MaxResults,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, output)
}
