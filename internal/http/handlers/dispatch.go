package handlers

import (
	"net/http"
	"strings"
)

// Dispatch performs one claim-and-dispatch cycle. The optional token
// check fails closed before any job lookup happens.
func (api *API) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if api.dispatchToken != "" {
		const prefix = "Bearer "
		authorization := r.Header.Get("Authorization")
		if !strings.HasPrefix(authorization, prefix) {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "dispatch credential required")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
		if token != api.dispatchToken {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "dispatch credential mismatch")
			return
		}
	}

	result, err := api.dispatcher.DispatchNext(r.Context())
	if err != nil {
		// The claimed job was released back to queued; a later trigger
		// retries it.
		writeError(w, r, http.StatusBadGateway, "dispatch_failed", "worker invocation failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
