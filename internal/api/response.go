package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/seyio/owemi/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps a domain error kind to an HTTP status. Kinds exist
// precisely so the client can tell field-level problems (validation)
// apart from state conflicts, quota refusals, and missing entities.
func writeError(w http.ResponseWriter, err error) {
	de := model.AsError(err)
	if de == nil {
		slog.Error("internal error", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch de.Kind {
	case model.KindValidation:
		jsonError(w, http.StatusBadRequest, de.Message)
	case model.KindConflict:
		jsonError(w, http.StatusConflict, de.Message)
	case model.KindQuota:
		jsonResponse(w, http.StatusTooManyRequests, map[string]any{
			"error":     de.Message,
			"remaining": de.Remaining,
		})
	case model.KindNotFound:
		jsonError(w, http.StatusNotFound, de.Message)
	default:
		slog.Error("mutation aborted", "error", err)
		jsonError(w, http.StatusInternalServerError, de.Message)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
