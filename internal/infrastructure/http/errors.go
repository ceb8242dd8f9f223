package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// WriteJSON encodes payload with the given status. The status is already sent when encoding fails,
// so the failure is only logged.
func WriteJSON(w http.ResponseWriter, status int, payload any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error("Failed to encode response", "status", status, "error", err)
	}
}

// WriteError writes an ErrorResponse. A nil error list is sent as an empty array.
func WriteError(w http.ResponseWriter, status int, message string, errs []string, log *slog.Logger) {
	if errs == nil {
		errs = []string{}
	}
	WriteJSON(w, status, ErrorResponse{Message: message, Errors: errs}, log)
}
