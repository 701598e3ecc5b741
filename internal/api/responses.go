package api

import (
	"encoding/json"
	"net/http"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// errorResponse is the uniform error payload
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes v as JSON with the given status
func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

// respondError maps the error taxonomy onto HTTP status codes. Storage
// faults get a generic message; the detail stays in the log.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case apperr.KindNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case apperr.KindConflict:
		status = http.StatusConflict
		message = err.Error()
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
		h.logger.Error("Request failed", logger.Error(err))
	}

	h.respondJSON(w, status, errorResponse{Error: message})
}
