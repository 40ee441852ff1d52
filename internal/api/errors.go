package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"driftscope/internal/domain"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v with the given status. Encoding failures are
// logged, not surfaced; the status line has already been written.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain error types to HTTP statuses and emits a JSON
// error body. Unclassified errors are 500s with the message withheld.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		notFound       *domain.NotFoundError
		validation     *domain.ValidationError
		conflict       *domain.ConflictError
		notImplemented *domain.NotImplementedError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: notFound.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: validation.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Code: http.StatusConflict, Message: conflict.Error()})
	case errors.As(err, &notImplemented):
		writeJSON(w, http.StatusNotImplemented, errorResponse{Code: http.StatusNotImplemented, Message: notImplemented.Error()})
	default:
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: http.StatusInternalServerError, Message: "internal server error"})
	}
}
