package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so all responses
// share one shape.
//
// CONSISTENT ERROR FORMAT:
//   {"error": "not_found", "message": "Task not found with id abc123"}
//
// Validation failures add the field-level list:
//   {"error": "validation_error", "message": "Task title is required",
//    "errors": [{"field": "title", "message": "Task title is required"}]}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/studysync/studysync-server/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string                `json:"error"`            // machine-readable type, e.g. "not_found"
	Message string                `json:"message"`          // human-readable description
	Errors  []apperror.FieldError `json:"errors,omitempty"` // per-field validation failures
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once
// Encode writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
// This is the only place sentinels become status codes:
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//	ErrUpstream     → 502
//
// errors.As finds the *AppError anywhere in a chain built with
// fmt.Errorf("...: %w", err), so services can add context freely.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := classify(err)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Errors:  appErr.Fields,
		})
		return
	}

	// Unknown error: log it, but never expose SQL, paths or other internals.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
