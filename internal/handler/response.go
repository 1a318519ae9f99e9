package handler

// RESPONSE HELPERS:
// Every JSON endpoint answers through writeJSON / writeError, so the mural
// page, the CLI and the admin screens all see the same error shape:
//
//	{"error": "validation_error", "message": "categoria inválida", "field": "category"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vibeteen/vibe-teen/internal/apperror"
)

// maxBodyBytes caps request bodies. Every form in this app is tiny.
const maxBodyBytes = 16 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable type, e.g. "not_found"
	Message string `json:"message"`         // human-readable, safe to show
	Field   string `json:"field,omitempty"` // form field at fault, for validation errors
}

// writeJSON sends data with the given status. Headers must be set before the
// body is written, so the order here matters.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status.
//
// errors.Is walks the whole Unwrap chain, so a service error wrapped as
// fmt.Errorf("...: %w", apperror.NotFound(...)) still maps to 404.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := statusFor(err)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Never leak raw errors: they can carry SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func statusFor(err error) (int, string) {
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
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decodeJSON reads one JSON object from the body into dst. Malformed or
// oversized bodies come back as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return apperror.ValidationFailed("", fmt.Sprintf("request body larger than %d bytes", tooBig.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "request body is empty")
		default:
			return apperror.ValidationFailed("", "invalid JSON body")
		}
	}
	return nil
}
