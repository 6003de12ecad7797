package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/middleware"
	"github.com/Varun5711/talentlens/internal/models"
	"github.com/Varun5711/talentlens/internal/service"
)

var errEmptyBody = errors.New("request body is required")

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// decodeJSON reads exactly one JSON object and rejects unknown fields.
// The body size cap is applied upstream by middleware.MaxBodyBytes.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

func respondDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
		return
	}
	if errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
}

func respondValidationError(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, "validation_error", err.Error())
}

// respondServiceError maps session errors to HTTP. Anything unrecognised is
// logged and reported as a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		respondError(w, http.StatusBadRequest, "duplicate_email", "Email already in use")
	case errors.Is(err, service.ErrAccessDenied):
		respondError(w, http.StatusForbidden, "access_denied", "Access Denied")
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusForbidden, "not_found", "User not found")
	default:
		log.With("request_id", middleware.RequestIDFromContext(r.Context())).
			Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
