// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/service"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handler serves the generic endpoints.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Root identifies the service.
// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"service": "client-portal",
		"version": Version,
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: dto.ErrorBody{Code: code, Message: message}})
}

// decodeJSON reads a JSON body into v. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeServiceError maps service errors to HTTP responses.
// Backend errors are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: dto.ErrorBody{
			Code:    "INVALID_INPUT",
			Message: "Invalid input",
			Details: ve.Fields,
		}})
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid input")
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	case errors.Is(err, service.ErrProfileMissing):
		writeError(w, http.StatusForbidden, "PROFILE_MISSING", "User profile not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, service.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", service.ErrAlreadyExists.Error())
	case errors.Is(err, service.ErrIdentityCreateFailed):
		logger.Error("provisioning failed", "error", err)
		writeError(w, http.StatusInternalServerError, "IDENTITY_CREATE_FAILED", service.ErrIdentityCreateFailed.Error())
	case errors.Is(err, service.ErrProfileCreateFailed):
		logger.Error("provisioning failed", "error", err)
		writeError(w, http.StatusInternalServerError, "PROFILE_CREATE_FAILED", service.ErrProfileCreateFailed.Error())
	case errors.Is(err, service.ErrVerificationFailed):
		logger.Error("provisioning failed", "error", err)
		writeError(w, http.StatusInternalServerError, "VERIFICATION_FAILED", service.ErrVerificationFailed.Error())
	case errors.Is(err, service.ErrDeliveryFailed):
		logger.Error("delivery failed", "error", err)
		writeError(w, http.StatusBadGateway, "DELIVERY_FAILED", "Failed to send message")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
