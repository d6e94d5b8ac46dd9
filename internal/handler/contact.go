package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/service"
)

// ContactService relays the public contact form.
// Implemented by *service.Relay.
type ContactService interface {
	Contact(ctx context.Context, in service.ContactInput) (*service.SendResult, error)
}

// ContactHandler handles the public contact form.
type ContactHandler struct {
	svc    ContactService
	logger *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(svc ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		svc:    svc,
		logger: logger,
	}
}

// Submit handles POST /api/v1/contact.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.ContactInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	res, err := h.svc.Contact(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ContactResponse{Success: true, ID: res.ExternalID})
}
