package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

// MessageService relays client messages and lists the caller's inbox.
// Implemented by *service.Relay.
type MessageService interface {
	Send(ctx context.Context, in service.SendInput) (*service.SendResult, error)
	Inbox(ctx context.Context, ownerID string, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, ownerID, id string) error
}

// MessageHandler handles the /messages endpoints for signed-in users.
type MessageHandler struct {
	svc    MessageService
	logger *slog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(svc MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		svc:    svc,
		logger: logger,
	}
}

// Send handles POST /api/v1/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req service.SendInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	req.OwnerID = auth.UserIDFromContext(r.Context())
	// Reply-to and sender come from the caller's profile, not the body.
	if profile := auth.ProfileFromContext(r.Context()); profile != nil {
		if profile.Email != "" {
			req.SenderEmail = profile.Email
		}
		if profile.Company != "" {
			req.SenderCompany = profile.Company
		}
	}

	res, err := h.svc.Send(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("message_sent",
		"user_id", req.OwnerID,
		"external_id", res.ExternalID,
	)

	writeJSON(w, http.StatusOK, res)
}

// List handles GET /api/v1/messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	msgs, err := h.svc.Inbox(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToMessageListResponse(msgs))
}

// MarkRead handles POST /api/v1/messages/{id}/read.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Message ID is required")
		return
	}

	if err := h.svc.MarkRead(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
