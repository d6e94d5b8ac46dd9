package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

// UserService is the admin user-management surface.
// Implemented by *service.Provisioner.
type UserService interface {
	Provision(ctx context.Context, in service.ProvisionInput) (*service.ProvisionResult, error)
	List(ctx context.Context, filter service.ListFilter) ([]*model.Profile, error)
	Deprovision(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, actorID, id string, patch model.ProfilePatch) (*model.Profile, error)
}

// UserHandler handles the admin-only /users endpoints.
type UserHandler struct {
	svc    UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ProvisionInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.svc.Provision(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_created",
		"user_id", result.IdentityID,
		"actor_id", auth.UserIDFromContext(r.Context()),
		"login_test_passed", result.LoginTestPassed,
	)

	writeJSON(w, http.StatusOK, dto.CreateUserResponse{Success: true, User: result})
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := service.ListFilter{Role: query.Get("role")}
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			filter.Limit = parsed
		}
	}

	profiles, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListResponse(profiles))
}

// Delete handles DELETE /api/v1/users?id={id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	if err := h.svc.Deprovision(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_deleted",
		"user_id", id,
		"actor_id", auth.UserIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Update handles PATCH /api/v1/users?id={id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	var patch model.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	profile, err := h.svc.UpdateProfile(r.Context(), auth.UserIDFromContext(r.Context()), id, patch)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToProfileResponse(profile))
}
