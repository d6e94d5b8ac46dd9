package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/middleware"
	"github.com/twopelicans/portal/internal/service"
)

// SessionService opens and closes portal sessions.
// Implemented by *service.Sessions.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// SessionHandler handles login, logout and the current-user endpoint.
type SessionHandler struct {
	svc          SessionService
	secureCookie bool
	logger       *slog.Logger
}

// NewSessionHandler creates a new SessionHandler. secureCookie should be
// true whenever the portal is served over HTTPS.
func NewSessionHandler(svc SessionService, secureCookie bool, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		svc:          svc,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// Login handles POST /api/v1/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookie(res.Token, res.ExpiresAt))
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Profile:   dto.ToProfileResponse(res.Profile),
	})
}

// Logout handles POST /api/v1/logout. It always succeeds for the client.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), middleware.ExtractToken(r)); err != nil {
		h.logger.Warn("logout failed", "error", err)
	}

	expired := h.cookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Me handles GET /api/v1/me.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile := auth.ProfileFromContext(r.Context())
	if profile == nil {
		writeServiceError(w, h.logger, service.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProfileResponse(profile))
}

func (h *SessionHandler) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
