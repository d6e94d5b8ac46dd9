package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

// SessionCookie is the cookie carrying the portal session token.
const SessionCookie = "portal_session"

// Authenticator resolves session tokens and checks roles.
// Implemented by *service.Guard.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*model.Principal, error)
	Permit(p *model.Principal, requiredRole model.Role) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Guard  Authenticator
}

// Auth returns a middleware that authenticates portal requests.
// The token is taken from "Authorization: Bearer <token>" or the session
// cookie; identity and profile are re-read from the backend on every request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			principal, err := cfg.Guard.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrUnauthenticated):
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "invalid_session"),
						slog.String("ip", getClientIP(r)),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w)
				case errors.Is(err, service.ErrProfileMissing):
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "profile_missing"),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeJSONError(w, http.StatusForbidden, "PROFILE_MISSING", "User profile not found")
				default:
					cfg.Logger.Error("backend error during auth",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				}
				return
			}

			recordCaller(r.Context(), principal)
			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken returns the session token from the request.
// The Authorization header wins over the cookie.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
}
