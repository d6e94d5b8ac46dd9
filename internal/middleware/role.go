package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

// RequireRole returns middleware that admits only callers holding role.
// An empty role admits any active caller. Must be applied after Auth.
func RequireRole(g Authenticator, role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.Permit(auth.PrincipalFromContext(r.Context()), role)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, service.ErrUnauthenticated):
				writeAuthError(w)
			default:
				msg := "Insufficient permissions"
				if role != "" {
					msg = fmt.Sprintf("Insufficient permissions. Required role: %s", role)
				}
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", msg)
			}
		})
	}
}

// RequireAdmin is a convenience middleware for the admin role.
func RequireAdmin(g Authenticator) func(http.Handler) http.Handler {
	return RequireRole(g, model.RoleAdmin)
}

// RequireActive admits any authenticated caller whose profile is active.
func RequireActive(g Authenticator) func(http.Handler) http.Handler {
	return RequireRole(g, "")
}

// writeJSONError writes the standard error envelope.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":{"code":"%s","message":"%s"}}`, code, message)))
}
