package auth

import (
	"context"

	"github.com/twopelicans/portal/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalKey is the context key for the authenticated caller.
	principalKey contextKey = "principal"
)

// ContextWithPrincipal adds the authenticated caller to the context.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller.
// Returns nil if not present.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

// ProfileFromContext returns the caller's profile, or nil.
func ProfileFromContext(ctx context.Context) *model.Profile {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	return p.Profile
}

// UserIDFromContext returns the caller's identity id.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).UserID()
}
