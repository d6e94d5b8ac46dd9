package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/cache"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/repository"
)

// Guard resolves session tokens to callers and checks their role.
// Identity and profile are re-read on every call; no role claim carried
// by the client is ever trusted.
type Guard struct {
	tokens     *auth.TokenIssuer
	sessions   SessionStore
	identities IdentityStore
	profiles   ProfileTable
}

// NewGuard creates a Guard.
func NewGuard(tokens *auth.TokenIssuer, sessions SessionStore, identities IdentityStore, profiles ProfileTable) *Guard {
	return &Guard{
		tokens:     tokens,
		sessions:   sessions,
		identities: identities,
		profiles:   profiles,
	}
}

// Resolve returns the caller behind token without any role check.
func (g *Guard) Resolve(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := g.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, ErrUnauthenticated
	}

	if _, err := g.identities.GetUser(ctx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}

	profile, err := g.profiles.GetProfileByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	return &model.Principal{
		SessionID: session.ID,
		Token:     token,
		Profile:   profile,
	}, nil
}

// Permit checks an already resolved caller against requiredRole.
// An empty requiredRole admits any role. Deactivated profiles are refused.
func (g *Guard) Permit(p *model.Principal, requiredRole model.Role) error {
	if p == nil || p.Profile == nil {
		return ErrUnauthenticated
	}
	if !p.Profile.IsActive {
		return ErrForbidden
	}
	if requiredRole != "" && p.Profile.Role != requiredRole {
		return ErrForbidden
	}
	return nil
}

// Authorize resolves token and checks the caller holds requiredRole.
// It has no side effects.
func (g *Guard) Authorize(ctx context.Context, token string, requiredRole model.Role) (*model.Profile, error) {
	p, err := g.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := g.Permit(p, requiredRole); err != nil {
		return nil, err
	}
	return p.Profile, nil
}
