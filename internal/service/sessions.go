package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/metrics"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/repository"
)

// DefaultSessionTTL applies when no TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   *model.Profile `json:"profile"`
}

// Sessions handles portal login and logout.
type Sessions struct {
	tokens     *auth.TokenIssuer
	store      SessionStore
	identities IdentityStore
	profiles   ProfileTable
	ttl        time.Duration
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// NewSessions creates a Sessions service.
func NewSessions(tokens *auth.TokenIssuer, store SessionStore, identities IdentityStore, profiles ProfileTable, ttl time.Duration, recorder metrics.Recorder, logger *slog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Sessions{
		tokens:     tokens,
		store:      store,
		identities: identities,
		profiles:   profiles,
		ttl:        ttl,
		metrics:    recorder,
		logger:     logger.With("component", "sessions"),
	}
}

// Login checks credentials and opens a session.
func (s *Sessions) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.IncLogin(metrics.OutcomeFailed)
		ve := &ValidationError{Fields: map[string]string{}}
		if email == "" {
			ve.Fields["email"] = "email is required"
		}
		if password == "" {
			ve.Fields["password"] = "password is required"
		}
		return nil, ve
	}

	identity, err := s.identities.Authenticate(ctx, email, password)
	if err != nil {
		s.metrics.IncLogin(metrics.OutcomeFailed)
		if errors.Is(err, repository.ErrInvalidCredentials) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	profile, err := s.profiles.GetProfileByID(ctx, identity.ID)
	if err != nil {
		s.metrics.IncLogin(metrics.OutcomeFailed)
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !profile.IsActive {
		s.metrics.IncLogin(metrics.OutcomeFailed)
		return nil, ErrForbidden
	}

	token, expiresAt, err := s.open(ctx, identity.ID)
	if err != nil {
		s.metrics.IncLogin(metrics.OutcomeFailed)
		return nil, err
	}

	if err := s.profiles.TouchLastLogin(ctx, identity.ID); err != nil {
		s.logger.Warn("failed to record last login",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
	} else {
		now := time.Now().UTC()
		profile.LastLogin = &now
	}

	s.metrics.IncLogin(metrics.OutcomeSuccess)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}

// Logout revokes the session named by token. Unknown, expired or
// malformed tokens are ignored.
func (s *Sessions) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.store.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Probe confirms the credentials can sign in, then revokes the session at once.
// It does not update last_login.
func (s *Sessions) Probe(ctx context.Context, email, password string) error {
	identity, err := s.identities.Authenticate(ctx, email, password)
	if err != nil {
		return fmt.Errorf("probe authenticate: %w", err)
	}

	session, err := s.store.CreateSession(ctx, identity.ID, time.Minute)
	if err != nil {
		return fmt.Errorf("probe session: %w", err)
	}
	if err := s.store.DeleteSession(ctx, session.ID); err != nil {
		s.logger.Warn("failed to revoke probe session",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// RevokeAll ends every session of a user.
func (s *Sessions) RevokeAll(ctx context.Context, userID string) (int, error) {
	return s.store.DeleteUserSessions(ctx, userID)
}

func (s *Sessions) open(ctx context.Context, userID string) (string, time.Time, error) {
	session, err := s.store.CreateSession(ctx, userID, s.ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Issue(userID, session.ID, session.ExpiresAt)
	if err != nil {
		_ = s.store.DeleteSession(ctx, session.ID)
		return "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}
	return token, session.ExpiresAt, nil
}
