package service

import (
	"context"
	"errors"
	"time"

	"github.com/twopelicans/portal/internal/cache"
	"github.com/twopelicans/portal/internal/inbox"
	"github.com/twopelicans/portal/internal/mailer"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/repository"
)

// IdentityStore holds authenticatable credentials.
// Implemented by *repository.Repository.
type IdentityStore interface {
	CreateUser(ctx context.Context, email, password string, meta model.IdentityMetadata) (*model.Identity, error)
	GetUser(ctx context.Context, id string) (*model.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (*model.Identity, error)
	DeleteUser(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, password string) (*model.Identity, error)
	ListUsers(ctx context.Context) ([]*model.Identity, error)
}

// ProfileTable holds application-level user records keyed by identity id.
// Implemented by *repository.Repository.
type ProfileTable interface {
	InsertProfile(ctx context.Context, p *model.Profile) error
	GetProfileByID(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	ListProfiles(ctx context.Context, filter repository.ProfileFilter) ([]*model.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.Profile, error)
	TouchLastLogin(ctx context.Context, id string) error
	CountProfilesByRole(ctx context.Context, role model.Role) (int, error)
	ListOrphanProfiles(ctx context.Context) ([]*model.Profile, error)
}

// SessionStore holds server-side login sessions.
// Implemented by *cache.Cache.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)
}

// MessageStore keeps the local echo of relayed messages.
// Implemented by *inbox.Store.
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, ownerID, id string) error
}

var (
	_ IdentityStore = (*repository.Repository)(nil)
	_ ProfileTable  = (*repository.Repository)(nil)
	_ SessionStore  = (*cache.Cache)(nil)
	_ MessageStore  = (*inbox.Store)(nil)
	_ mailer.Mailer = (*mailer.ResendMailer)(nil)
	_ mailer.Mailer = (*mailer.LogMailer)(nil)
)

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrIdentityNotFound) ||
		errors.Is(err, repository.ErrProfileNotFound) ||
		errors.Is(err, inbox.ErrMessageNotFound)
}
