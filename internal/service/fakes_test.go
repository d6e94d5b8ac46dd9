package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twopelicans/portal/internal/cache"
	"github.com/twopelicans/portal/internal/events"
	"github.com/twopelicans/portal/internal/inbox"
	"github.com/twopelicans/portal/internal/mailer"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/repository"
)

var errBackend = errors.New("backend unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend is an in-memory identity store and profile table.
// It stores plaintext passwords; hashing is covered by the auth package.
type fakeBackend struct {
	mu         sync.Mutex
	identities map[string]*model.Identity
	passwords  map[string]string
	profiles   map[string]*model.Profile
	calls      int

	failCreateUser    error
	failInsertProfile error
	failGetProfile    error
	failDeleteUser    error
	skipProfileInsert bool
	// stallInsertProfile makes InsertProfile wait for ctx like a pgx query.
	stallInsertProfile bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		identities: map[string]*model.Identity{},
		passwords:  map[string]string{},
		profiles:   map[string]*model.Profile{},
	}
}

func (f *fakeBackend) seed(email, password string, role model.Role, active bool) *model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	f.identities[id] = &model.Identity{ID: id, Email: email, Metadata: model.IdentityMetadata{Role: role}, CreatedAt: now}
	f.passwords[id] = password
	p := &model.Profile{ID: id, Email: email, Company: "Seed", Role: role, IsActive: active, CreatedAt: now, UpdatedAt: now}
	f.profiles[id] = p
	return p
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) CreateUser(_ context.Context, email, password string, meta model.IdentityMetadata) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failCreateUser != nil {
		return nil, f.failCreateUser
	}
	for _, id := range f.identities {
		if id.Email == email {
			return nil, repository.ErrEmailExists
		}
	}
	identity := &model.Identity{ID: uuid.NewString(), Email: email, EmailConfirmed: true, Metadata: meta, CreatedAt: time.Now().UTC()}
	f.identities[identity.ID] = identity
	f.passwords[identity.ID] = password
	return identity, nil
}

func (f *fakeBackend) GetUser(_ context.Context, id string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	identity, ok := f.identities[id]
	if !ok {
		return nil, repository.ErrIdentityNotFound
	}
	return identity, nil
}

func (f *fakeBackend) GetUserByEmail(_ context.Context, email string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, identity := range f.identities {
		if identity.Email == email {
			return identity, nil
		}
	}
	return nil, repository.ErrIdentityNotFound
}

func (f *fakeBackend) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failDeleteUser != nil {
		return f.failDeleteUser
	}
	if _, ok := f.identities[id]; !ok {
		return repository.ErrIdentityNotFound
	}
	delete(f.identities, id)
	delete(f.passwords, id)
	// ON DELETE CASCADE
	delete(f.profiles, id)
	return nil
}

func (f *fakeBackend) Authenticate(_ context.Context, email, password string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for id, identity := range f.identities {
		if identity.Email == email && f.passwords[id] == password {
			return identity, nil
		}
	}
	return nil, repository.ErrInvalidCredentials
}

func (f *fakeBackend) ListUsers(context.Context) ([]*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]*model.Identity, 0, len(f.identities))
	for _, identity := range f.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (f *fakeBackend) InsertProfile(ctx context.Context, p *model.Profile) error {
	if f.stallInsertProfile {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failInsertProfile != nil {
		return f.failInsertProfile
	}
	for _, existing := range f.profiles {
		if existing.Email == p.Email {
			return repository.ErrEmailExists
		}
	}
	if f.skipProfileInsert {
		return nil
	}
	now := time.Now().UTC()
	cp := *p
	cp.CreatedAt, cp.UpdatedAt = now, now
	f.profiles[p.ID] = &cp
	return nil
}

func (f *fakeBackend) GetProfileByID(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failGetProfile != nil {
		return nil, f.failGetProfile
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBackend) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (f *fakeBackend) ListProfiles(_ context.Context, filter repository.ProfileFilter) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]*model.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		if len(filter.Roles) > 0 && p.Role != filter.Roles[0] {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, id string, patch model.ProfilePatch) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (f *fakeBackend) TouchLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if p, ok := f.profiles[id]; ok {
		now := time.Now().UTC()
		p.LastLogin = &now
	}
	return nil
}

func (f *fakeBackend) CountProfilesByRole(_ context.Context, role model.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	n := 0
	for _, p := range f.profiles {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) ListOrphanProfiles(context.Context) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []*model.Profile
	for id, p := range f.profiles {
		if _, ok := f.identities[id]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) identityCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.identities)
}

func (f *fakeBackend) profileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profiles)
}

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	seq      int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*model.Session{}}
}

func (f *fakeSessions) CreateSession(_ context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := time.Now().UTC()
	s := &model.Session{ID: uuid.NewString(), UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, cache.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// fakeMailer records sends.
type fakeMailer struct {
	mu     sync.Mutex
	sent   []mailer.Email
	err    error
	result *mailer.Result
}

func (f *fakeMailer) Send(_ context.Context, email mailer.Email) (mailer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, email)
	if f.err != nil {
		return mailer.Result{ErrorDetail: f.err.Error()}, f.err
	}
	if f.result != nil {
		return *f.result, nil
	}
	return mailer.Result{Delivered: true, ID: "ext-1"}, nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeMessages is an in-memory MessageStore.
type fakeMessages struct {
	mu   sync.Mutex
	msgs []*model.Message
	err  error
}

func (f *fakeMessages) Create(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessages) ListByOwner(_ context.Context, ownerID string, _ int) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Message{}
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].OwnerID == ownerID {
			out = append(out, f.msgs[i])
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id && m.OwnerID == ownerID {
			m.IsRead = true
			return nil
		}
	}
	return inbox.ErrMessageNotFound
}

// fakePublisher records events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) types() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Type, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}
