package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twopelicans/portal/internal/events"
	"github.com/twopelicans/portal/internal/metrics"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/repository"
)

// DefaultProvisionTimeout bounds one provisioning run.
const DefaultProvisionTimeout = 30 * time.Second

// compensationTimeout bounds the identity rollback. It starts fresh so a run
// that failed on its own deadline can still undo CreateIdentity.
const compensationTimeout = 10 * time.Second

// ProvisionInput is the request to create a portal user.
type ProvisionInput struct {
	Email       string `json:"email" validate:"required,portal_email"`
	Company     string `json:"company" validate:"notblank,max=200"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	SendWelcome bool   `json:"sendWelcomeEmail"`
}

// ProvisionResult describes a user created by Provision.
type ProvisionResult struct {
	IdentityID      string     `json:"id"`
	Email           string     `json:"email"`
	Company         string     `json:"company"`
	Role            model.Role `json:"role"`
	CreatedAt       time.Time  `json:"created"`
	ProfileVerified bool       `json:"profileVerified"`
	LoginTestPassed bool       `json:"loginTestPassed"`
}

// ListFilter narrows List. An empty Role lists everyone.
type ListFilter struct {
	Role  string
	Limit int
}

// VerifyReport is the consistency check for one email address.
type VerifyReport struct {
	Email    string          `json:"email"`
	Identity *model.Identity `json:"identity,omitempty"`
	Profile  *model.Profile  `json:"profile,omitempty"`
	IDsMatch bool            `json:"ids_match"`
}

// OK reports whether identity and profile both exist and agree.
func (r *VerifyReport) OK() bool {
	return r.Identity != nil && r.Profile != nil && r.IDsMatch
}

// Prober checks that freshly created credentials can sign in.
type Prober interface {
	Probe(ctx context.Context, email, password string) error
}

// Notifier sends the welcome mail.
type Notifier interface {
	Welcome(ctx context.Context, email, company string) error
}

// SessionRevoker ends all sessions of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int, error)
}

// ProvisionerConfig tunes the workflow.
type ProvisionerConfig struct {
	LoginProbe bool
	Timeout    time.Duration
}

// ProvisionerDeps are the collaborators of a Provisioner.
// Prober, Notifier, Sessions and Events are optional.
type ProvisionerDeps struct {
	Identities IdentityStore
	Profiles   ProfileTable
	Prober     Prober
	Notifier   Notifier
	Sessions   SessionRevoker
	Events     events.Publisher
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Provisioner creates and removes portal users. Identity and profile are
// created together or neither survives.
type Provisioner struct {
	identities IdentityStore
	profiles   ProfileTable
	prober     Prober
	notifier   Notifier
	sessions   SessionRevoker
	events     events.Publisher
	metrics    metrics.Recorder
	logger     *slog.Logger
	cfg        ProvisionerConfig
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(deps ProvisionerDeps, cfg ProvisionerConfig) *Provisioner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProvisionTimeout
	}
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Provisioner{
		identities: deps.Identities,
		profiles:   deps.Profiles,
		prober:     deps.Prober,
		notifier:   deps.Notifier,
		sessions:   deps.Sessions,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With("component", "provisioner"),
		cfg:        cfg,
	}
}

// provisionRun is the state carried between workflow steps.
type provisionRun struct {
	input    ProvisionInput
	role     model.Role
	identity *model.Identity
	profile  *model.Profile
	// undo is registered once the identity exists.
	undo func(ctx context.Context) error
}

type provisionStep struct {
	name string
	run  func(ctx context.Context, r *provisionRun) error
}

// Provision runs Validate, CheckExisting, CreateIdentity, CreateProfile and
// Verify, then the optional LoginProbe and Notify steps. A failure after
// CreateIdentity deletes the identity before returning.
func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	return p.provision(ctx, in, model.RoleClient)
}

// BootstrapAdmin creates the first admin. It fails with ErrAlreadyExists
// once any admin profile exists.
func (p *Provisioner) BootstrapAdmin(ctx context.Context, email, company, password string) (*ProvisionResult, error) {
	n, err := p.profiles.CountProfilesByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil, &StepError{Step: "bootstrap", Kind: ErrAlreadyExists, Cause: errors.New("an admin user already exists")}
	}
	return p.provision(ctx, ProvisionInput{Email: email, Company: company, Password: password}, model.RoleAdmin)
}

func (p *Provisioner) provision(ctx context.Context, in ProvisionInput, role model.Role) (*ProvisionResult, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveProvisionDuration(time.Since(start)) }()

	// An abandoned request must not stop the run between CreateIdentity and Verify.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
	defer cancel()

	in.Email = model.NormalizeEmail(in.Email)
	in.Company = strings.TrimSpace(in.Company)
	run := &provisionRun{input: in, role: role}

	steps := []provisionStep{
		{"validate", p.validate},
		{"check_existing", p.checkExisting},
		{"create_identity", p.createIdentity},
		{"create_profile", p.createProfile},
		{"verify", p.verify},
	}

	for _, step := range steps {
		if err := step.run(ctx, run); err != nil {
			outcome := metrics.OutcomeFailed
			if run.undo != nil {
				p.compensate(ctx, run, step.name)
				outcome = metrics.OutcomeRolledBack
			}
			p.metrics.IncProvision(outcome)
			p.logger.Warn("provisioning failed",
				slog.String("step", step.name),
				slog.String("email", in.Email),
				slog.String("outcome", outcome),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
	}

	result := &ProvisionResult{
		IdentityID:      run.identity.ID,
		Email:           run.profile.Email,
		Company:         run.profile.Company,
		Role:            run.profile.Role,
		CreatedAt:       run.profile.CreatedAt,
		ProfileVerified: true,
	}

	if p.cfg.LoginProbe && p.prober != nil {
		if err := p.prober.Probe(ctx, in.Email, in.Password); err != nil {
			p.logger.Warn("login probe failed for new user",
				slog.String("user_id", result.IdentityID),
				slog.String("error", err.Error()),
			)
		} else {
			result.LoginTestPassed = true
		}
	}

	if in.SendWelcome && p.notifier != nil {
		if err := p.notifier.Welcome(ctx, result.Email, result.Company); err != nil {
			p.logger.Warn("welcome email failed",
				slog.String("user_id", result.IdentityID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.publish(ctx, events.New(events.UserProvisioned, result.IdentityID, result.Email), result.Role)
	p.metrics.IncProvision(metrics.OutcomeSuccess)
	p.logger.Info("user provisioned",
		slog.String("user_id", result.IdentityID),
		slog.String("role", string(result.Role)),
		slog.Bool("login_test_passed", result.LoginTestPassed),
	)
	return result, nil
}

func (p *Provisioner) validate(_ context.Context, r *provisionRun) error {
	return validateStruct(r.input)
}

func (p *Provisioner) checkExisting(ctx context.Context, r *provisionRun) error {
	_, err := p.profiles.GetProfileByEmail(ctx, r.input.Email)
	switch {
	case err == nil:
		return ErrAlreadyExists
	case errors.Is(err, repository.ErrProfileNotFound):
		return nil
	default:
		return fmt.Errorf("check existing profile: %w", err)
	}
}

func (p *Provisioner) createIdentity(ctx context.Context, r *provisionRun) error {
	identity, err := p.identities.CreateUser(ctx, r.input.Email, r.input.Password, model.IdentityMetadata{
		Company: r.input.Company,
		Role:    r.role,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return &StepError{Step: "create_identity", Kind: ErrAlreadyExists, Cause: err}
		}
		return &StepError{Step: "create_identity", Kind: ErrIdentityCreateFailed, Cause: err}
	}

	r.identity = identity
	r.undo = func(ctx context.Context) error {
		return p.identities.DeleteUser(ctx, identity.ID)
	}
	return nil
}

func (p *Provisioner) createProfile(ctx context.Context, r *provisionRun) error {
	profile := &model.Profile{
		ID:       r.identity.ID,
		Email:    r.input.Email,
		Company:  r.input.Company,
		Role:     r.role,
		IsActive: true,
	}
	if err := p.profiles.InsertProfile(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return &StepError{Step: "create_profile", Kind: ErrAlreadyExists, Cause: err}
		}
		return &StepError{Step: "create_profile", Kind: ErrProfileCreateFailed, Cause: err}
	}
	return nil
}

func (p *Provisioner) verify(ctx context.Context, r *provisionRun) error {
	profile, err := p.profiles.GetProfileByID(ctx, r.identity.ID)
	if err != nil {
		return &StepError{Step: "verify", Kind: ErrVerificationFailed, Cause: err}
	}
	if profile.ID != r.identity.ID {
		return &StepError{Step: "verify", Kind: ErrVerificationFailed, Cause: errors.New("profile id mismatch")}
	}
	r.profile = profile
	return nil
}

// compensate undoes CreateIdentity. Its own failure is logged and never
// replaces the step error.
func (p *Provisioner) compensate(ctx context.Context, r *provisionRun, failedStep string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := r.undo(ctx); err != nil && !errors.Is(err, repository.ErrIdentityNotFound) {
		p.metrics.IncRollbackFailure()
		p.logger.Error("rollback failed, identity left without profile",
			slog.String("user_id", r.identity.ID),
			slog.String("failed_step", failedStep),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Info("rolled back identity",
		slog.String("user_id", r.identity.ID),
		slog.String("failed_step", failedStep),
	)
}

// Deprovision deletes the identity. The profile row is removed by the
// database cascade. A second call for the same id returns ErrNotFound.
func (p *Provisioner) Deprovision(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalidField("id", "id is required")
	}

	var email string
	if profile, err := p.profiles.GetProfileByID(ctx, id); err == nil {
		email = profile.Email
	}

	if err := p.identities.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete identity: %w", err)
	}

	p.revokeSessions(ctx, id)
	p.metrics.IncDeprovision()
	p.publish(ctx, events.New(events.UserDeprovisioned, id, email), "")
	p.logger.Info("user deprovisioned", slog.String("user_id", id))
	return nil
}

// UpdateProfile changes a user's role or active flag. An admin may not
// demote or deactivate themself.
func (p *Provisioner) UpdateProfile(ctx context.Context, actorID, id string, patch model.ProfilePatch) (*model.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidField("id", "id is required")
	}
	if patch.IsEmpty() {
		return nil, invalidField("patch", "at least one of role or is_active is required")
	}
	if patch.Role != nil && !model.IsValidRole(string(*patch.Role)) {
		return nil, invalidField("role", "role must be one of: admin, client")
	}
	if actorID == id {
		if patch.Role != nil && *patch.Role != model.RoleAdmin {
			return nil, ErrForbidden
		}
		if patch.IsActive != nil && !*patch.IsActive {
			return nil, ErrForbidden
		}
	}

	profile, err := p.profiles.UpdateProfile(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if patch.IsActive != nil && !*patch.IsActive {
		p.revokeSessions(ctx, id)
	}

	p.publish(ctx, events.New(events.UserUpdated, profile.ID, profile.Email), profile.Role)
	p.logger.Info("user updated",
		slog.String("user_id", id),
		slog.String("actor_id", actorID),
		slog.String("role", string(profile.Role)),
		slog.Bool("is_active", profile.IsActive),
	)
	return profile, nil
}

// List returns profiles newest-first.
func (p *Provisioner) List(ctx context.Context, filter ListFilter) ([]*model.Profile, error) {
	var pf repository.ProfileFilter
	if filter.Role != "" {
		if !model.IsValidRole(filter.Role) {
			return nil, invalidField("role", "role must be one of: admin, client")
		}
		pf.Roles = []model.Role{model.Role(filter.Role)}
	}
	pf.Limit = filter.Limit

	profiles, err := p.profiles.ListProfiles(ctx, pf)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// Lookup finds a profile by email.
func (p *Provisioner) Lookup(ctx context.Context, email string) (*model.Profile, error) {
	profile, err := p.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup profile: %w", err)
	}
	return profile, nil
}

// Verify checks that an email has both an identity and a profile with the same id.
func (p *Provisioner) Verify(ctx context.Context, email string) (*VerifyReport, error) {
	report := &VerifyReport{Email: model.NormalizeEmail(email)}

	identity, err := p.identities.GetUserByEmail(ctx, report.Email)
	switch {
	case err == nil:
		report.Identity = identity
	case !errors.Is(err, repository.ErrIdentityNotFound):
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	profile, err := p.profiles.GetProfileByEmail(ctx, report.Email)
	switch {
	case err == nil:
		report.Profile = profile
	case !errors.Is(err, repository.ErrProfileNotFound):
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	report.IDsMatch = report.Identity != nil && report.Profile != nil && report.Identity.ID == report.Profile.ID
	return report, nil
}

// OrphanReport lists records that exist on only one side of the
// identity/profile pair.
type OrphanReport struct {
	// Profiles whose identity is gone: the profile cascade is not installed.
	Profiles []*model.Profile
	// Identities with no profile: a provisioning rollback failed and the
	// login was left behind.
	Identities []*model.Identity
}

// Empty reports whether both sides are consistent.
func (r *OrphanReport) Empty() bool {
	return len(r.Profiles) == 0 && len(r.Identities) == 0
}

// Orphans cross-checks the Identity Store against the Profile Table.
func (p *Provisioner) Orphans(ctx context.Context) (*OrphanReport, error) {
	profiles, err := p.profiles.ListOrphanProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orphan profiles: %w", err)
	}
	report := &OrphanReport{Profiles: profiles}

	identities, err := p.identities.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	for _, identity := range identities {
		_, err := p.profiles.GetProfileByID(ctx, identity.ID)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrProfileNotFound):
			report.Identities = append(report.Identities, identity)
		default:
			return nil, fmt.Errorf("lookup profile %s: %w", identity.ID, err)
		}
	}
	return report, nil
}

func (p *Provisioner) revokeSessions(ctx context.Context, userID string) {
	if p.sessions == nil {
		return
	}
	if _, err := p.sessions.RevokeAll(ctx, userID); err != nil {
		p.logger.Warn("failed to revoke sessions",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Provisioner) publish(ctx context.Context, event events.Event, role model.Role) {
	event.Role = string(role)
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("user_id", event.UserID),
			slog.String("error", err.Error()),
		)
	}
}
