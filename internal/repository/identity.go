package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/twopelicans/portal/internal/model"
)

const identityColumns = `id, email, password_hash, email_confirmed, company, role, created_at`

func scanIdentity(row pgx.Row) (*model.Identity, error) {
	var id model.Identity
	var role string
	err := row.Scan(
		&id.ID,
		&id.Email,
		&id.PasswordHash,
		&id.EmailConfirmed,
		&id.Metadata.Company,
		&role,
		&id.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	id.Metadata.Role = model.Role(role)
	return &id, nil
}

// CreateUser registers a new identity with a hashed password.
// Identities created by the portal are email-confirmed on creation.
func (r *Repository) CreateUser(ctx context.Context, email, password string, meta model.IdentityMetadata) (*model.Identity, error) {
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &model.Identity{
		ID:             uuid.NewString(),
		Email:          model.NormalizeEmail(email),
		PasswordHash:   hash,
		EmailConfirmed: true,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}

	query := `
		INSERT INTO identities (id, email, password_hash, email_confirmed, company, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		identity.EmailConfirmed,
		identity.Metadata.Company,
		string(identity.Metadata.Role),
		identity.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return identity, nil
}

// GetUser retrieves an identity by ID.
func (r *Repository) GetUser(ctx context.Context, id string) (*model.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrIdentityNotFound
	}

	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity by ID: %w", err)
	}

	return identity, nil
}

// GetUserByEmail retrieves an identity by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE lower(email) = $1`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, model.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}

	return identity, nil
}

// DeleteUser removes an identity. The profile row goes with it via ON DELETE CASCADE.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrIdentityNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// Authenticate checks an email/password pair and returns the matching identity.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (r *Repository) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	identity, err := r.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			r.hasher.VerifyDecoy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := r.hasher.Verify(password, identity.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return identity, nil
}

// ListUsers returns all identities, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var identities []*model.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return identities, nil
}
