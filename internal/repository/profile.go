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

// ProfileFilter narrows ListProfiles. Empty Roles matches every role.
type ProfileFilter struct {
	Roles []model.Role
	Limit int
}

const profileColumns = `id, email, company, role, is_active, created_at, updated_at, last_login`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	var role string
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Company,
		&role,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	return &p, nil
}

// InsertProfile inserts a profile row for an existing identity.
func (r *Repository) InsertProfile(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	p.Email = model.NormalizeEmail(p.Email)

	query := `
		INSERT INTO profiles (id, email, company, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Email,
		p.Company,
		string(p.Role),
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return nil
}

// GetProfileByID retrieves a profile by identity ID.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProfileNotFound
	}

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by ID: %w", err)
	}
	return p, nil
}

// GetProfileByEmail retrieves a profile by email address.
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, model.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return p, nil
}

// ListProfiles returns profiles ordered by created_at descending.
func (r *Repository) ListProfiles(ctx context.Context, filter ProfileFilter) ([]*model.Profile, error) {
	roles := make([]string, 0, len(filter.Roles))
	for _, role := range filter.Roles {
		roles = append(roles, string(role))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE cardinality($1::text[]) = 0 OR role = ANY($1::text[])
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, roles, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return profiles, nil
}

// UpdateProfile applies a partial update and returns the new row.
func (r *Repository) UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProfileNotFound
	}

	var role *string
	if patch.Role != nil {
		s := string(*patch.Role)
		role = &s
	}

	query := `
		UPDATE profiles
		SET role = COALESCE($2::text, role),
		    is_active = COALESCE($3::boolean, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id, role, patch.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// DeleteProfile removes a profile row without touching its identity.
func (r *Repository) DeleteProfile(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrProfileNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE profiles SET last_login = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// CountProfilesByRole counts profiles holding the given role.
func (r *Repository) CountProfilesByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE role = $1`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

// ListOrphanProfiles returns profiles whose identity no longer exists.
// Any result means the cascade constraint is missing from the schema.
func (r *Repository) ListOrphanProfiles(ctx context.Context) ([]*model.Profile, error) {
	query := `
		SELECT p.id, p.email, p.company, p.role, p.is_active, p.created_at, p.updated_at, p.last_login
		FROM profiles p
		LEFT JOIN identities i ON i.id = p.id
		WHERE i.id IS NULL
		ORDER BY p.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
