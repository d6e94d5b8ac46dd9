// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// IdentityMetadata is the free-form metadata stored alongside an identity.
type IdentityMetadata struct {
	Company string `json:"company"`
	Role    Role   `json:"role"`
}

// Identity is an authenticatable credential record held by the identity store.
type Identity struct {
	ID             string           `json:"id"`
	Email          string           `json:"email"`
	PasswordHash   string           `json:"-"` // Never serialize
	EmailConfirmed bool             `json:"email_confirmed"`
	Metadata       IdentityMetadata `json:"metadata"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Profile is the application-level record describing a portal user.
// Its ID always equals the owning Identity's ID.
type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Company   string     `json:"company"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ProfilePatch holds the mutable profile fields. Nil fields are left untouched.
type ProfilePatch struct {
	Role     *Role `json:"role,omitempty"`
	IsActive *bool `json:"is_active,omitempty"`
}

// IsEmpty returns true if the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Role == nil && p.IsActive == nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
