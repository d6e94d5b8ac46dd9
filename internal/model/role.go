package model

import "time"

// Role is the sole authorization axis of the portal.
type Role string

// Role constants.
const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// ValidRoles contains all valid role values.
var ValidRoles = []Role{RoleAdmin, RoleClient}

// IsValidRole reports whether r names a known role.
func IsValidRole(r string) bool {
	for _, v := range ValidRoles {
		if string(v) == r {
			return true
		}
	}
	return false
}

// Session is a server-side login session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal is the authenticated caller injected into the request context.
// It is resolved server-side on every request, never taken from the client.
type Principal struct {
	SessionID string
	Token     string
	Profile   *Profile
}

// UserID returns the caller's identity id.
func (p *Principal) UserID() string {
	if p == nil || p.Profile == nil {
		return ""
	}
	return p.Profile.ID
}
