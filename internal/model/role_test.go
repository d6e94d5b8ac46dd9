package model

import "testing"

func TestIsValidRole(t *testing.T) {
	testCases := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"client", true},
		{"", false},
		{"Admin", false},
		{"superuser", false},
	}

	for _, tc := range testCases {
		t.Run(tc.role, func(t *testing.T) {
			if got := IsValidRole(tc.role); got != tc.want {
				t.Errorf("IsValidRole(%q) = %v, want %v", tc.role, got, tc.want)
			}
		})
	}
}

func TestPrincipal_UserID(t *testing.T) {
	var nilPrincipal *Principal
	if nilPrincipal.UserID() != "" {
		t.Error("expected empty user id for nil principal")
	}

	p := &Principal{Profile: &Profile{ID: "u1"}}
	if p.UserID() != "u1" {
		t.Errorf("expected u1, got %s", p.UserID())
	}
}

func TestProfilePatch_IsEmpty(t *testing.T) {
	if !(ProfilePatch{}).IsEmpty() {
		t.Error("expected empty patch")
	}

	active := false
	if (ProfilePatch{IsActive: &active}).IsEmpty() {
		t.Error("expected non-empty patch")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  New@B.com "); got != "new@b.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
