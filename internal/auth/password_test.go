package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	pw, err := GeneratePassword(DefaultPasswordLength)
	if err != nil {
		t.Fatalf("GeneratePassword failed: %v", err)
	}

	if len(pw) != DefaultPasswordLength {
		t.Errorf("expected length %d, got %d", DefaultPasswordLength, len(pw))
	}

	for _, c := range pw {
		if !strings.ContainsRune(passwordAlphabet, c) {
			t.Errorf("unexpected character %q in %q", c, pw)
		}
	}
}

func TestGeneratePassword_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pw, err := GeneratePassword(DefaultPasswordLength)
		if err != nil {
			t.Fatalf("GeneratePassword failed: %v", err)
		}
		if seen[pw] {
			t.Fatalf("duplicate password generated: %s", pw)
		}
		seen[pw] = true
	}
}

func TestGeneratePassword_TooShort(t *testing.T) {
	_, err := GeneratePassword(MinPasswordLength - 1)
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestNewSessionID(t *testing.T) {
	id1, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID failed: %v", err)
	}
	id2, _ := NewSessionID()

	if id1 == id2 {
		t.Error("session ids should be unique")
	}
	// 32 bytes, unpadded base64url
	if len(id1) != 43 {
		t.Errorf("expected 43 chars, got %d", len(id1))
	}
}
