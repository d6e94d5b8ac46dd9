package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// Generated password settings.
const (
	// DefaultPasswordLength is used by the admin CLI when no password is given.
	DefaultPasswordLength = 16
	// MinPasswordLength is the shortest password the portal accepts.
	MinPasswordLength = 8

	// passwordAlphabet omits look-alike characters (I, O, l, 0, 1).
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789!@#$%^&*"

	sessionIDBytes = 32
)

// ErrPasswordTooShort is returned when a generated password would be too short.
var ErrPasswordTooShort = errors.New("password length below minimum")

// GeneratePassword returns a random password of the given length.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}

	return string(out), nil
}

// NewSessionID returns an opaque 256-bit session identifier.
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
