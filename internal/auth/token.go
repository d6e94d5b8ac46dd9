package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrTokenInvalid = errors.New("session token invalid")
	ErrTokenExpired = errors.New("session token expired")
	ErrWeakSecret   = errors.New("session secret must be at least 32 bytes")
)

// minSecretLen is the minimum HMAC key size for HS256.
const minSecretLen = 32

// TokenClaims are the verified contents of a session token.
type TokenClaims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens (HS256 JWT).
// A token only proves which session it names; the session itself must
// still be looked up server-side.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given session.
func (t *TokenIssuer) Issue(userID, sessionID string, expiresAt time.Time) (string, error) {
	now := t.now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, pinning the algorithm to HS256.
func (t *TokenIssuer) Verify(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return &TokenClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		ExpiresAt: exp,
	}, nil
}
