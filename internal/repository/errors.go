package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
