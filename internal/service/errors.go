// Package service provides business logic for the client portal.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Service errors. Handlers map these to HTTP statuses.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrProfileMissing  = errors.New("user profile not found")
	ErrAlreadyExists   = errors.New("a user with this email already exists")
	ErrNotFound        = errors.New("not found")
	ErrDeliveryFailed  = errors.New("message delivery failed")

	ErrIdentityCreateFailed = errors.New("failed to create user account")
	ErrProfileCreateFailed  = errors.New("failed to create user profile; account creation was rolled back")
	ErrVerificationFailed   = errors.New("profile verification failed; account creation was rolled back")
)

// ValidationError lists per-field problems. It matches ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

// Error implements error.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// StepError records which workflow step failed. Kind is the public
// taxonomy error; Cause is the backend error and is only logged.
type StepError struct {
	Step  string
	Kind  error
	Cause error
}

// Error implements error.
func (e *StepError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Cause)
}

// Unwrap exposes both Kind and Cause to errors.Is and errors.As.
func (e *StepError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
