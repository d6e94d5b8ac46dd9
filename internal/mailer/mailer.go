// Package mailer delivers portal email through a transactional mail API.
package mailer

import (
	"context"
	"errors"
)

// Email is one outbound message.
type Email struct {
	From    string
	To      []string
	Subject string
	HTML    string
	ReplyTo string
}

// Result is the normalized outcome of a send, whatever the provider returned.
type Result struct {
	Delivered   bool
	ID          string
	ErrorDetail string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, email Email) (Result, error)
}

// ErrNoRecipients is returned when an Email has no To address.
var ErrNoRecipients = errors.New("email has no recipients")

// ErrRejected is returned when the provider permanently refused the message.
var ErrRejected = errors.New("email rejected by provider")

// ErrUnavailable is returned when the provider could not be reached after all retries.
var ErrUnavailable = errors.New("email provider unavailable")
