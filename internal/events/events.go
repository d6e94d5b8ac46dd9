// Package events publishes user lifecycle events to other services.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a lifecycle event. It doubles as the routing key.
type Type string

const (
	UserProvisioned   Type = "user.provisioned"
	UserDeprovisioned Type = "user.deprovisioned"
	UserUpdated       Type = "user.updated"
)

// Event is the payload published for every lifecycle change.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event stamped with a fresh id and the current time.
func New(t Type, userID, email string) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       t,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }
