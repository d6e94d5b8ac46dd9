package model

import "time"

// Direction of a portal message relative to the client.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Message is a client-to-operator communication kept for display in the portal.
type Message struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"user_id"`
	Subject       string    `json:"subject"`
	Content       string    `json:"content"`
	SenderCompany string    `json:"sender_company"`
	SenderEmail   string    `json:"sender_email"`
	Direction     Direction `json:"type"`
	ExternalID    string    `json:"external_id,omitempty"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}
