// Package dto holds the JSON request and response bodies of the portal API.
package dto

import (
	"time"

	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

// ErrorBody is the payload of an error response.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   ProfileResponse `json:"profile"`
}

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Company   string     `json:"company"`
	Role      model.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// CreateUserResponse is returned by POST /users.
type CreateUserResponse struct {
	Success bool                     `json:"success"`
	User    *service.ProvisionResult `json:"user"`
}

// UserListResponse is returned by GET /users.
type UserListResponse struct {
	Users []ProfileResponse `json:"users"`
	Total int               `json:"total"`
}

// SuccessResponse acknowledges an operation with no other result.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// MessageResponse is one stored portal message.
type MessageResponse struct {
	ID            string          `json:"id"`
	Subject       string          `json:"subject"`
	Content       string          `json:"content"`
	SenderCompany string          `json:"sender_company"`
	SenderEmail   string          `json:"sender_email"`
	Type          model.Direction `json:"type"`
	IsRead        bool            `json:"is_read"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MessageListResponse is returned by GET /messages.
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// ContactResponse is returned by POST /contact.
type ContactResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// ToProfileResponse converts a Profile model to its DTO.
func ToProfileResponse(p *model.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Email:     p.Email,
		Company:   p.Company,
		Role:      p.Role,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		LastLogin: p.LastLogin,
	}
}

// ToUserListResponse converts profiles to the list DTO.
func ToUserListResponse(profiles []*model.Profile) UserListResponse {
	users := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, ToProfileResponse(p))
	}
	return UserListResponse{Users: users, Total: len(users)}
}

// ToMessageListResponse converts messages to the list DTO.
func ToMessageListResponse(msgs []*model.Message) MessageListResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			ID:            m.ID,
			Subject:       m.Subject,
			Content:       m.Content,
			SenderCompany: m.SenderCompany,
			SenderEmail:   m.SenderEmail,
			Type:          m.Direction,
			IsRead:        m.IsRead,
			CreatedAt:     m.CreatedAt,
		})
	}
	return MessageListResponse{Messages: out}
}
