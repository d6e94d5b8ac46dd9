package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/twopelicans/portal/internal/mailer"
	"github.com/twopelicans/portal/internal/metrics"
	"github.com/twopelicans/portal/internal/model"
)

// PortalSubjectPrefix marks operator mail that came from the portal.
const PortalSubjectPrefix = "[Client Portal] "

// RelayConfig configures a Relay.
type RelayConfig struct {
	From      string
	Operator  []string // fixed recipient mailbox
	PortalURL string
}

// SendInput is a client message to the operator.
type SendInput struct {
	Subject       string `json:"subject" validate:"notblank"`
	Content       string `json:"message" validate:"notblank"`
	SenderEmail   string `json:"clientEmail" validate:"notblank"`
	SenderCompany string `json:"clientCompany"`
	OwnerID       string `json:"-"`
}

// ContactInput is a public contact form submission.
type ContactInput struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Email       string `json:"email" validate:"required,portal_email"`
	Company     string `json:"company" validate:"max=200"`
	Role        string `json:"role" validate:"max=200"`
	ProjectType string `json:"projectType" validate:"max=200"`
	Timeline    string `json:"timeline" validate:"max=200"`
	Message     string `json:"message" validate:"notblank,max=10000"`
}

// SendResult reports a completed delivery.
type SendResult struct {
	Delivered  bool   `json:"delivered"`
	ExternalID string `json:"id"`
	MessageID  string `json:"message_id,omitempty"`
}

// Relay forwards messages to the operator mailbox and keeps a local echo.
type Relay struct {
	mailer  mailer.Mailer
	store   MessageStore
	cfg     RelayConfig
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewRelay creates a Relay. store may be nil, in which case nothing is persisted.
func NewRelay(m mailer.Mailer, store MessageStore, cfg RelayConfig, recorder metrics.Recorder, logger *slog.Logger) *Relay {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Relay{
		mailer:  m,
		store:   store,
		cfg:     cfg,
		metrics: recorder,
		logger:  logger.With("component", "relay"),
	}
}

// Send delivers one client message. The message is stored only after
// the mail provider confirms delivery.
func (r *Relay) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.SenderEmail = strings.TrimSpace(in.SenderEmail)
	in.SenderCompany = strings.TrimSpace(in.SenderCompany)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	html, err := render(portalMessageTemplate, in)
	if err != nil {
		return nil, err
	}

	res, err := r.deliver(ctx, mailer.Email{
		From:    r.cfg.From,
		To:      r.cfg.Operator,
		Subject: PortalSubjectPrefix + in.Subject,
		HTML:    html,
		ReplyTo: in.SenderEmail,
	})
	if err != nil {
		r.metrics.IncMessageSent(metrics.OutcomeFailed)
		r.logger.Error("portal message delivery failed",
			slog.String("owner_id", in.OwnerID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	r.metrics.IncMessageSent(metrics.OutcomeDelivered)

	result := &SendResult{Delivered: true, ExternalID: res.ID}

	if r.store != nil && in.OwnerID != "" {
		msg := &model.Message{
			ID:            ulid.Make().String(),
			OwnerID:       in.OwnerID,
			Subject:       in.Subject,
			Content:       in.Content,
			SenderCompany: in.SenderCompany,
			SenderEmail:   in.SenderEmail,
			Direction:     model.DirectionSent,
			ExternalID:    res.ID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := r.store.Create(ctx, msg); err != nil {
			r.logger.Warn("message delivered but not stored",
				slog.String("owner_id", in.OwnerID),
				slog.String("external_id", res.ID),
				slog.String("error", err.Error()),
			)
		} else {
			result.MessageID = msg.ID
		}
	}

	return result, nil
}

// Inbox returns the owner's stored messages, newest first.
func (r *Relay) Inbox(ctx context.Context, ownerID string, limit int) ([]*model.Message, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	if r.store == nil {
		return []*model.Message{}, nil
	}
	msgs, err := r.store.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead flags one of the owner's messages as read.
func (r *Relay) MarkRead(ctx context.Context, ownerID, id string) error {
	if r.store == nil {
		return ErrNotFound
	}
	if err := r.store.MarkRead(ctx, ownerID, id); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Contact relays a public contact form submission to the operator.
func (r *Relay) Contact(ctx context.Context, in ContactInput) (*SendResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = model.NormalizeEmail(in.Email)
	in.Company = strings.TrimSpace(in.Company)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	html, err := render(contactTemplate, in)
	if err != nil {
		return nil, err
	}

	subject := "New Inquiry from " + in.Name
	if in.Company != "" {
		subject += " at " + in.Company
	}

	res, err := r.deliver(ctx, mailer.Email{
		From:    r.cfg.From,
		To:      r.cfg.Operator,
		Subject: subject,
		HTML:    html,
		ReplyTo: in.Email,
	})
	if err != nil {
		r.metrics.IncContactSubmitted(metrics.OutcomeFailed)
		r.logger.Error("contact form delivery failed", slog.String("error", err.Error()))
		return nil, err
	}

	r.metrics.IncContactSubmitted(metrics.OutcomeDelivered)
	return &SendResult{Delivered: true, ExternalID: res.ID}, nil
}

// Welcome mails a newly provisioned user their portal access details.
func (r *Relay) Welcome(ctx context.Context, email, company string) error {
	html, err := render(welcomeTemplate, welcomeData{
		PortalURL: r.cfg.PortalURL,
		Email:     email,
		Company:   company,
	})
	if err != nil {
		return err
	}

	_, err = r.deliver(ctx, mailer.Email{
		From:    r.cfg.From,
		To:      []string{email},
		Subject: "Welcome to the Client Portal - " + company,
		HTML:    html,
	})
	return err
}

// deliver sends through the mailer and normalizes every failure to ErrDeliveryFailed.
func (r *Relay) deliver(ctx context.Context, email mailer.Email) (mailer.Result, error) {
	res, err := r.mailer.Send(ctx, email)
	if err != nil {
		return res, &StepError{Step: "deliver", Kind: ErrDeliveryFailed, Cause: err}
	}
	if !res.Delivered {
		return res, &StepError{Step: "deliver", Kind: ErrDeliveryFailed, Cause: errors.New(res.ErrorDetail)}
	}
	return res, nil
}
