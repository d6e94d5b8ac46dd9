package mailer

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// LogMailer writes emails to the log instead of sending them.
// It is used when no mail API key is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

// Send logs the email and reports it delivered.
func (m *LogMailer) Send(ctx context.Context, email Email) (Result, error) {
	if len(email.To) == 0 {
		return Result{ErrorDetail: ErrNoRecipients.Error()}, ErrNoRecipients
	}

	id := "log_" + ulid.Make().String()
	m.logger.InfoContext(ctx, "email not sent, no mail provider configured",
		slog.String("id", id),
		slog.Any("to", email.To),
		slog.String("subject", email.Subject),
		slog.String("reply_to", email.ReplyTo),
		slog.Int("html_bytes", len(email.HTML)),
	)
	return Result{Delivered: true, ID: id}, nil
}
