package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultResendBaseURL is the Resend REST API root.
const DefaultResendBaseURL = "https://api.resend.com"

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 512

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// resendResponse covers both the success and error shapes of the API.
type resendResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ResendConfig configures a ResendMailer.
type ResendConfig struct {
	APIKey      string
	BaseURL     string
	MaxAttempts int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// ResendMailer sends email through the Resend HTTP API.
type ResendMailer struct {
	apiKey      string
	endpoint    string
	maxAttempts int
	client      *http.Client
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewResendMailer creates a Resend-backed Mailer.
func NewResendMailer(cfg ResendConfig) (*ResendMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("RESEND_API_KEY is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ResendMailer{
		apiKey:      cfg.APIKey,
		endpoint:    baseURL + "/emails",
		maxAttempts: cfg.MaxAttempts,
		client:      cfg.HTTPClient,
		logger:      cfg.Logger.With("component", "mailer"),
		sleep:       sleepContext,
	}, nil
}

// Send delivers the email, retrying transient failures.
func (m *ResendMailer) Send(ctx context.Context, email Email) (Result, error) {
	if len(email.To) == 0 {
		return Result{ErrorDetail: ErrNoRecipients.Error()}, ErrNoRecipients
	}

	body, err := json.Marshal(resendRequest{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		ReplyTo: email.ReplyTo,
	})
	if err != nil {
		return Result{ErrorDetail: "encode request"}, fmt.Errorf("marshal email: %w", err)
	}

	var last Result
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := m.sleep(ctx, NextRetryDelay(attempt-1)); err != nil {
				return last, err
			}
		}

		res, retry, err := m.attempt(ctx, body)
		if err == nil {
			return res, nil
		}
		last = res

		m.logger.Warn("email send attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Bool("retryable", retry),
			slog.String("error", res.ErrorDetail),
		)

		if !retry {
			return res, err
		}
	}

	return last, fmt.Errorf("%w: %s", ErrUnavailable, last.ErrorDetail)
}

// attempt makes one API call. The bool reports whether a failure is retryable.
func (m *ResendMailer) attempt(ctx context.Context, body []byte) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{ErrorDetail: "build request"}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ClientPortal-Mailer/1.0")

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{ErrorDetail: ctx.Err().Error()}, false, ctx.Err()
		}
		return Result{ErrorDetail: "transport error"}, true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return normalizeResponse(resp.StatusCode, raw)
}

// normalizeResponse turns any provider reply into a Result.
func normalizeResponse(status int, raw []byte) (Result, bool, error) {
	var parsed resendResponse
	_ = json.Unmarshal(raw, &parsed)

	if status >= 200 && status < 300 {
		if parsed.ID == "" {
			return Result{ErrorDetail: "missing message id"}, false, fmt.Errorf("%w: response without id", ErrRejected)
		}
		return Result{Delivered: true, ID: parsed.ID}, false, nil
	}

	detail := parsed.Message
	if detail == "" && parsed.Error != nil {
		detail = parsed.Error.Message
	}
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody]
		}
	}
	detail = fmt.Sprintf("status %d: %s", status, detail)

	if IsRetryableStatus(status) {
		return Result{ErrorDetail: detail}, true, fmt.Errorf("%w: %s", ErrUnavailable, detail)
	}
	return Result{ErrorDetail: detail}, false, fmt.Errorf("%w: %s", ErrRejected, detail)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
