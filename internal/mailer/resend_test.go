package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMailer(t *testing.T, handler http.HandlerFunc) *ResendMailer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewResendMailer(ResendConfig{
		APIKey:  "re_test",
		BaseURL: srv.URL,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewResendMailer: %v", err)
	}
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func testEmail() Email {
	return Email{
		From:    "Portal <portal@example.test>",
		To:      []string{"ops@example.test"},
		Subject: "[Client Portal] Hello",
		HTML:    "<p>hi</p>",
		ReplyTo: "client@example.test",
	}
}

func TestResendMailer_Success(t *testing.T) {
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer re_test" {
			t.Errorf("Authorization = %q", got)
		}

		var body resendRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.ReplyTo != "client@example.test" || body.Subject != "[Client Portal] Hello" {
			t.Errorf("unexpected body: %+v", body)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	})

	res, err := m.Send(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !res.Delivered || res.ID != "msg_123" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResendMailer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg_retry"}`))
	})

	res, err := m.Send(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.ID != "msg_retry" {
		t.Errorf("ID = %q", res.ID)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestResendMailer_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"name":"rate_limit_exceeded","message":"Too many requests"}`))
	})

	res, err := m.Send(context.Background(), testEmail())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if res.Delivered {
		t.Error("result should not be delivered")
	}
	if calls.Load() != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls.Load(), DefaultMaxAttempts)
	}
}

func TestResendMailer_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"Invalid from address"}`))
	})

	res, err := m.Send(context.Background(), testEmail())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if res.ErrorDetail != "status 422: Invalid from address" {
		t.Errorf("ErrorDetail = %q", res.ErrorDetail)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestResendMailer_NoRecipients(t *testing.T) {
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	email := testEmail()
	email.To = nil
	if _, err := m.Send(context.Background(), email); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
}

func TestNewResendMailer_RequiresKey(t *testing.T) {
	if _, err := NewResendMailer(ResendConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNormalizeResponse(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		delivered bool
		retry     bool
		wantErr   error
	}{
		{"ok", 200, `{"id":"a"}`, true, false, nil},
		{"ok without id", 200, `{}`, false, false, ErrRejected},
		{"nested error", 400, `{"error":{"message":"bad"}}`, false, false, ErrRejected},
		{"plain text 500", 500, `upstream down`, false, true, ErrUnavailable},
		{"rate limited", 429, ``, false, true, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, retry, err := normalizeResponse(tt.status, []byte(tt.body))
			if res.Delivered != tt.delivered || retry != tt.retry {
				t.Errorf("got delivered=%v retry=%v", res.Delivered, retry)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNextRetryDelay(t *testing.T) {
	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{-1, 200 * time.Millisecond, 300 * time.Millisecond},
		{0, 200 * time.Millisecond, 300 * time.Millisecond},
		{1, 800 * time.Millisecond, 1200 * time.Millisecond},
		{2, 2400 * time.Millisecond, 3600 * time.Millisecond},
		{9, 2400 * time.Millisecond, 3600 * time.Millisecond},
	}

	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			delay := NextRetryDelay(tt.attempt)
			if delay < tt.minDelay || delay > tt.maxDelay {
				t.Errorf("NextRetryDelay(%d) = %v, want between %v and %v",
					tt.attempt, delay, tt.minDelay, tt.maxDelay)
			}
		}
	}
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := m.Send(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !res.Delivered || res.ID == "" {
		t.Errorf("unexpected result: %+v", res)
	}
}
