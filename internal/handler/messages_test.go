package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/metrics"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

type stubRelay struct {
	sendErr    error
	contactErr error
	markErr    error

	gotSend    service.SendInput
	gotContact service.ContactInput
	gotOwner   string
	gotID      string
}

func (s *stubRelay) Send(_ context.Context, in service.SendInput) (*service.SendResult, error) {
	s.gotSend = in
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &service.SendResult{Delivered: true, ExternalID: "ext-1", MessageID: "m-1"}, nil
}

func (s *stubRelay) Inbox(_ context.Context, ownerID string, _ int) ([]*model.Message, error) {
	s.gotOwner = ownerID
	return []*model.Message{{ID: "m-1", OwnerID: ownerID, Subject: "Hi", Direction: model.DirectionSent, CreatedAt: time.Now()}}, nil
}

func (s *stubRelay) MarkRead(_ context.Context, ownerID, id string) error {
	s.gotOwner, s.gotID = ownerID, id
	return s.markErr
}

func (s *stubRelay) Contact(_ context.Context, in service.ContactInput) (*service.SendResult, error) {
	s.gotContact = in
	if s.contactErr != nil {
		return nil, s.contactErr
	}
	return &service.SendResult{Delivered: true, ExternalID: "ext-2"}, nil
}

func withClient(r *http.Request) *http.Request {
	p := &model.Principal{Profile: &model.Profile{ID: "client-1", Email: "client@acme.com", Company: "Acme", Role: model.RoleClient, IsActive: true}}
	return r.WithContext(auth.ContextWithPrincipal(r.Context(), p))
}

func TestMessageHandler_Send(t *testing.T) {
	relay := &stubRelay{}
	h := NewMessageHandler(relay, discardLogger())

	body := `{"subject":"Hi","message":"Hello","clientEmail":"c@b.com","clientCompany":"Acme"}`
	rec := httptest.NewRecorder()
	h.Send(rec, withClient(httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if relay.gotSend.OwnerID != "client-1" || relay.gotSend.Content != "Hello" || relay.gotSend.SenderCompany != "Acme" {
		t.Errorf("unexpected input: %+v", relay.gotSend)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["delivered"] != true || resp["id"] != "ext-1" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestMessageHandler_SendIgnoresClientOwner(t *testing.T) {
	relay := &stubRelay{}
	h := NewMessageHandler(relay, discardLogger())

	body := `{"subject":"Hi","message":"Hello","clientEmail":"c@b.com","OwnerID":"someone-else"}`
	h.Send(httptest.NewRecorder(), withClient(httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))))

	if relay.gotSend.OwnerID != "client-1" {
		t.Errorf("owner must come from the session, got %q", relay.gotSend.OwnerID)
	}
}

func TestMessageHandler_SendUsesProfileSender(t *testing.T) {
	testCases := []struct {
		name        string
		body        string
		wantEmail   string
		wantCompany string
	}{
		{
			name:        "spoofed sender replaced",
			body:        `{"subject":"Hi","message":"Hello","clientEmail":"ceo@victim.com","clientCompany":"Victim Inc"}`,
			wantEmail:   "client@acme.com",
			wantCompany: "Acme",
		},
		{
			name:        "sender omitted",
			body:        `{"subject":"Hi","message":"Hello"}`,
			wantEmail:   "client@acme.com",
			wantCompany: "Acme",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			relay := &stubRelay{}
			h := NewMessageHandler(relay, discardLogger())

			rec := httptest.NewRecorder()
			h.Send(rec, withClient(httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(tc.body))))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if relay.gotSend.SenderEmail != tc.wantEmail || relay.gotSend.SenderCompany != tc.wantCompany {
				t.Errorf("sender = %q/%q, want %q/%q", relay.gotSend.SenderEmail, relay.gotSend.SenderCompany, tc.wantEmail, tc.wantCompany)
			}
		})
	}
}

func TestMessageHandler_SendErrors(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid", &service.ValidationError{Fields: map[string]string{"subject": "subject is required"}}, http.StatusBadRequest},
		{"delivery", &service.StepError{Step: "deliver", Kind: service.ErrDeliveryFailed}, http.StatusBadGateway},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMessageHandler(&stubRelay{sendErr: tc.err}, discardLogger())

			rec := httptest.NewRecorder()
			h.Send(rec, withClient(httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{}`))))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestMessageHandler_List(t *testing.T) {
	relay := &stubRelay{}
	h := NewMessageHandler(relay, discardLogger())

	rec := httptest.NewRecorder()
	h.List(rec, withClient(httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if relay.gotOwner != "client-1" {
		t.Errorf("owner = %q", relay.gotOwner)
	}

	var resp dto.MessageListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Type != model.DirectionSent {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestMessageHandler_MarkRead(t *testing.T) {
	relay := &stubRelay{markErr: service.ErrNotFound}
	h := NewMessageHandler(relay, discardLogger())

	r := chi.NewRouter()
	r.Post("/api/v1/messages/{id}/read", h.MarkRead)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, withClient(httptest.NewRequest(http.MethodPost, "/api/v1/messages/m-9/read", nil)))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if relay.gotID != "m-9" || relay.gotOwner != "client-1" {
		t.Errorf("id=%s owner=%s", relay.gotID, relay.gotOwner)
	}
}

func TestContactHandler_Submit(t *testing.T) {
	relay := &stubRelay{}
	h := NewContactHandler(relay, discardLogger())

	body := `{"name":"Jane","email":"jane@example.com","company":"Acme","projectType":"web","message":"Hello"}`
	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if relay.gotContact.ProjectType != "web" {
		t.Errorf("unexpected input: %+v", relay.gotContact)
	}

	var resp dto.ContactResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ID != "ext-2" {
		t.Errorf("unexpected response: %+v", resp)
	}

	failing := NewContactHandler(&stubRelay{contactErr: &service.StepError{Step: "deliver", Kind: service.ErrDeliveryFailed}}, discardLogger())
	rec = httptest.NewRecorder()
	failing.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(body)))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	recorder := metrics.NewPrometheus()
	recorder.IncProvision(metrics.OutcomeRolledBack)
	recorder.IncMessageSent(metrics.OutcomeDelivered)
	recorder.IncLogin(metrics.OutcomeFailed)

	h := NewMetricsHandler(recorder.Gatherer())
	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`portal_provisions_total{outcome="rolled_back"} 1`,
		`portal_messages_sent_total{outcome="delivered"} 1`,
		`portal_logins_total{outcome="failed"} 1`,
		"# TYPE portal_provision_duration_seconds histogram",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
