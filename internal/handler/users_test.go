package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

type stubUserService struct {
	provisionErr error
	listErr      error
	deleteErr    error
	updateErr    error

	gotInput  service.ProvisionInput
	gotFilter service.ListFilter
	gotID     string
	gotActor  string
	gotPatch  model.ProfilePatch
}

func (s *stubUserService) Provision(_ context.Context, in service.ProvisionInput) (*service.ProvisionResult, error) {
	s.gotInput = in
	if s.provisionErr != nil {
		return nil, s.provisionErr
	}
	return &service.ProvisionResult{
		IdentityID:      "u-1",
		Email:           in.Email,
		Company:         in.Company,
		Role:            model.RoleClient,
		CreatedAt:       time.Now().UTC(),
		ProfileVerified: true,
		LoginTestPassed: true,
	}, nil
}

func (s *stubUserService) List(_ context.Context, filter service.ListFilter) ([]*model.Profile, error) {
	s.gotFilter = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []*model.Profile{
		{ID: "u-2", Email: "b@b.com", Role: model.RoleClient, IsActive: true},
		{ID: "u-1", Email: "a@b.com", Role: model.RoleAdmin, IsActive: true},
	}, nil
}

func (s *stubUserService) Deprovision(_ context.Context, id string) error {
	s.gotID = id
	return s.deleteErr
}

func (s *stubUserService) UpdateProfile(_ context.Context, actorID, id string, patch model.ProfilePatch) (*model.Profile, error) {
	s.gotActor, s.gotID, s.gotPatch = actorID, id, patch
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	p := &model.Profile{ID: id, Email: "x@b.com", Role: model.RoleClient, IsActive: true}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	return p, nil
}

func withAdmin(r *http.Request) *http.Request {
	p := &model.Principal{SessionID: "s", Profile: &model.Profile{ID: "admin-1", Role: model.RoleAdmin, IsActive: true}}
	return r.WithContext(auth.ContextWithPrincipal(r.Context(), p))
}

func TestUserHandler_Create(t *testing.T) {
	svc := &stubUserService{}
	h := NewUserHandler(svc, discardLogger())

	body := `{"email":"new@b.com","company":"Acme","password":"longenough1","sendWelcomeEmail":true}`
	req := withAdmin(httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body)))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !svc.gotInput.SendWelcome || svc.gotInput.Password != "longenough1" {
		t.Errorf("unexpected input: %+v", svc.gotInput)
	}

	var resp struct {
		Success bool `json:"success"`
		User    struct {
			ID              string `json:"id"`
			Email           string `json:"email"`
			Company         string `json:"company"`
			ProfileVerified bool   `json:"profileVerified"`
			LoginTestPassed bool   `json:"loginTestPassed"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.User.ID != "u-1" || resp.User.Email != "new@b.com" || !resp.User.ProfileVerified {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestUserHandler_CreateErrors(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"bad json", `{"email":`, nil, http.StatusBadRequest},
		{"validation", `{"email":"a@b.com","company":"Acme","password":"short"}`, &service.ValidationError{Fields: map[string]string{"password": "too short"}}, http.StatusBadRequest},
		{"duplicate", `{"email":"dup@b.com","company":"X","password":"longenough1"}`, service.ErrAlreadyExists, http.StatusConflict},
		{"rolled back", `{"email":"n@b.com","company":"X","password":"longenough1"}`, &service.StepError{Step: "create_profile", Kind: service.ErrProfileCreateFailed}, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewUserHandler(&stubUserService{provisionErr: tc.err}, discardLogger())

			req := withAdmin(httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(tc.body)))
			rec := httptest.NewRecorder()
			h.Create(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestUserHandler_List(t *testing.T) {
	svc := &stubUserService{}
	h := NewUserHandler(svc, discardLogger())

	rec := httptest.NewRecorder()
	h.List(rec, withAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/users?role=client&limit=10", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotFilter.Role != "client" || svc.gotFilter.Limit != 10 {
		t.Errorf("unexpected filter: %+v", svc.gotFilter)
	}

	var resp dto.UserListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || resp.Users[0].ID != "u-2" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestUserHandler_Delete(t *testing.T) {
	testCases := []struct {
		name       string
		target     string
		err        error
		wantStatus int
	}{
		{"ok", "/api/v1/users?id=u-1", nil, http.StatusOK},
		{"missing id", "/api/v1/users", nil, http.StatusBadRequest},
		{"unknown", "/api/v1/users?id=u-9", service.ErrNotFound, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubUserService{deleteErr: tc.err}
			h := NewUserHandler(svc, discardLogger())

			rec := httptest.NewRecorder()
			h.Delete(rec, withAdmin(httptest.NewRequest(http.MethodDelete, tc.target, nil)))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"success":true`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestUserHandler_Update(t *testing.T) {
	svc := &stubUserService{}
	h := NewUserHandler(svc, discardLogger())

	req := withAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/users?id=u-2", strings.NewReader(`{"role":"admin"}`)))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotActor != "admin-1" || svc.gotID != "u-2" {
		t.Errorf("actor=%s id=%s", svc.gotActor, svc.gotID)
	}
	if svc.gotPatch.Role == nil || *svc.gotPatch.Role != model.RoleAdmin {
		t.Errorf("unexpected patch: %+v", svc.gotPatch)
	}

	forbidden := NewUserHandler(&stubUserService{updateErr: service.ErrForbidden}, discardLogger())
	rec = httptest.NewRecorder()
	forbidden.Update(rec, withAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/users?id=admin-1", strings.NewReader(`{"role":"client"}`))))
	if rec.Code != http.StatusForbidden {
		t.Errorf("self demotion status = %d, want 403", rec.Code)
	}
}
