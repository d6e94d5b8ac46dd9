package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/twopelicans/portal/internal/handler/dto"
	"github.com/twopelicans/portal/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorBody {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestHandler_Root(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Root(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["version"] != Version {
		t.Errorf("unexpected version: %s", response["version"])
	}
}

func TestHandler_NotFound(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "NOT_FOUND" {
		t.Errorf("unexpected code: %s", body.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &service.ValidationError{Fields: map[string]string{"email": "email is required"}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"profile missing", service.ErrProfileMissing, http.StatusForbidden, "PROFILE_MISSING"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"already exists", &service.StepError{Step: "create_identity", Kind: service.ErrAlreadyExists, Cause: errors.New("23505")}, http.StatusConflict, "ALREADY_EXISTS"},
		{"identity create", &service.StepError{Step: "create_identity", Kind: service.ErrIdentityCreateFailed, Cause: errors.New("pool closed")}, http.StatusInternalServerError, "IDENTITY_CREATE_FAILED"},
		{"profile create", &service.StepError{Step: "create_profile", Kind: service.ErrProfileCreateFailed, Cause: errors.New("x")}, http.StatusInternalServerError, "PROFILE_CREATE_FAILED"},
		{"verification", &service.StepError{Step: "verify", Kind: service.ErrVerificationFailed}, http.StatusInternalServerError, "VERIFICATION_FAILED"},
		{"delivery", &service.StepError{Step: "deliver", Kind: service.ErrDeliveryFailed, Cause: errors.New("503")}, http.StatusBadGateway, "DELIVERY_FAILED"},
		{"unknown", fmt.Errorf("list profiles: %w", errors.New("conn reset")), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, discardLogger(), tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			body := decodeError(t, rec)
			if body.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tc.wantCode)
			}
		})
	}
}

func TestWriteServiceError_HidesBackendDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &service.StepError{Step: "create_profile", Kind: service.ErrProfileCreateFailed, Cause: errors.New(`relation "profiles" does not exist`)}

	writeServiceError(rec, discardLogger(), err)

	body := decodeError(t, rec)
	if body.Message != service.ErrProfileCreateFailed.Error() {
		t.Errorf("message = %q", body.Message)
	}
}

func TestWriteServiceError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, discardLogger(), &service.ValidationError{Fields: map[string]string{
		"password": "password must be at least 8 characters",
	}})

	body := decodeError(t, rec)
	if body.Details["password"] == "" {
		t.Errorf("expected password detail, got %v", body.Details)
	}
}
