package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestJSONWritesSuccessEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]int{"id": 4})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	env := decode(t, rr)
	if !env.Success || env.Error != nil || string(env.Data) != `{"id":4}` {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestFromErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Field: "title", Message: "is required"}, http.StatusBadRequest, CodeValidationFailed},
		{"weak password", service.ErrWeakPassword, http.StatusBadRequest, CodeValidationFailed},
		{"duplicate", fmt.Errorf("category %q: %w", "Go", repository.ErrDuplicate), http.StatusConflict, CodeConflict},
		{"category in use", repository.ErrCategoryInUse, http.StatusConflict, CodeCategoryInUse},
		{"user not found", service.ErrUserNotFound, http.StatusUnauthorized, CodeUserNotFound},
		{"account disabled", service.ErrAccountDisabled, http.StatusForbidden, CodeAccountDisabled},
		{"invalid password", service.ErrInvalidPassword, http.StatusUnauthorized, CodeInvalidPassword},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", fmt.Errorf("%w: staff only", service.ErrForbidden), http.StatusForbidden, CodeForbidden},
		{"not found", repository.ErrWebsiteNotFound, http.StatusNotFound, CodeNotFound},
		{"reset token", service.ErrInvalidResetToken, http.StatusBadRequest, CodeInvalidToken},
		{"storage disabled", service.ErrStorageDisabled, http.StatusServiceUnavailable, CodeUnavailable},
		{"internal", errors.New("dial tcp 10.0.0.1:5432: refused"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			FromError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			env := decode(t, rr)
			if env.Success || env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, env)
			}
			if tc.code == CodeInternal && env.Message != "internal server error" {
				t.Fatalf("internal details leaked: %q", env.Message)
			}
		})
	}
}

func TestFromErrorSetsRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	FromError(rr, httptest.NewRequest(http.MethodPost, "/", nil), &service.RetryAfterError{RetryAfter: 1500 * time.Millisecond})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
	if env := decode(t, rr); env.Error.Code != CodeTooManyAttempts {
		t.Fatalf("unexpected code %+v", env.Error)
	}
}

func TestValidationDetailsCarryField(t *testing.T) {
	rr := httptest.NewRecorder()
	FromError(rr, httptest.NewRequest(http.MethodPost, "/", nil), &service.ValidationError{Field: "url", Message: "has already been submitted"})
	env := decode(t, rr)
	if env.Error.Details["field"] != "url" || env.Message != "url: has already been submitted" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
