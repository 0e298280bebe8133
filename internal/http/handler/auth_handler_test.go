package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/http/middleware"
	"github.com/sandeepkv93/sitedeck/internal/security"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	return env
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rr)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, u *domain.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), u))
}

type stubAuthService struct {
	loginFn    func(in service.LoginInput) (*service.LoginResult, error)
	registerFn func(in service.RegisterInput) (*service.LoginResult, error)
	logoutFn   func(token string) error
	forgotFn   func(email, ip string) error
	resetFn    func(token, password string) error
	changeFn   func(user *domain.User, current, next string) error
	reissueFn  func(user *domain.User) (*service.LoginResult, error)
}

func (s *stubAuthService) Login(_ context.Context, in service.LoginInput) (*service.LoginResult, error) {
	return s.loginFn(in)
}

func (s *stubAuthService) Register(_ context.Context, in service.RegisterInput) (*service.LoginResult, error) {
	return s.registerFn(in)
}

func (s *stubAuthService) Logout(_ context.Context, token string) error {
	if s.logoutFn != nil {
		return s.logoutFn(token)
	}
	return nil
}

func (s *stubAuthService) ForgotPassword(_ context.Context, email, ip string) error {
	if s.forgotFn != nil {
		return s.forgotFn(email, ip)
	}
	return nil
}

func (s *stubAuthService) ResetPassword(_ context.Context, token, password string) error {
	if s.resetFn != nil {
		return s.resetFn(token, password)
	}
	return nil
}

func (s *stubAuthService) ChangePassword(_ context.Context, user *domain.User, current, next string) error {
	if s.changeFn != nil {
		return s.changeFn(user, current, next)
	}
	return nil
}

func (s *stubAuthService) Reissue(_ context.Context, user *domain.User, _, _ string) (*service.LoginResult, error) {
	if s.reissueFn != nil {
		return s.reissueFn(user)
	}
	return loginResult(user, "reissued"), nil
}

func loginResult(u *domain.User, token string) *service.LoginResult {
	return &service.LoginResult{User: u, Token: token, ExpiresAt: time.Now().Add(7 * 24 * time.Hour)}
}

func newTestAuthHandler(svc *stubAuthService) *AuthHandler {
	return NewAuthHandler(svc, security.NewCookieManager("session_token", "", true, "lax"))
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}
	return nil
}

func TestLoginSetsHTTPOnlySessionCookie(t *testing.T) {
	var got service.LoginInput
	h := newTestAuthHandler(&stubAuthService{loginFn: func(in service.LoginInput) (*service.LoginResult, error) {
		got = in
		return loginResult(&domain.User{ID: 3, Email: in.Email}, "tok-123"), nil
	}})

	req := jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@example.com","password":"pw"}`)
	req.Header.Set("User-Agent", "cli/1.0")
	req.RemoteAddr = "198.51.100.4:5555"
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if got.UserAgent != "cli/1.0" || got.IP != "198.51.100.4" {
		t.Fatalf("expected client metadata forwarded, got ua=%q ip=%q", got.UserAgent, got.IP)
	}
	c := sessionCookie(rr)
	if c == nil || c.Value != "tok-123" {
		t.Fatalf("expected session cookie with token, got %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/" {
		t.Fatalf("expected HttpOnly secure root cookie, got %+v", c)
	}
	if c.MaxAge < int((7*24*time.Hour).Seconds())-5 {
		t.Fatalf("expected cookie lifetime of about seven days, got %d", c.MaxAge)
	}
	if strings.Contains(rr.Body.String(), "tok-123") {
		t.Fatal("token must not be echoed in the response body")
	}
}

func TestLoginErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown email", service.ErrUserNotFound, http.StatusUnauthorized, "USER_NOT_FOUND"},
		{"disabled", service.ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED"},
		{"bad password", service.ErrInvalidPassword, http.StatusUnauthorized, "INVALID_PASSWORD"},
		{"throttled", &service.RetryAfterError{RetryAfter: 3 * time.Second}, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
		{"missing field", &service.ValidationError{Field: "email", Message: "is required"}, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestAuthHandler(&stubAuthService{loginFn: func(service.LoginInput) (*service.LoginResult, error) {
				return nil, tc.err
			}})
			rr := httptest.NewRecorder()
			h.Login(rr, jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@example.com","password":"pw"}`))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if code := errorCode(t, rr); code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
			if sessionCookie(rr) != nil {
				t.Fatal("no cookie expected on failure")
			}
		})
	}
}

func TestLoginRejectsMalformedBodies(t *testing.T) {
	h := newTestAuthHandler(&stubAuthService{loginFn: func(service.LoginInput) (*service.LoginResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}})
	for _, body := range []string{"", "{", `{"email":"a","unknown":1}`, `{"email":"a"}{"email":"b"}`} {
		rr := httptest.NewRecorder()
		h.Login(rr, jsonRequest(http.MethodPost, "/api/v1/auth/login", body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rr.Code)
		}
		if code := errorCode(t, rr); code != "BAD_REQUEST" {
			t.Fatalf("body %q: expected BAD_REQUEST, got %s", body, code)
		}
	}
}

func TestRegisterCreatesSession(t *testing.T) {
	h := newTestAuthHandler(&stubAuthService{registerFn: func(in service.RegisterInput) (*service.LoginResult, error) {
		if in.Name != "Ada" {
			t.Fatalf("expected name forwarded, got %q", in.Name)
		}
		return loginResult(&domain.User{ID: 9, Email: in.Email, Name: in.Name, Role: domain.RoleUser}, "new-session"), nil
	}})
	rr := httptest.NewRecorder()
	h.Register(rr, jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"ada@example.com","name":"Ada","password":"Str0ng-Password!"}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if c := sessionCookie(rr); c == nil || c.Value != "new-session" {
		t.Fatal("expected session cookie after registration")
	}
	env := decodeEnvelope(t, rr)
	if !env.Success || env.Message == "" {
		t.Fatalf("expected success envelope with message, got %+v", env)
	}
}

func TestLogoutClearsCookieEvenWithoutSession(t *testing.T) {
	var revoked string
	h := newTestAuthHandler(&stubAuthService{logoutFn: func(token string) error {
		revoked = token
		return nil
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "stale"})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if revoked != "stale" {
		t.Fatalf("expected presented token to be revoked, got %q", revoked)
	}
	c := sessionCookie(rr)
	if c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got %+v", c)
	}

	rr = httptest.NewRecorder()
	revoked = ""
	h.Logout(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	if rr.Code != http.StatusOK || revoked != "" {
		t.Fatalf("expected anonymous logout to succeed without revocation, code=%d revoked=%q", rr.Code, revoked)
	}
}

func TestMeReturnsCurrentUser(t *testing.T) {
	h := newTestAuthHandler(&stubAuthService{})
	rr := httptest.NewRecorder()
	h.Me(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), &domain.User{ID: 5, Email: "me@example.com", PasswordHash: "secret-hash"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret-hash") {
		t.Fatal("password hash leaked")
	}

	rr = httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", rr.Code)
	}
}

func TestForgotPasswordIsUniformForUnknownEmails(t *testing.T) {
	var gotIP string
	h := newTestAuthHandler(&stubAuthService{forgotFn: func(_, ip string) error {
		gotIP = ip
		return nil
	}})
	req := jsonRequest(http.MethodPost, "/api/v1/auth/password/forgot", `{"email":"nobody@example.com"}`)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rr := httptest.NewRecorder()
	h.ForgotPassword(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotIP != "203.0.113.9" {
		t.Fatalf("expected forwarded client ip, got %q", gotIP)
	}
}

func TestResetPasswordInvalidToken(t *testing.T) {
	h := newTestAuthHandler(&stubAuthService{resetFn: func(string, string) error { return service.ErrInvalidResetToken }})
	rr := httptest.NewRecorder()
	h.ResetPassword(rr, jsonRequest(http.MethodPost, "/api/v1/auth/password/reset", `{"token":"x","password":"N3w-Password!"}`))
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "INVALID_TOKEN" {
		t.Fatalf("expected 400 INVALID_TOKEN, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestChangePasswordReissuesSession(t *testing.T) {
	user := &domain.User{ID: 4, Email: "u@example.com"}
	var changed bool
	h := newTestAuthHandler(&stubAuthService{changeFn: func(u *domain.User, current, next string) error {
		if u.ID != 4 || current != "old" || next != "N3w-Password!" {
			t.Fatalf("unexpected change call user=%d current=%q next=%q", u.ID, current, next)
		}
		changed = true
		return nil
	}})
	body := bytes.NewBufferString(`{"current_password":"old","new_password":"N3w-Password!"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/change", body), user)
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)

	if rr.Code != http.StatusOK || !changed {
		t.Fatalf("expected 200 after change, got %d", rr.Code)
	}
	if c := sessionCookie(rr); c == nil || c.Value != "reissued" {
		t.Fatalf("expected reissued session cookie, got %+v", c)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	h := newTestAuthHandler(&stubAuthService{
		changeFn: func(*domain.User, string, string) error { return service.ErrInvalidPassword },
		reissueFn: func(*domain.User) (*service.LoginResult, error) {
			t.Fatal("must not reissue after failed change")
			return nil, nil
		},
	})
	req := asUser(jsonRequest(http.MethodPost, "/api/v1/auth/password/change", `{"current_password":"bad","new_password":"N3w-Password!"}`), &domain.User{ID: 4})
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)
	if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "INVALID_PASSWORD" {
		t.Fatalf("expected 401 INVALID_PASSWORD, got %d %s", rr.Code, rr.Body.String())
	}
}
