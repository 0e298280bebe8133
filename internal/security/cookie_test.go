package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewCookieManagerSameSiteMapping(t *testing.T) {
	if got := NewCookieManager("", "", true, "strict").SameSite; got != http.SameSiteStrictMode {
		t.Fatalf("strict mapping mismatch: %v", got)
	}
	if got := NewCookieManager("", "", true, "none").SameSite; got != http.SameSiteNoneMode {
		t.Fatalf("none mapping mismatch: %v", got)
	}
	if got := NewCookieManager("", "", true, "unexpected").SameSite; got != http.SameSiteLaxMode {
		t.Fatalf("default mapping mismatch: %v", got)
	}
	if got := NewCookieManager("", "", true, "lax").Name; got != "session_token" {
		t.Fatalf("expected default cookie name, got %q", got)
	}
}

func TestCookieManagerSetSessionCookieFlags(t *testing.T) {
	mgr := NewCookieManager("session_token", "example.com", true, "strict")
	rr := httptest.NewRecorder()
	mgr.SetSessionCookie(rr, "tok", 7*24*time.Hour)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "session_token" || c.Value != "tok" || c.Path != "/" || !c.HttpOnly || !c.Secure || c.Domain != "example.com" {
		t.Fatalf("unexpected session cookie: %#v", c)
	}
	if c.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected max-age %d", c.MaxAge)
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected same-site: %v", c.SameSite)
	}
}

func TestCookieManagerClearSessionCookie(t *testing.T) {
	mgr := NewCookieManager("session_token", "", false, "lax")
	rr := httptest.NewRecorder()
	mgr.ClearSessionCookie(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cleared cookie, got %d", len(cookies))
	}
	if c := cookies[0]; c.MaxAge != -1 || c.Value != "" || !c.HttpOnly {
		t.Fatalf("expected cleared cookie, got %#v", c)
	}
}

func TestCookieManagerSessionTokenSources(t *testing.T) {
	mgr := NewCookieManager("session_token", "", false, "lax")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	if got := mgr.SessionToken(req); got != "from-cookie" {
		t.Fatalf("expected cookie to win, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer from-header")
	if got := mgr.SessionToken(req); got != "from-header" {
		t.Fatalf("expected bearer fallback, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := mgr.SessionToken(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestGetCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "x"})

	if got := GetCookie(req, "session_token"); got != "x" {
		t.Fatalf("unexpected cookie value %q", got)
	}
	if got := GetCookie(req, "missing"); got != "" {
		t.Fatalf("expected empty cookie value for missing cookie, got %q", got)
	}
}
