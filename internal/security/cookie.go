package security

import (
	"net/http"
	"strings"
	"time"
)

// CookieManager writes the HTTP-only session credential cookie.
type CookieManager struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(name, domain string, secure bool, sameSite string) *CookieManager {
	ss := http.SameSiteLaxMode
	switch strings.ToLower(sameSite) {
	case "strict":
		ss = http.SameSiteStrictMode
	case "none":
		ss = http.SameSiteNoneMode
	}
	if strings.TrimSpace(name) == "" {
		name = "session_token"
	}
	return &CookieManager{Name: name, Domain: domain, Secure: secure, SameSite: ss}
}

func (m *CookieManager) SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.Name,
		Value:    token,
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

func (m *CookieManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.Name,
		Value:    "",
		Path:     "/",
		Domain:   m.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

// SessionToken reads the credential from the cookie, falling back to an
// Authorization bearer header for tooling.
func (m *CookieManager) SessionToken(r *http.Request) string {
	if v := GetCookie(r, m.Name); v != "" {
		return v
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
