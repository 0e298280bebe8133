package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/security"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "session_token"
)

// SessionAuth resolves the session credential, if any, and stores the live
// user in the request context. Requests without a valid session continue
// anonymously; a store failure is logged and also treated as anonymous.
func SessionAuth(resolver service.SessionResolver, cookies *security.CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				slog.WarnContext(r.Context(), "session resolution failed", "error", err)
				observability.RecordMiddlewareValidationEvent(r.Context(), "session", "error")
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				observability.RecordMiddlewareValidationEvent(r.Context(), "session", "anonymous")
				next.ServeHTTP(w, r)
				return
			}
			noteUser(r.Context(), user.ID)
			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff admits admins and super admins.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
			return
		}
		if !user.Role.IsStaff() {
			observability.Audit(r, "authz.staff.denied", "user_id", user.ID, "role", user.Role)
			response.Error(w, r, http.StatusForbidden, response.CodeForbidden, "staff access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok && u != nil
}

// SessionTokenFromContext returns the raw credential of an authenticated request.
func SessionTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenContextKey).(string)
	return v
}

// WithUser is used by tests and internal callers to attach an actor.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}
