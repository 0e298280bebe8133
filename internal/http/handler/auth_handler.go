package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/http/middleware"
	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/security"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type AuthHandler struct {
	authSvc   service.AuthServiceInterface
	cookieMgr *security.CookieManager
}

func NewAuthHandler(authSvc service.AuthServiceInterface, cookieMgr *security.CookieManager) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cookieMgr: cookieMgr}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.authSvc.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Name:      req.Name,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	if err != nil {
		observability.Audit(r, "auth.register.failed", "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	h.setSession(w, result)
	observability.Audit(r, "auth.register.success", "user_id", result.User.ID)
	response.Message(w, r, http.StatusCreated, "account created", result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.authSvc.Login(r.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	if err != nil {
		observability.Audit(r, "auth.login.failed", "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	h.setSession(w, result)
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, result)
}

// Logout is idempotent: an unknown or missing credential still clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionTokenFromContext(r.Context())
	if token == "" {
		token = h.cookieMgr.SessionToken(r)
	}
	if token != "" {
		if err := h.authSvc.Logout(r.Context(), token); err != nil {
			observability.Audit(r, "auth.logout.failed", "reason", "revoke_error")
			response.FromError(w, r, err)
			return
		}
	}
	h.cookieMgr.ClearSessionCookie(w)
	if u := actor(r); u != nil {
		observability.Audit(r, "auth.logout.success", "user_id", u.ID)
	}
	response.Message(w, r, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if u == nil {
		response.FromError(w, r, service.ErrUnauthorized)
		return
	}
	response.JSON(w, r, http.StatusOK, u)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authSvc.ForgotPassword(r.Context(), req.Email, clientIP(r)); err != nil {
		observability.Audit(r, "auth.password.forgot.failed", "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.forgot.requested")
	response.Message(w, r, http.StatusOK, "if the account exists, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		observability.Audit(r, "auth.password.reset.failed", "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.reset.success")
	response.Message(w, r, http.StatusOK, "password updated, please sign in", nil)
}

// ChangePassword revokes every session of the user and signs this client in again.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if u == nil {
		response.FromError(w, r, service.ErrUnauthorized)
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authSvc.ChangePassword(r.Context(), u, req.CurrentPassword, req.NewPassword); err != nil {
		observability.Audit(r, "auth.password.change.failed", "user_id", u.ID, "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	result, err := h.authSvc.Reissue(r.Context(), u, r.UserAgent(), clientIP(r))
	if err != nil {
		h.cookieMgr.ClearSessionCookie(w)
		response.FromError(w, r, err)
		return
	}
	h.setSession(w, result)
	observability.Audit(r, "auth.password.change.success", "user_id", u.ID)
	response.Message(w, r, http.StatusOK, "password changed", result)
}

func (h *AuthHandler) setSession(w http.ResponseWriter, result *service.LoginResult) {
	ttl := time.Until(result.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	h.cookieMgr.SetSessionCookie(w, result.Token, ttl)
}

// failureReason gives audit lines a stable label without leaking details.
func failureReason(err error) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, service.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, service.ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, service.ErrInvalidPassword):
		return "invalid_password"
	case errors.Is(err, service.ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, service.ErrInvalidResetToken):
		return "invalid_token"
	case errors.Is(err, service.ErrTooManyAttempts):
		return "throttled"
	case errors.Is(err, service.ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
