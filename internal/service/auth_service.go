package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/security"
)

type AuthOptions struct {
	PasswordResetTTL time.Duration
	PasswordResetURL string
}

type AuthService struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	sessions *SessionService
	guard    AttemptGuard
	notifier PasswordResetNotifier
	opts     AuthOptions
	logger   *slog.Logger
	now      func() time.Time
}

type LoginInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IP        string `json:"-"`
}

type RegisterInput struct {
	Email     string `json:"email"`
	Name      string `json:"name" validate:"required,max=255"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IP        string `json:"-"`
}

type LoginResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func NewAuthService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	sessions *SessionService,
	guard AttemptGuard,
	notifier PasswordResetNotifier,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	if guard == nil {
		guard = NewNoopAttemptGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PasswordResetTTL <= 0 {
		opts.PasswordResetTTL = time.Hour
	}
	return &AuthService{
		users:    users,
		resets:   resets,
		sessions: sessions,
		guard:    guard,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login distinguishes unknown email, disabled account and wrong password so
// clients can pick the right affordance.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, invalid("email", "is required")
	}
	if in.Password == "" {
		return nil, invalid("password", "is required")
	}
	if err := s.checkGuard(ctx, AttemptScopeLogin, email, in.IP); err != nil {
		observability.RecordAuthLogin(ctx, "throttled")
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.registerFailure(ctx, AttemptScopeLogin, email, in.IP)
		observability.RecordAuthLogin(ctx, "user_not_found")
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive() {
		observability.RecordAuthLogin(ctx, "disabled")
		return nil, ErrAccountDisabled
	}
	ok, err := security.VerifyPassword(user.PasswordHash, in.Password)
	if err != nil && !errors.Is(err, security.ErrInvalidPasswordHash) {
		return nil, err
	}
	if !ok {
		s.registerFailure(ctx, AttemptScopeLogin, email, in.IP)
		observability.RecordAuthLogin(ctx, "invalid_password")
		return nil, ErrInvalidPassword
	}

	if err := s.guard.Clear(ctx, AttemptScopeLogin, email, in.IP); err != nil {
		s.logger.WarnContext(ctx, "attempt guard clear failed", "error", err)
	}
	if security.NeedsRehash(user.PasswordHash) {
		if hash, err := security.HashPassword(in.Password); err == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
				s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
			}
		}
	}
	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "touch last login failed", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	res, err := s.issue(ctx, user, in.UserAgent, in.IP)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "success")
	return res, nil
}

// Register creates an active, untrusted user account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	in.Name = cleanText(in.Name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, invalid("email", "is already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Email:        email,
		Name:         in.Name,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("email", "is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	observability.RecordAuthFlowEvent(ctx, "register", "success")
	return s.issue(ctx, user, in.UserAgent, in.IP)
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		observability.RecordAuthLogout(ctx, "error")
		return err
	}
	observability.RecordAuthLogout(ctx, "success")
	return nil
}

// ForgotPassword answers the same way whether or not the email exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.checkGuard(ctx, AttemptScopeForgot, email, ip); err != nil {
		return err
	}
	// Every request counts so the endpoint cannot be used to spam one inbox.
	s.registerFailure(ctx, AttemptScopeForgot, email, ip)

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		observability.RecordAuthFlowEvent(ctx, "password_forgot", "unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive() {
		observability.RecordAuthFlowEvent(ctx, "password_forgot", "disabled")
		return nil
	}

	raw, err := security.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.resets.DeleteByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("clear reset tokens: %w", err)
	}
	expiresAt := s.now().Add(s.opts.PasswordResetTTL)
	if err := s.resets.Create(ctx, &domain.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, PasswordResetNotification{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     raw,
		ExpiresAt: expiresAt,
		ResetURL:  resetLink(s.opts.PasswordResetURL, raw),
	}); err != nil {
		observability.RecordAuthFlowEvent(ctx, "password_forgot", "notify_error")
		return fmt.Errorf("send reset notification: %w", err)
	}
	observability.RecordAuthFlowEvent(ctx, "password_forgot", "issued")
	return nil
}

// ResetPassword consumes a reset token and signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	now := s.now()
	record, err := s.resets.FindValidByHash(ctx, security.HashToken(token), now)
	if errors.Is(err, repository.ErrPasswordResetNotFound) {
		observability.RecordAuthFlowEvent(ctx, "password_reset", "invalid_token")
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	if err := s.resets.MarkUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrPasswordResetNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, record.UserID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	observability.RecordAuthFlowEvent(ctx, "password_reset", "success")
	return s.sessions.RevokeAll(ctx, record.UserID, "password_reset")
}

// ChangePassword verifies the current password, then revokes every session.
// Callers issue a fresh session afterwards if the actor stays signed in.
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, current, next string) error {
	if user == nil {
		return ErrUnauthorized
	}
	if err := s.checkGuard(ctx, AttemptScopeChange, user.Email, ""); err != nil {
		return err
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	fresh, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	ok, err := security.VerifyPassword(fresh.PasswordHash, current)
	if err != nil && !errors.Is(err, security.ErrInvalidPasswordHash) {
		return err
	}
	if !ok {
		s.registerFailure(ctx, AttemptScopeChange, user.Email, "")
		return ErrInvalidPassword
	}
	if current == next {
		return invalid("new_password", "must differ from the current password")
	}
	hash, err := security.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	_ = s.guard.Clear(ctx, AttemptScopeChange, user.Email, "")
	observability.RecordAuthFlowEvent(ctx, "password_change", "success")
	return s.sessions.RevokeAll(ctx, user.ID, "password_change")
}

// Reissue signs the user in again, used after a password change.
func (s *AuthService) Reissue(ctx context.Context, user *domain.User, userAgent, ip string) (*LoginResult, error) {
	return s.issue(ctx, user, userAgent, ip)
}

func (s *AuthService) issue(ctx context.Context, user *domain.User, userAgent, ip string) (*LoginResult, error) {
	sess, err := s.sessions.Issue(ctx, user, userAgent, ip)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *AuthService) checkGuard(ctx context.Context, scope AttemptScope, subject, ip string) error {
	wait, err := s.guard.Wait(ctx, scope, subject, ip)
	if err != nil {
		// A broken guard backend must not lock everyone out.
		s.logger.WarnContext(ctx, "attempt guard check failed", "scope", scope, "error", err)
		observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "check", "error")
		return nil
	}
	if wait > 0 {
		observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "check", "blocked")
		observability.RecordAuthAbuseCooldown(ctx, string(scope), "check", wait)
		return tooManyAttempts(wait)
	}
	return nil
}

func (s *AuthService) registerFailure(ctx context.Context, scope AttemptScope, subject, ip string) {
	wait, err := s.guard.Fail(ctx, scope, subject, ip)
	if err != nil {
		s.logger.WarnContext(ctx, "attempt guard update failed", "scope", scope, "error", err)
		observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "fail", "error")
		return
	}
	observability.RecordAuthAbuseGuardEvent(ctx, string(scope), "fail", "recorded")
	if wait > 0 {
		observability.RecordAuthAbuseCooldown(ctx, string(scope), "fail", wait)
	}
}

func resetLink(base, token string) string {
	if strings.TrimSpace(base) == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
