package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/security"
)

// IssuedSession is a freshly minted credential. Token is the signed JWT the
// client presents; the persisted row only keeps its hash.
type IssuedSession struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// SessionService mints and resolves session tokens. A token is honored only
// while its session row exists, has not expired and its user is active.
type SessionService struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	jwt      *security.JWTManager
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	jwt *security.JWTManager,
	ttl time.Duration,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		jwt:      jwt,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionService) TTL() time.Duration { return s.ttl }

func (s *SessionService) Issue(ctx context.Context, user *domain.User, userAgent, ip string) (*IssuedSession, error) {
	now := s.now()
	tokenID := security.NewTokenID()
	token, err := s.jwt.SignSession(security.SessionTokenInput{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     string(user.Role),
		TokenID:  tokenID,
		IssuedAt: now,
		TTL:      s.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	expiresAt := now.Add(s.ttl)
	if err := s.sessions.Create(ctx, &domain.Session{
		TokenID:   tokenID,
		TokenHash: security.HashToken(token),
		UserID:    user.ID,
		UserAgent: truncate(userAgent, 512),
		IP:        truncate(ip, 64),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &IssuedSession{Token: token, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}

// Resolve maps a presented token to its live user. Invalid, revoked or
// expired tokens and disabled users resolve to (nil, nil); only storage
// failures return an error.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := s.jwt.ParseSession(token)
	if err != nil {
		observability.RecordSessionValidation(ctx, "invalid_token")
		return nil, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		observability.RecordSessionValidation(ctx, "invalid_token")
		return nil, nil
	}
	sess, err := s.sessions.FindByTokenID(ctx, claims.ID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		observability.RecordSessionValidation(ctx, "revoked")
		return nil, nil
	}
	if err != nil {
		observability.RecordSessionValidation(ctx, "error")
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != userID || sess.TokenHash != security.HashToken(token) || sess.Expired(s.now()) {
		observability.RecordSessionValidation(ctx, "expired")
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		observability.RecordSessionValidation(ctx, "user_missing")
		return nil, nil
	}
	if err != nil {
		observability.RecordSessionValidation(ctx, "error")
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if !user.IsActive() {
		observability.RecordSessionValidation(ctx, "user_disabled")
		return nil, nil
	}
	observability.RecordSessionValidation(ctx, "valid")
	return user, nil
}

// Revoke deletes the session behind token. Unparseable tokens are a no-op.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	claims, err := s.jwt.ParseSession(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteByTokenID(ctx, claims.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	observability.RecordSessionRevokedCount(ctx, "logout", 1)
	return nil
}

func (s *SessionService) RevokeAll(ctx context.Context, userID uint, reason string) error {
	n, err := s.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	observability.RecordSessionRevokedCount(ctx, reason, n)
	if n > 0 {
		s.logger.InfoContext(ctx, "sessions revoked", "user_id", userID, "reason", reason, "count", n)
	}
	return nil
}

func (s *SessionService) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	observability.RecordSessionRevokedCount(ctx, "expired", n)
	return n, nil
}

// truncate caps v at n bytes without splitting a UTF-8 sequence.
func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	for n > 0 && !utf8.RuneStart(v[n]) {
		n--
	}
	return v[:n]
}
