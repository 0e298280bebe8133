package sqlstore

import (
	"context"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

const (
	sessionColumns       = "id, token_id, token_hash, user_id, user_agent, ip, expires_at, created_at"
	passwordResetColumns = "id, user_id, token_hash, expires_at, used_at, created_at"
)

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(ctx context.Context, sess *domain.Session) error {
	ts := now()
	id, err := r.s.insert(ctx, r.s.db, "user_sessions",
		[]string{"token_id", "token_hash", "user_id", "user_agent", "ip", "expires_at", "created_at"},
		sess.TokenID, sess.TokenHash, sess.UserID, sess.UserAgent, sess.IP, sess.ExpiresAt.UTC(), ts)
	if err != nil {
		return observe(ctx, "session", "create", mapError(err, nil))
	}
	sess.ID, sess.CreatedAt = id, ts
	return observe(ctx, "session", "create", nil)
}

func (r *sessionRepo) FindByTokenID(ctx context.Context, tokenID string) (*domain.Session, error) {
	var sess domain.Session
	err := r.s.db.GetContext(ctx, &sess, r.s.q("SELECT "+sessionColumns+" FROM user_sessions WHERE token_id = ?"), tokenID)
	if err != nil {
		return nil, observe(ctx, "session", "find_by_token_id", mapError(err, repository.ErrSessionNotFound))
	}
	return &sess, observe(ctx, "session", "find_by_token_id", nil)
}

func (r *sessionRepo) DeleteByTokenID(ctx context.Context, tokenID string) error {
	_, err := exec(ctx, r.s.db, r.s.q("DELETE FROM user_sessions WHERE token_id = ?"), tokenID)
	return observe(ctx, "session", "delete_by_token_id", err)
}

func (r *sessionRepo) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	n, err := exec(ctx, r.s.db, r.s.q("DELETE FROM user_sessions WHERE user_id = ?"), userID)
	return n, observe(ctx, "session", "delete_by_user_id", err)
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, at time.Time) (int64, error) {
	n, err := exec(ctx, r.s.db, r.s.q("DELETE FROM user_sessions WHERE expires_at <= ?"), at.UTC())
	return n, observe(ctx, "session", "delete_expired", err)
}

type passwordResetRepo struct{ s *Store }

func (r *passwordResetRepo) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	ts := now()
	id, err := r.s.insert(ctx, r.s.db, "password_reset_tokens",
		[]string{"user_id", "token_hash", "expires_at", "used_at", "created_at"},
		t.UserID, t.TokenHash, t.ExpiresAt.UTC(), t.UsedAt, ts)
	if err != nil {
		return observe(ctx, "password_reset", "create", mapError(err, nil))
	}
	t.ID, t.CreatedAt = id, ts
	return observe(ctx, "password_reset", "create", nil)
}

func (r *passwordResetRepo) FindValidByHash(ctx context.Context, hash string, at time.Time) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := r.s.db.GetContext(ctx, &t, r.s.q("SELECT "+passwordResetColumns+
		" FROM password_reset_tokens WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?"), hash, at.UTC())
	if err != nil {
		return nil, observe(ctx, "password_reset", "find_valid", mapError(err, repository.ErrPasswordResetNotFound))
	}
	return &t, observe(ctx, "password_reset", "find_valid", nil)
}

func (r *passwordResetRepo) MarkUsed(ctx context.Context, id uint, at time.Time) error {
	n, err := exec(ctx, r.s.db, r.s.q("UPDATE password_reset_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL"), at.UTC(), id)
	if err != nil {
		return observe(ctx, "password_reset", "mark_used", err)
	}
	if n == 0 {
		return observe(ctx, "password_reset", "mark_used", repository.ErrPasswordResetNotFound)
	}
	return observe(ctx, "password_reset", "mark_used", nil)
}

func (r *passwordResetRepo) DeleteByUserID(ctx context.Context, userID uint) error {
	_, err := exec(ctx, r.s.db, r.s.q("DELETE FROM password_reset_tokens WHERE user_id = ?"), userID)
	return observe(ctx, "password_reset", "delete_by_user_id", err)
}
