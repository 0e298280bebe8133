package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	return observe(ctx, "session", "create", translateGormError(err, nil))
}

func (r *GormSessionRepository) FindByTokenID(ctx context.Context, tokenID string) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&s).Error; err != nil {
		return nil, observe(ctx, "session", "find_by_token_id", translateGormError(err, ErrSessionNotFound))
	}
	observe(ctx, "session", "find_by_token_id", nil)
	return &s, nil
}

func (r *GormSessionRepository) DeleteByTokenID(ctx context.Context, tokenID string) error {
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Delete(&domain.Session{}).Error
	return observe(ctx, "session", "delete_by_token_id", err)
}

func (r *GormSessionRepository) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Session{})
	return res.RowsAffected, observe(ctx, "session", "delete_by_user_id", res.Error)
}

func (r *GormSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Session{})
	return res.RowsAffected, observe(ctx, "session", "delete_expired", res.Error)
}

type GormPasswordResetRepository struct{ db *gorm.DB }

func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &GormPasswordResetRepository{db: db}
}

func (r *GormPasswordResetRepository) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	err := r.db.WithContext(ctx).Create(t).Error
	return observe(ctx, "password_reset", "create", translateGormError(err, nil))
}

func (r *GormPasswordResetRepository) FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).
		Take(&t).Error
	if err != nil {
		return nil, observe(ctx, "password_reset", "find_valid", translateGormError(err, ErrPasswordResetNotFound))
	}
	observe(ctx, "password_reset", "find_valid", nil)
	return &t, nil
}

func (r *GormPasswordResetRepository) MarkUsed(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if res.Error != nil {
		return observe(ctx, "password_reset", "mark_used", res.Error)
	}
	if res.RowsAffected == 0 {
		return observe(ctx, "password_reset", "mark_used", ErrPasswordResetNotFound)
	}
	return observe(ctx, "password_reset", "mark_used", nil)
}

func (r *GormPasswordResetRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.PasswordResetToken{}).Error
	return observe(ctx, "password_reset", "delete_by_user_id", err)
}
