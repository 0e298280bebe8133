package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type GormSettingRepository struct{ db *gorm.DB }

func NewSettingRepository(db *gorm.DB) SettingRepository { return &GormSettingRepository{db: db} }

func (r *GormSettingRepository) Get(ctx context.Context, key string) (*domain.SystemSetting, error) {
	var s domain.SystemSetting
	if err := r.db.WithContext(ctx).Where("setting_key = ?", key).Take(&s).Error; err != nil {
		return nil, observe(ctx, "setting", "get", translateGormError(err, ErrSettingNotFound))
	}
	observe(ctx, "setting", "get", nil)
	return &s, nil
}

func (r *GormSettingRepository) List(ctx context.Context) ([]domain.SystemSetting, error) {
	var out []domain.SystemSetting
	err := r.db.WithContext(ctx).Order("setting_key asc").Find(&out).Error
	return out, observe(ctx, "setting", "list", err)
}

func (r *GormSettingRepository) Upsert(ctx context.Context, s *domain.SystemSetting) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(s).Error
	return observe(ctx, "setting", "upsert", err)
}

func (r *GormSettingRepository) Delete(ctx context.Context, key string) error {
	res := r.db.WithContext(ctx).Where("setting_key = ?", key).Delete(&domain.SystemSetting{})
	if res.Error != nil {
		return observe(ctx, "setting", "delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return observe(ctx, "setting", "delete", ErrSettingNotFound)
	}
	return observe(ctx, "setting", "delete", nil)
}
