package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

const tagUsageSelect = "tags.*, (SELECT COUNT(*) FROM website_tags WHERE website_tags.tag_id = tags.id) AS website_count"

type GormTagRepository struct{ db *gorm.DB }

func NewTagRepository(db *gorm.DB) TagRepository { return &GormTagRepository{db: db} }

func (r *GormTagRepository) FindOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	tag, err := findOrCreateTag(r.db.WithContext(ctx), name)
	return tag, observe(ctx, "tag", "find_or_create", err)
}

func (r *GormTagRepository) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	var t domain.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&t).Error; err != nil {
		return nil, observe(ctx, "tag", "find_by_name", translateGormError(err, ErrTagNotFound))
	}
	observe(ctx, "tag", "find_by_name", nil)
	return &t, nil
}

func (r *GormTagRepository) List(ctx context.Context) ([]domain.TagWithUsage, error) {
	var out []domain.TagWithUsage
	err := r.db.WithContext(ctx).Table("tags").Select(tagUsageSelect).Order("tags.name asc").Scan(&out).Error
	return out, observe(ctx, "tag", "list", err)
}

func (r *GormTagRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&domain.WebsiteTag{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Tag{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTagNotFound
		}
		return nil
	})
	return observe(ctx, "tag", "delete", err)
}
