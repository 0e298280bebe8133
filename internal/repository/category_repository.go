package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

const categoryUsageSelect = "categories.*, (SELECT COUNT(*) FROM websites WHERE websites.category_id = categories.id) AS website_count"

type GormCategoryRepository struct{ db *gorm.DB }

func NewCategoryRepository(db *gorm.DB) CategoryRepository { return &GormCategoryRepository{db: db} }

func (r *GormCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	err := r.db.WithContext(ctx).Create(c).Error
	return observe(ctx, "category", "create", translateGormError(err, nil))
}

func (r *GormCategoryRepository) FindByID(ctx context.Context, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, observe(ctx, "category", "find_by_id", translateGormError(err, ErrCategoryNotFound))
	}
	observe(ctx, "category", "find_by_id", nil)
	return &c, nil
}

func (r *GormCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, observe(ctx, "category", "list", err)
}

func (r *GormCategoryRepository) ListWithUsage(ctx context.Context) ([]domain.CategoryWithUsage, error) {
	var out []domain.CategoryWithUsage
	err := r.db.WithContext(ctx).Table("categories").Select(categoryUsageSelect).Order("categories.name asc").Scan(&out).Error
	return out, observe(ctx, "category", "list_with_usage", err)
}

func (r *GormCategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	now := time.Now().UTC()
	err := updateColumns(r.db.WithContext(ctx), &domain.Category{}, c.ID, map[string]any{
		"name":          c.Name,
		"gradient_from": c.GradientFrom,
		"gradient_to":   c.GradientTo,
		"updated_at":    now,
	}, ErrCategoryNotFound)
	if err == nil {
		c.UpdatedAt = now
	}
	return observe(ctx, "category", "update", err)
}

// Delete refuses to remove a category that websites still reference.
func (r *GormCategoryRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&domain.Website{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return ErrCategoryInUse
		}
		res := tx.Delete(&domain.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
	return observe(ctx, "category", "delete", translateGormError(err, ErrCategoryNotFound))
}
