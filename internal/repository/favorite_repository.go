package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type GormFavoriteRepository struct{ db *gorm.DB }

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository { return &GormFavoriteRepository{db: db} }

func (r *GormFavoriteRepository) Add(ctx context.Context, userID, websiteID uint) (bool, error) {
	fav := domain.Favorite{UserID: userID, WebsiteID: websiteID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return false, observe(ctx, "favorite", "add", nil)
		}
		return false, observe(ctx, "favorite", "add", res.Error)
	}
	return res.RowsAffected > 0, observe(ctx, "favorite", "add", nil)
}

func (r *GormFavoriteRepository) Remove(ctx context.Context, userID, websiteID uint) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND website_id = ?", userID, websiteID).Delete(&domain.Favorite{}).Error
	return observe(ctx, "favorite", "remove", err)
}

func (r *GormFavoriteRepository) Exists(ctx context.Context, userID, websiteID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Favorite{}).Where("user_id = ? AND website_id = ?", userID, websiteID).Count(&count).Error
	return count > 0, observe(ctx, "favorite", "exists", err)
}

// ListWebsites returns the user's favorited websites that are still approved,
// most recently favorited first.
func (r *GormFavoriteRepository) ListWebsites(ctx context.Context, userID uint) ([]domain.Website, error) {
	var items []domain.Website
	err := withWebsiteRelations(r.db.WithContext(ctx)).
		Select("websites.*").
		Joins("JOIN favorites ON favorites.website_id = websites.id").
		Where("favorites.user_id = ? AND websites.status = ?", userID, domain.WebsiteStatusApproved).
		Order("favorites.created_at desc, websites.id desc").
		Find(&items).Error
	if err != nil {
		return nil, observe(ctx, "favorite", "list_websites", err)
	}
	attachSubmitters(items)
	return items, observe(ctx, "favorite", "list_websites", nil)
}

func (r *GormFavoriteRepository) ListWebsiteIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.Favorite{}).Where("user_id = ?", userID).Order("created_at desc").Pluck("website_id", &ids).Error
	return ids, observe(ctx, "favorite", "list_website_ids", err)
}
