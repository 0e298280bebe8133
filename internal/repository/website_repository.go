package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type GormWebsiteRepository struct{ db *gorm.DB }

func NewWebsiteRepository(db *gorm.DB) WebsiteRepository { return &GormWebsiteRepository{db: db} }

func withWebsiteRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Category").
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") }).
		Preload("SubmitterUser", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name", "email") })
}

func attachSubmitters(items []domain.Website) {
	for i := range items {
		items[i].Submitter = items[i].SubmitterUser.Summary()
		items[i].SubmitterUser = nil
		if items[i].Tags == nil {
			items[i].Tags = []domain.Tag{}
		}
	}
}

func (r *GormWebsiteRepository) Create(ctx context.Context, w *domain.Website, tagNames []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if w.Status == "" {
			status, err := resolveInitialStatus(tx, w.SubmittedBy)
			if err != nil {
				return err
			}
			w.Status = status
		}
		if err := tx.Omit(clause.Associations).Create(w).Error; err != nil {
			return err
		}
		_, err := linkTags(tx, w.ID, tagNames)
		return err
	})
	if err != nil {
		return observe(ctx, "website", "create", translateGormError(err, nil))
	}
	observe(ctx, "website", "create", nil)
	return r.reload(ctx, w)
}

// resolveInitialStatus reads the auto-approve setting and the submitter's
// trusted flag within the insert transaction.
func resolveInitialStatus(tx *gorm.DB, submittedBy *uint) (domain.WebsiteStatus, error) {
	if submittedBy == nil {
		return domain.WebsiteStatusPending, nil
	}
	var setting domain.SystemSetting
	autoApprove := false
	err := tx.Where("setting_key = ?", domain.SettingAutoApproveTrustedUsers).Take(&setting).Error
	switch {
	case err == nil:
		autoApprove, _ = setting.BoolValue()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}
	var submitter domain.User
	if err := tx.Select("id", "trusted").Take(&submitter, *submittedBy).Error; err != nil {
		return "", translateGormError(err, ErrUserNotFound)
	}
	return domain.InitialWebsiteStatus(autoApprove, submitter.Trusted), nil
}

func linkTags(tx *gorm.DB, websiteID uint, names []string) ([]domain.Tag, error) {
	normalized := domain.NormalizeTagNames(names)
	tags := make([]domain.Tag, 0, len(normalized))
	for _, name := range normalized {
		tag, err := findOrCreateTag(tx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	if len(tags) == 0 {
		return tags, nil
	}
	links := make([]domain.WebsiteTag, 0, len(tags))
	for _, t := range tags {
		links = append(links, domain.WebsiteTag{WebsiteID: websiteID, TagID: t.ID})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// findOrCreateTag tolerates a concurrent insert of the same name.
func findOrCreateTag(tx *gorm.DB, name string) (*domain.Tag, error) {
	candidate := domain.Tag{Name: name}
	err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&candidate).Error
	if err != nil && !IsUniqueViolation(err) {
		return nil, err
	}
	var tag domain.Tag
	if err := tx.Where("name = ?", name).Take(&tag).Error; err != nil {
		return nil, translateGormError(err, ErrTagNotFound)
	}
	return &tag, nil
}

func (r *GormWebsiteRepository) reload(ctx context.Context, w *domain.Website) error {
	loaded, err := r.FindByID(ctx, w.ID)
	if err != nil {
		return err
	}
	*w = *loaded
	return nil
}

func (r *GormWebsiteRepository) FindByID(ctx context.Context, id uint) (*domain.Website, error) {
	var w domain.Website
	if err := withWebsiteRelations(r.db.WithContext(ctx)).First(&w, id).Error; err != nil {
		return nil, observe(ctx, "website", "find_by_id", translateGormError(err, ErrWebsiteNotFound))
	}
	items := []domain.Website{w}
	attachSubmitters(items)
	observe(ctx, "website", "find_by_id", nil)
	return &items[0], nil
}

func (r *GormWebsiteRepository) FindByURLKey(ctx context.Context, key string) (*domain.Website, error) {
	var w domain.Website
	if err := withWebsiteRelations(r.db.WithContext(ctx)).Where("url_key = ?", key).First(&w).Error; err != nil {
		return nil, observe(ctx, "website", "find_by_url_key", translateGormError(err, ErrWebsiteNotFound))
	}
	items := []domain.Website{w}
	attachSubmitters(items)
	observe(ctx, "website", "find_by_url_key", nil)
	return &items[0], nil
}

func (r *GormWebsiteRepository) List(ctx context.Context, q WebsiteQuery) (PageResult[domain.Website], error) {
	page := NormalizePageRequest(q.PageRequest)
	scope := r.db.WithContext(ctx).Model(&domain.Website{})
	if q.Status != "" {
		scope = scope.Where("websites.status = ?", q.Status)
	}
	if q.CategoryID != 0 {
		scope = scope.Where("websites.category_id = ?", q.CategoryID)
	}
	if q.SubmittedBy != 0 {
		scope = scope.Where("websites.submitted_by = ?", q.SubmittedBy)
	}
	if q.Search != "" {
		p := LikePattern(q.Search)
		esc := " ESCAPE '" + LikeEscape + "'"
		scope = scope.Where("(LOWER(websites.title) LIKE ?"+esc+" OR LOWER(websites.description) LIKE ?"+esc+" OR LOWER(websites.url) LIKE ?"+esc+")", p, p, p)
	}
	if tag := domain.NormalizeTagName(q.Tag); tag != "" {
		sub := r.db.Model(&domain.WebsiteTag{}).
			Select("website_tags.website_id").
			Joins("JOIN tags ON tags.id = website_tags.tag_id").
			Where("tags.name = ?", tag)
		scope = scope.Where("websites.id IN (?)", sub)
	}
	scope = scope.Session(&gorm.Session{})

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return PageResult[domain.Website]{}, observe(ctx, "website", "list", err)
	}
	var items []domain.Website
	err := withWebsiteRelations(scope).
		Order(q.OrderClause("websites")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&items).Error
	if err != nil {
		return PageResult[domain.Website]{}, observe(ctx, "website", "list", err)
	}
	attachSubmitters(items)
	observe(ctx, "website", "list", nil)
	return NewPageResult(page, items, total), nil
}

func (r *GormWebsiteRepository) Update(ctx context.Context, w *domain.Website, tagNames *[]string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := updateColumns(tx, &domain.Website{}, w.ID, map[string]any{
			"title":       w.Title,
			"url":         w.URL,
			"url_key":     w.URLKey,
			"description": w.Description,
			"favicon_url": w.FaviconURL,
			"category_id": w.CategoryID,
			"status":      w.Status,
			"updated_at":  time.Now().UTC(),
		}, ErrWebsiteNotFound)
		if err != nil || tagNames == nil {
			return err
		}
		if err := tx.Where("website_id = ?", w.ID).Delete(&domain.WebsiteTag{}).Error; err != nil {
			return err
		}
		_, err = linkTags(tx, w.ID, *tagNames)
		return err
	})
	if err != nil {
		return observe(ctx, "website", "update", translateGormError(err, ErrWebsiteNotFound))
	}
	observe(ctx, "website", "update", nil)
	return r.reload(ctx, w)
}

func (r *GormWebsiteRepository) SetStatus(ctx context.Context, id uint, status domain.WebsiteStatus) error {
	err := updateColumns(r.db.WithContext(ctx), &domain.Website{}, id, map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}, ErrWebsiteNotFound)
	return observe(ctx, "website", "set_status", err)
}

func (r *GormWebsiteRepository) SetFavicon(ctx context.Context, id uint, faviconURL string) error {
	err := updateColumns(r.db.WithContext(ctx), &domain.Website{}, id, map[string]any{
		"favicon_url": faviconURL,
		"updated_at":  time.Now().UTC(),
	}, ErrWebsiteNotFound)
	return observe(ctx, "website", "set_favicon", err)
}

func (r *GormWebsiteRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("website_id = ?", id).Delete(&domain.WebsiteTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("website_id = ?", id).Delete(&domain.Favorite{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Website{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWebsiteNotFound
		}
		return nil
	})
	return observe(ctx, "website", "delete", err)
}

func (r *GormWebsiteRepository) CountByStatus(ctx context.Context) (map[domain.WebsiteStatus]int64, error) {
	var rows []struct {
		Status domain.WebsiteStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Website{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, observe(ctx, "website", "count_by_status", err)
	}
	out := make(map[domain.WebsiteStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	observe(ctx, "website", "count_by_status", nil)
	return out, nil
}
