package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	return observe(ctx, "user", "create", translateGormError(err, nil))
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, observe(ctx, "user", "find_by_id", translateGormError(err, ErrUserNotFound))
	}
	observe(ctx, "user", "find_by_id", nil)
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, observe(ctx, "user", "find_by_email", translateGormError(err, ErrUserNotFound))
	}
	observe(ctx, "user", "find_by_email", nil)
	return &u, nil
}

func (r *GormUserRepository) List(ctx context.Context, q UserListQuery) (PageResult[domain.User], error) {
	page := NormalizePageRequest(q.PageRequest)
	scope := r.db.WithContext(ctx).Model(&domain.User{})
	if q.Email != "" {
		scope = scope.Where("LOWER(email) LIKE ? ESCAPE '"+LikeEscape+"'", LikePattern(q.Email))
	}
	if q.Role != "" {
		scope = scope.Where("role = ?", q.Role)
	}
	if q.Status != "" {
		scope = scope.Where("status = ?", q.Status)
	}
	scope = scope.Session(&gorm.Session{})

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return PageResult[domain.User]{}, observe(ctx, "user", "list", err)
	}
	var users []domain.User
	if err := scope.Order("id asc").Offset(page.Offset()).Limit(page.PageSize).Find(&users).Error; err != nil {
		return PageResult[domain.User]{}, observe(ctx, "user", "list", err)
	}
	observe(ctx, "user", "list", nil)
	return NewPageResult(page, users, total), nil
}

func (r *GormUserRepository) Update(ctx context.Context, user *domain.User) error {
	err := updateColumns(r.db.WithContext(ctx), &domain.User{}, user.ID, map[string]any{
		"email":      user.Email,
		"name":       user.Name,
		"role":       user.Role,
		"status":     user.Status,
		"trusted":    user.Trusted,
		"updated_at": time.Now().UTC(),
	}, ErrUserNotFound)
	return observe(ctx, "user", "update", err)
}

func (r *GormUserRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.setColumn(ctx, "update_password", id, "password_hash", hash)
}

func (r *GormUserRepository) SetRole(ctx context.Context, id uint, role domain.Role) error {
	return r.setColumn(ctx, "set_role", id, "role", role)
}

func (r *GormUserRepository) SetStatus(ctx context.Context, id uint, status domain.UserStatus) error {
	return r.setColumn(ctx, "set_status", id, "status", status)
}

func (r *GormUserRepository) SetTrusted(ctx context.Context, id uint, trusted bool) error {
	return r.setColumn(ctx, "set_trusted", id, "trusted", trusted)
}

func (r *GormUserRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.setColumn(ctx, "touch_last_login", id, "last_login_at", at)
}

func (r *GormUserRepository) setColumn(ctx context.Context, op string, id uint, column string, value any) error {
	err := updateColumns(r.db.WithContext(ctx), &domain.User{}, id, map[string]any{
		column:       value,
		"updated_at": time.Now().UTC(),
	}, ErrUserNotFound)
	return observe(ctx, "user", op, err)
}

func (r *GormUserRepository) CountByRole(ctx context.Context) (map[domain.Role]int64, error) {
	var rows []struct {
		Role  domain.Role
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&domain.User{}).Select("role, COUNT(*) AS total").Group("role").Scan(&rows).Error
	if err != nil {
		return nil, observe(ctx, "user", "count_by_role", err)
	}
	out := make(map[domain.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Total
	}
	observe(ctx, "user", "count_by_role", nil)
	return out, nil
}
