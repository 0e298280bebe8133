package service

import (
	"context"
	"io"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Register(ctx context.Context, in RegisterInput) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email, ip string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, user *domain.User, current, next string) error
	Reissue(ctx context.Context, user *domain.User, userAgent, ip string) (*LoginResult, error)
}

// SessionResolver maps a presented session token to its live user.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

type WebsiteServiceInterface interface {
	Submit(ctx context.Context, actor *domain.User, in WebsiteInput) (*domain.Website, error)
	CheckDuplicate(ctx context.Context, rawURL string) (*DuplicateCheck, error)
	Get(ctx context.Context, viewer *domain.User, id uint) (*domain.Website, error)
	List(ctx context.Context, viewer *domain.User, f WebsiteFilter) (repository.PageResult[domain.Website], error)
	Update(ctx context.Context, actor *domain.User, id uint, patch WebsitePatch) (*domain.Website, error)
	Approve(ctx context.Context, actor *domain.User, id uint) (*domain.Website, error)
	Reject(ctx context.Context, actor *domain.User, id uint) (*domain.Website, error)
	Delete(ctx context.Context, actor *domain.User, id uint) error
	BulkDelete(ctx context.Context, actor *domain.User, ids []uint) (*BulkResult, error)
	BulkSetStatus(ctx context.Context, actor *domain.User, ids []uint, status domain.WebsiteStatus) (*BulkResult, error)
	UploadFavicon(ctx context.Context, actor *domain.User, id uint, file io.Reader, size int64) (*domain.Website, error)
}

type CategoryServiceInterface interface {
	List(ctx context.Context) ([]domain.Category, error)
	ListWithUsage(ctx context.Context) ([]domain.CategoryWithUsage, error)
	Get(ctx context.Context, id uint) (*domain.Category, error)
	Create(ctx context.Context, actor *domain.User, in CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, actor *domain.User, id uint, patch CategoryPatch) (*domain.Category, error)
	Delete(ctx context.Context, actor *domain.User, id uint) error
	BulkDelete(ctx context.Context, actor *domain.User, ids []uint) (*BulkResult, error)
}

type TagServiceInterface interface {
	List(ctx context.Context) ([]domain.TagWithUsage, error)
	Create(ctx context.Context, actor *domain.User, name string) (*domain.Tag, error)
	Delete(ctx context.Context, actor *domain.User, id uint) error
}

type FavoriteServiceInterface interface {
	Add(ctx context.Context, user *domain.User, websiteID uint) (bool, error)
	Remove(ctx context.Context, user *domain.User, websiteID uint) error
	IsFavorite(ctx context.Context, user *domain.User, websiteID uint) (bool, error)
	List(ctx context.Context, user *domain.User) ([]domain.Website, error)
	ListIDs(ctx context.Context, user *domain.User) ([]uint, error)
}

type SettingServiceInterface interface {
	List(ctx context.Context, viewer *domain.User) ([]domain.SystemSetting, error)
	Get(ctx context.Context, viewer *domain.User, key string) (*domain.SystemSetting, error)
	Update(ctx context.Context, actor *domain.User, key string, in SettingUpdate) (*domain.SystemSetting, error)
}

type UserServiceInterface interface {
	List(ctx context.Context, actor *domain.User, f UserFilter) (repository.PageResult[UserRow], error)
	SetStatus(ctx context.Context, actor *domain.User, id uint, status domain.UserStatus) (*domain.User, error)
	SetRole(ctx context.Context, actor *domain.User, id uint, role domain.Role) (*domain.User, error)
	SetTrusted(ctx context.Context, actor *domain.User, id uint, trusted bool) (*domain.User, error)
	BulkDisable(ctx context.Context, actor *domain.User, ids []uint) (*BulkResult, error)
	Stats(ctx context.Context, actor *domain.User) (*Stats, error)
}

var (
	_ AuthServiceInterface     = (*AuthService)(nil)
	_ SessionResolver          = (*SessionService)(nil)
	_ WebsiteServiceInterface  = (*WebsiteService)(nil)
	_ CategoryServiceInterface = (*CategoryService)(nil)
	_ TagServiceInterface      = (*TagService)(nil)
	_ FavoriteServiceInterface = (*FavoriteService)(nil)
	_ SettingServiceInterface  = (*SettingService)(nil)
	_ UserServiceInterface     = (*UserService)(nil)
)
