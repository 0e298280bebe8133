//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

var (
	ErrDuplicate             = errors.New("duplicate record")
	ErrUserNotFound          = errors.New("user not found")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryInUse         = errors.New("category is referenced by websites")
	ErrWebsiteNotFound       = errors.New("website not found")
	ErrTagNotFound           = errors.New("tag not found")
	ErrSettingNotFound       = errors.New("setting not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrPasswordResetNotFound = errors.New("password reset token not found")
)

// IsNotFound reports whether err is one of the per-entity not-found errors.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrUserNotFound, ErrCategoryNotFound, ErrWebsiteNotFound, ErrTagNotFound,
		ErrSettingNotFound, ErrSessionNotFound, ErrPasswordResetNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Outcome is the metric label for a repository call result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrCategoryInUse):
		return "conflict"
	default:
		return "error"
	}
}

type UserListQuery struct {
	PageRequest
	Email  string
	Role   domain.Role
	Status domain.UserStatus
}

const (
	WebsiteSortCreatedAt = "created_at"
	WebsiteSortUpdatedAt = "updated_at"
	WebsiteSortTitle     = "title"
)

type WebsiteQuery struct {
	PageRequest
	Status      domain.WebsiteStatus
	CategoryID  uint
	Search      string
	Tag         string
	SubmittedBy uint
	SortBy      string
	SortDesc    bool
}

// OrderClause returns a whitelisted ORDER BY expression for the websites table.
func (q WebsiteQuery) OrderClause(table string) string {
	col := WebsiteSortCreatedAt
	switch q.SortBy {
	case WebsiteSortTitle, WebsiteSortUpdatedAt:
		col = q.SortBy
	}
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	prefix := ""
	if table != "" {
		prefix = table + "."
	}
	return prefix + col + " " + dir + ", " + prefix + "id " + dir
}

// LikeEscape is the escape character used by LikePattern; queries must add
// "ESCAPE '!'" after LIKE.
const LikeEscape = "!"

// LikePattern builds a lowercase substring pattern with LIKE metacharacters escaped.
func LikePattern(term string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, q UserListQuery) (PageResult[domain.User], error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	SetRole(ctx context.Context, id uint, role domain.Role) error
	SetStatus(ctx context.Context, id uint, status domain.UserStatus) error
	SetTrusted(ctx context.Context, id uint, trusted bool) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	CountByRole(ctx context.Context) (map[domain.Role]int64, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	FindByID(ctx context.Context, id uint) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	ListWithUsage(ctx context.Context) ([]domain.CategoryWithUsage, error)
	Update(ctx context.Context, c *domain.Category) error
	Delete(ctx context.Context, id uint) error
}

type WebsiteRepository interface {
	// Create inserts the website and links tagNames in one transaction. An
	// empty Status is resolved from the auto-approve setting and the
	// submitter's trusted flag inside that transaction.
	Create(ctx context.Context, w *domain.Website, tagNames []string) error
	FindByID(ctx context.Context, id uint) (*domain.Website, error)
	FindByURLKey(ctx context.Context, key string) (*domain.Website, error)
	List(ctx context.Context, q WebsiteQuery) (PageResult[domain.Website], error)
	// Update rewrites the editable columns; a nil tagNames leaves tags untouched.
	Update(ctx context.Context, w *domain.Website, tagNames *[]string) error
	SetStatus(ctx context.Context, id uint, status domain.WebsiteStatus) error
	SetFavicon(ctx context.Context, id uint, faviconURL string) error
	Delete(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context) (map[domain.WebsiteStatus]int64, error)
}

type TagRepository interface {
	FindOrCreate(ctx context.Context, name string) (*domain.Tag, error)
	FindByName(ctx context.Context, name string) (*domain.Tag, error)
	List(ctx context.Context) ([]domain.TagWithUsage, error)
	Delete(ctx context.Context, id uint) error
}

type FavoriteRepository interface {
	// Add inserts the pair if absent and reports whether a row was created.
	Add(ctx context.Context, userID, websiteID uint) (bool, error)
	Remove(ctx context.Context, userID, websiteID uint) error
	Exists(ctx context.Context, userID, websiteID uint) (bool, error)
	ListWebsites(ctx context.Context, userID uint) ([]domain.Website, error)
	ListWebsiteIDs(ctx context.Context, userID uint) ([]uint, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (*domain.SystemSetting, error)
	List(ctx context.Context) ([]domain.SystemSetting, error)
	Upsert(ctx context.Context, s *domain.SystemSetting) error
	Delete(ctx context.Context, key string) error
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByTokenID(ctx context.Context, tokenID string) (*domain.Session, error)
	DeleteByTokenID(ctx context.Context, tokenID string) error
	DeleteByUserID(ctx context.Context, userID uint) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PasswordResetRepository interface {
	Create(ctx context.Context, t *domain.PasswordResetToken) error
	FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.PasswordResetToken, error)
	// MarkUsed fails with ErrPasswordResetNotFound when the token was already consumed.
	MarkUsed(ctx context.Context, id uint, at time.Time) error
	DeleteByUserID(ctx context.Context, userID uint) error
}

// Store is the persistence port. Implementations are safe for concurrent use.
type Store interface {
	Users() UserRepository
	Categories() CategoryRepository
	Websites() WebsiteRepository
	Tags() TagRepository
	Favorites() FavoriteRepository
	Settings() SettingRepository
	Sessions() SessionRepository
	PasswordResets() PasswordResetRepository
	Ping(ctx context.Context) error
	Close() error
}
