package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/security"
)

const fixturePassword = "Fixture-Passw0rd!"

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []PasswordResetNotification
	fails error
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, note PasswordResetNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails != nil {
		return n.fails
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) last() (PasswordResetNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return PasswordResetNotification{}, false
	}
	return n.sent[len(n.sent)-1], true
}

type serviceFixture struct {
	db         *gorm.DB
	store      *repository.GormStore
	sessions   *SessionService
	auth       *AuthService
	guard      *MemoryAttemptGuard
	notifier   *recordingNotifier
	settings   *SettingService
	categories *CategoryService
	tags       *TagService
	websites   *WebsiteService
	favorites  *FavoriteService
	users      *UserService
	cache      *ListCache
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "service.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := database.Seed(db, database.SeedOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := repository.NewGormStore(db)
	jwtMgr := security.NewJWTManager("sitedeck-test", "sitedeck-test-clients", "0123456789abcdef0123456789abcdef")
	cache := NewListCache(NewMemoryListCacheStore(), time.Minute, nil)
	bulk := BulkRunner{MaxItems: 50, Concurrency: 4}

	f := &serviceFixture{db: db, store: store, cache: cache, notifier: &recordingNotifier{}}
	f.guard = NewMemoryAttemptGuard(AttemptPolicy{FreeAttempts: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, ResetWindow: time.Hour})
	f.sessions = NewSessionService(store.Sessions(), store.Users(), jwtMgr, 7*24*time.Hour, nil)
	f.auth = NewAuthService(store.Users(), store.PasswordResets(), f.sessions, f.guard, f.notifier, AuthOptions{
		PasswordResetTTL: time.Hour,
		PasswordResetURL: "https://sitedeck.test/reset",
	}, nil)
	f.settings = NewSettingService(store.Settings(), cache, nil)
	f.categories = NewCategoryService(store.Categories(), cache, bulk)
	f.tags = NewTagService(store.Tags(), cache)
	f.websites = NewWebsiteService(store.Websites(), store.Categories(), f.settings, nil, cache, bulk, nil)
	f.favorites = NewFavoriteService(store.Favorites(), store.Websites())
	f.users = NewUserService(store.Users(), store.Websites(), f.sessions, bulk)
	return f
}

func (f *serviceFixture) createUser(t *testing.T, email string, role domain.Role, status domain.UserStatus, trusted bool) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(fixturePassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		Email:        email,
		Name:         email,
		Role:         role,
		Status:       status,
		Trusted:      trusted,
		PasswordHash: hash,
	}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (f *serviceFixture) setBool(t *testing.T, key string, v bool) {
	t.Helper()
	err := f.store.Settings().Upsert(context.Background(), &domain.SystemSetting{Key: key, Value: domain.BoolSettingValue(v)})
	if err != nil {
		t.Fatalf("set %s: %v", key, err)
	}
	f.cache.Invalidate(context.Background(), CacheNamespaceSettings)
}

func (f *serviceFixture) firstCategory(t *testing.T) domain.Category {
	t.Helper()
	cats, err := f.store.Categories().List(context.Background())
	if err != nil || len(cats) == 0 {
		t.Fatalf("expected seeded categories, err=%v", err)
	}
	return cats[0]
}

func (f *serviceFixture) submit(t *testing.T, actor *domain.User, title, rawURL string) *domain.Website {
	t.Helper()
	w, err := f.websites.Submit(context.Background(), actor, WebsiteInput{
		Title:       title,
		URL:         rawURL,
		Description: title + " description",
		CategoryID:  f.firstCategory(t).ID,
	})
	if err != nil {
		t.Fatalf("submit %s: %v", rawURL, err)
	}
	return w
}
