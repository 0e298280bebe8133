package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/observability"
)

// GormStore implements Store on top of gorm.
type GormStore struct {
	db             *gorm.DB
	users          UserRepository
	categories     CategoryRepository
	websites       WebsiteRepository
	tags           TagRepository
	favorites      FavoriteRepository
	settings       SettingRepository
	sessions       SessionRepository
	passwordResets PasswordResetRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:             db,
		users:          NewUserRepository(db),
		categories:     NewCategoryRepository(db),
		websites:       NewWebsiteRepository(db),
		tags:           NewTagRepository(db),
		favorites:      NewFavoriteRepository(db),
		settings:       NewSettingRepository(db),
		sessions:       NewSessionRepository(db),
		passwordResets: NewPasswordResetRepository(db),
	}
}

func (s *GormStore) Users() UserRepository                   { return s.users }
func (s *GormStore) Categories() CategoryRepository          { return s.categories }
func (s *GormStore) Websites() WebsiteRepository             { return s.websites }
func (s *GormStore) Tags() TagRepository                     { return s.tags }
func (s *GormStore) Favorites() FavoriteRepository           { return s.favorites }
func (s *GormStore) Settings() SettingRepository             { return s.settings }
func (s *GormStore) Sessions() SessionRepository             { return s.sessions }
func (s *GormStore) PasswordResets() PasswordResetRepository { return s.passwordResets }

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func observe(ctx context.Context, entity, op string, err error) error {
	observability.RecordRepositoryOperation(ctx, entity, op, Outcome(err))
	return err
}

// updateColumns applies updates to one row and reports notFound when the row
// does not exist. MySQL reports zero affected rows for no-op updates, so a
// zero count is confirmed with a lookup.
func updateColumns(db *gorm.DB, model any, id uint, updates map[string]any, notFound error) error {
	res := db.Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translateGormError(res.Error, notFound)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
