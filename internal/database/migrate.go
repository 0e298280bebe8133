package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Category{},
		&domain.Tag{},
		&domain.Website{},
		&domain.WebsiteTag{},
		&domain.Favorite{},
		&domain.SystemSetting{},
		&domain.Session{},
		&domain.PasswordResetToken{},
	}
}

func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	}()
	if err := db.SetupJoinTable(&domain.Website{}, "Tags", &domain.WebsiteTag{}); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}

// PendingTables returns the tables Migrate would create.
func PendingTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, err
		}
		if !db.Migrator().HasTable(stmt.Schema.Table) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}
