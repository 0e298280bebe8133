package database

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/security"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "seed.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeedCreatesDefaultsAndIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	opts := SeedOptions{AdminEmail: "Root@Example.com", AdminPassword: "Sup3r-Secret!"}

	first, err := Seed(db, opts)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if first.CreatedSettings != 3 || first.CreatedCategories != len(defaultCategories) || first.BootstrapAdmin != "created" {
		t.Fatalf("unexpected first report: %+v", first)
	}

	var admin domain.User
	if err := db.Where("email = ?", "root@example.com").First(&admin).Error; err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if admin.Role != domain.RoleSuperAdmin || !admin.Trusted || admin.Status != domain.UserStatusActive {
		t.Fatalf("unexpected bootstrap admin: %+v", admin)
	}
	ok, err := security.VerifyPassword(admin.PasswordHash, "Sup3r-Secret!")
	if err != nil || !ok {
		t.Fatalf("expected bootstrap password to verify, ok=%v err=%v", ok, err)
	}

	second, err := Seed(db, opts)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !second.Noop || second.BootstrapAdmin != "unchanged" {
		t.Fatalf("expected idempotent second seed, got %+v", second)
	}
}

func TestSeedPromotesExistingAccount(t *testing.T) {
	db := newTestDB(t)
	u := domain.User{Email: "ops@example.com", Name: "Ops", Role: domain.RoleUser, Status: domain.UserStatusInactive, PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	plan, err := SeedPlan(db, SeedOptions{AdminEmail: "ops@example.com"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan[len(plan)-1] != "would promote ops@example.com to super_admin" {
		t.Fatalf("unexpected plan: %v", plan)
	}
	report, err := Seed(db, SeedOptions{AdminEmail: "ops@example.com"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if report.BootstrapAdmin != "promoted" {
		t.Fatalf("expected promotion, got %+v", report)
	}
	var reloaded domain.User
	if err := db.First(&reloaded, u.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Role != domain.RoleSuperAdmin || reloaded.Status != domain.UserStatusActive || reloaded.PasswordHash != "x" {
		t.Fatalf("unexpected promoted user: %+v", reloaded)
	}
}

func TestPendingTablesAfterMigrateIsEmpty(t *testing.T) {
	db := newTestDB(t)
	missing, err := PendingTables(db)
	if err != nil {
		t.Fatalf("pending tables: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no pending tables, got %v", missing)
	}
}
