package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/security"
)

type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

type SeedReport struct {
	CreatedSettings   int    `json:"created_settings"`
	CreatedCategories int    `json:"created_categories"`
	BootstrapAdmin    string `json:"bootstrap_admin"`
	Noop              bool   `json:"noop"`
}

type defaultSetting struct {
	key         string
	value       string
	description string
}

var defaultSettings = []defaultSetting{
	{key: domain.SettingAllowWebsiteSubmission, value: "true", description: "Allow signed-in users to submit websites"},
	{key: domain.SettingAutoApproveTrustedUsers, value: "false", description: "Publish submissions from trusted users without review"},
	{key: domain.SettingSiteName, value: `"Sitedeck"`, description: "Display name of the directory"},
}

// defaultCategories are only inserted into an empty categories table.
var defaultCategories = []domain.Category{
	{Name: "Development", GradientFrom: "from-blue-500", GradientTo: "to-indigo-600"},
	{Name: "Design", GradientFrom: "from-pink-500", GradientTo: "to-rose-600"},
	{Name: "Productivity", GradientFrom: "from-emerald-500", GradientTo: "to-teal-600"},
	{Name: "Learning", GradientFrom: "from-amber-500", GradientTo: "to-orange-600"},
}

func Seed(db *gorm.DB, opts SeedOptions) (*SeedReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()
	report, err := seed(db, opts)
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
	return report, nil
}

func seed(db *gorm.DB, opts SeedOptions) (*SeedReport, error) {
	report := &SeedReport{BootstrapAdmin: "skipped"}
	for _, s := range defaultSettings {
		row := domain.SystemSetting{Key: s.key, Value: domain.JSONValue(s.value), Description: s.description}
		res := db.Where("setting_key = ?", s.key).FirstOrCreate(&row)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			report.CreatedSettings++
		}
	}

	var categories int64
	if err := db.Model(&domain.Category{}).Count(&categories).Error; err != nil {
		return nil, err
	}
	if categories == 0 {
		for _, c := range defaultCategories {
			row := c
			if err := db.Create(&row).Error; err != nil {
				return nil, err
			}
			report.CreatedCategories++
		}
	}

	email := strings.TrimSpace(strings.ToLower(opts.AdminEmail))
	if email != "" {
		outcome, err := ensureBootstrapAdmin(db, email, opts)
		if err != nil {
			return nil, err
		}
		report.BootstrapAdmin = outcome
	}
	report.Noop = report.CreatedSettings == 0 && report.CreatedCategories == 0 &&
		(report.BootstrapAdmin == "skipped" || report.BootstrapAdmin == "unchanged")
	return report, nil
}

// ensureBootstrapAdmin creates the super admin or promotes an existing
// account with that email. An existing password is never overwritten.
func ensureBootstrapAdmin(db *gorm.DB, email string, opts SeedOptions) (string, error) {
	var u domain.User
	err := db.Where("email = ?", email).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if len(opts.AdminPassword) < 8 {
			return "", errors.New("bootstrap admin password must be at least 8 chars")
		}
		hash, err := security.HashPassword(opts.AdminPassword)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(opts.AdminName)
		if name == "" {
			name = "Administrator"
		}
		admin := domain.User{
			Email:        email,
			Name:         name,
			Role:         domain.RoleSuperAdmin,
			Status:       domain.UserStatusActive,
			Trusted:      true,
			PasswordHash: hash,
		}
		if err := db.Create(&admin).Error; err != nil {
			return "", err
		}
		return "created", nil
	case err != nil:
		return "", err
	}
	if u.Role == domain.RoleSuperAdmin && u.Status == domain.UserStatusActive {
		return "unchanged", nil
	}
	err = db.Model(&domain.User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"role":       domain.RoleSuperAdmin,
		"status":     domain.UserStatusActive,
		"updated_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return "", err
	}
	return "promoted", nil
}

// SeedPlan describes what Seed would change without writing.
func SeedPlan(db *gorm.DB, opts SeedOptions) ([]string, error) {
	var plan []string
	for _, s := range defaultSettings {
		var count int64
		if err := db.Model(&domain.SystemSetting{}).Where("setting_key = ?", s.key).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			plan = append(plan, "would create setting "+s.key+"="+s.value)
		}
	}
	var categories int64
	if err := db.Model(&domain.Category{}).Count(&categories).Error; err != nil {
		return nil, err
	}
	if categories == 0 {
		for _, c := range defaultCategories {
			plan = append(plan, "would create category "+c.Name)
		}
	}
	email := strings.TrimSpace(strings.ToLower(opts.AdminEmail))
	if email != "" {
		var u domain.User
		err := db.Where("email = ?", email).First(&u).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			plan = append(plan, "would create super admin "+email)
		case err != nil:
			return nil, err
		case u.Role != domain.RoleSuperAdmin || u.Status != domain.UserStatusActive:
			plan = append(plan, "would promote "+email+" to super_admin")
		}
	}
	if len(plan) == 0 {
		plan = append(plan, "nothing to do")
	}
	return plan, nil
}
