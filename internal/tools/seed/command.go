package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/tools/common"
)

type options struct {
	envFile             string
	bootstrapAdminEmail string
	ci                  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Database seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.bootstrapAdminEmail, "bootstrap-admin-email", "", "override bootstrap admin email")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(
		newCommand(opts, "apply", "Apply default settings, categories and the bootstrap super admin", applySeed),
		newCommand(opts, "dry-run", "Show what seeding would change", planSeed),
	)
	return cmd
}

type action func(ctx context.Context, db *gorm.DB, opts database.SeedOptions) ([]string, error)

func newCommand(opts *options, use, short string, fn action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := common.Runner{Tool: "seed", CI: opts.ci, Timeout: time.Minute}
			_, err := runner.Run(use, func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				defer func() { _ = sqlDB.Close() }()
				return fn(ctx, db, seedOptions(cfg, opts.bootstrapAdminEmail))
			})
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func seedOptions(cfg *config.Config, emailOverride string) database.SeedOptions {
	email := cfg.BootstrapAdminEmail
	if emailOverride != "" {
		email = emailOverride
	}
	return database.SeedOptions{
		AdminEmail:    email,
		AdminPassword: cfg.BootstrapAdminPassword,
		AdminName:     cfg.BootstrapAdminName,
	}
}

func applySeed(_ context.Context, db *gorm.DB, opts database.SeedOptions) ([]string, error) {
	report, err := database.Seed(db, opts)
	if err != nil {
		return nil, err
	}
	if report.Noop {
		return []string{"nothing to do"}, nil
	}
	details := []string{
		fmt.Sprintf("created settings: %d", report.CreatedSettings),
		fmt.Sprintf("created categories: %d", report.CreatedCategories),
	}
	if report.BootstrapAdmin != "skipped" {
		details = append(details, fmt.Sprintf("bootstrap admin %s: %s", opts.AdminEmail, report.BootstrapAdmin))
	}
	return details, nil
}

func planSeed(_ context.Context, db *gorm.DB, opts database.SeedOptions) ([]string, error) {
	return database.SeedPlan(db, opts)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
