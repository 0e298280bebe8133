package migrate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/di"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/tools/common"
)

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func (o *options) runner() common.Runner {
	return common.Runner{Tool: "migrate", CI: o.ci, Timeout: o.timeout}
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newCommand(opts, "up", "Apply schema migrations", migrateUp),
		newCommand(opts, "status", "Report database reachability and missing tables", migrateStatus),
		newCommand(opts, "plan", "Show the tables a migration would create (dry-run)", migratePlan),
		newCommand(opts, "prune-sessions", "Delete expired sessions", pruneSessions),
		newBootstrapCommand(opts),
	)
	return cmd
}

type action func(ctx context.Context, cfg *config.Config, db *gorm.DB) ([]string, error)

func newCommand(opts *options, use, short string, fn action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.runner().Run(use, func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				defer func() { _ = sqlDB.Close() }()
				return fn(ctx, cfg, db)
			})
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

// newBootstrapCommand migrates and seeds through the same runner the API
// process uses with DB_AUTO_MIGRATE.
func newBootstrapCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Apply schema migrations and seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.runner().Run("bootstrap", func(context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				runner, err := di.InitializeMigrationRunner()
				if err != nil {
					return nil, err
				}
				defer runner.Close()
				report, err := runner.Run()
				if err != nil {
					return nil, err
				}
				return bootstrapDetails(report), nil
			})
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func bootstrapDetails(report *database.SeedReport) []string {
	details := []string{"schema migration applied"}
	if report.Noop {
		return append(details, "seed: nothing to do")
	}
	details = append(details,
		fmt.Sprintf("seeded %d settings, %d categories", report.CreatedSettings, report.CreatedCategories),
	)
	if report.BootstrapAdmin != "" && report.BootstrapAdmin != "skipped" {
		details = append(details, "bootstrap admin: "+report.BootstrapAdmin)
	}
	return details
}

func migrateUp(_ context.Context, cfg *config.Config, db *gorm.DB) ([]string, error) {
	pending, err := database.PendingTables(db)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	details := []string{
		"schema migration applied",
		"dialect: " + cfg.DBDialect,
	}
	if len(pending) > 0 {
		details = append(details, "created tables: "+strings.Join(pending, ", "))
	}
	return details, nil
}

func migrateStatus(ctx context.Context, cfg *config.Config, db *gorm.DB) ([]string, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	pending, err := database.PendingTables(db)
	if err != nil {
		return nil, err
	}
	details := []string{"database reachable", "dialect: " + cfg.DBDialect, "store driver: " + cfg.StoreDriver}
	if len(pending) == 0 {
		return append(details, "schema: up to date"), nil
	}
	return append(details, "schema: missing "+strings.Join(pending, ", ")), nil
}

func migratePlan(ctx context.Context, _ *config.Config, db *gorm.DB) ([]string, error) {
	pending, err := database.PendingTables(db)
	if err != nil {
		return nil, err
	}
	details := make([]string, 0, len(pending)+2)
	for _, table := range pending {
		details = append(details, "would create table "+table)
	}
	details = append(details, "would reconcile columns and indexes of existing tables")
	return append(details, "no mutation executed in plan mode"), nil
}

func pruneSessions(ctx context.Context, _ *config.Config, db *gorm.DB) ([]string, error) {
	n, err := repository.NewGormStore(db).Sessions().DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("deleted %d expired sessions", n)}, nil
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
