package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/app"
	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/health"
	"github.com/sandeepkv93/sitedeck/internal/http/handler"
	"github.com/sandeepkv93/sitedeck/internal/http/middleware"
	"github.com/sandeepkv93/sitedeck/internal/http/router"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/repository/sqlstore"
	"github.com/sandeepkv93/sitedeck/internal/security"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideStore,
	provideRedisClient,
	provideFaviconStore,
	provideReadinessProbeRunner,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	provideListCache,
	provideBulkRunner,
	provideAttemptGuard,
	providePasswordResetNotifier,
	provideSessionService,
	provideAuthService,
	provideSettingService,
	provideCategoryService,
	provideTagService,
	provideWebsiteService,
	provideFavoriteService,
	provideUserService,
	wire.Bind(new(service.SessionResolver), new(*service.SessionService)),
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.SettingServiceInterface), new(*service.SettingService)),
	wire.Bind(new(service.CategoryServiceInterface), new(*service.CategoryService)),
	wire.Bind(new(service.TagServiceInterface), new(*service.TagService)),
	wire.Bind(new(service.WebsiteServiceInterface), new(*service.WebsiteService)),
	wire.Bind(new(service.FavoriteServiceInterface), new(*service.FavoriteService)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	provideWebsiteHandler,
	handler.NewCatalogHandler,
	handler.NewFavoriteHandler,
	handler.NewSettingHandler,
	handler.NewAdminHandler,
	provideRouteLimiters,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

// MigrationRunner applies the schema and seed data outside the API process.
type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() (*database.SeedReport, error) {
	if err := database.Migrate(m.db); err != nil {
		return nil, err
	}
	return database.Seed(m.db, seedOptions(m.cfg))
}

func (m *MigrationRunner) Close() { closeGorm(m.db) }

func seedOptions(cfg *config.Config) database.SeedOptions {
	return database.SeedOptions{
		AdminEmail:    cfg.BootstrapAdminEmail,
		AdminPassword: cfg.BootstrapAdminPassword,
		AdminName:     cfg.BootstrapAdminName,
	}
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

// provideStore opens the configured persistence adapter. The gorm
// connection always owns migrations; with STORE_DRIVER=sql it is closed
// once the schema is in place and the sqlx adapter takes over.
func provideStore(cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		report, err := NewMigrationRunner(cfg, db).Run()
		if err != nil {
			closeGorm(db)
			return nil, err
		}
		if !report.Noop {
			logger.Info("database seeded",
				"settings", report.CreatedSettings,
				"categories", report.CreatedCategories,
				"bootstrap_admin", report.BootstrapAdmin,
			)
		}
	}
	if cfg.StoreDriver != config.StoreDriverSQL {
		return repository.NewGormStore(db), nil
	}

	closeGorm(db)
	store, err := sqlstore.Open(context.Background(), cfg.DBDialect, cfg.DatabaseURL, sqlstore.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open sql store: %w", err)
	}
	return store, nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func redisRequired(cfg *config.Config) bool {
	return cfg.RedisEnabled || cfg.RateLimitRedisEnabled
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !redisRequired(cfg) {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func composeRedisPrefix(base, suffix string) string {
	if base == "" {
		base = "sitedeck"
	}
	return base + ":" + suffix
}

func provideFaviconStore(cfg *config.Config) (service.FaviconStore, error) {
	if !cfg.StorageEnabled {
		return service.DisabledFaviconStore{}, nil
	}
	store, err := service.NewMinIOFaviconStore(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucket,
		cfg.MinIOUseSSL,
		cfg.MinIOPublicBaseURL,
		cfg.FaviconMaxBytes,
	)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func provideReadinessProbeRunner(
	cfg *config.Config,
	store repository.Store,
	redisClient redis.UniversalClient,
	favicons service.FaviconStore,
) *health.ProbeRunner {
	checkers := []health.Checker{health.NewStoreChecker(store)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	if minioStore, ok := favicons.(*service.MinIOFaviconStore); ok {
		checkers = append(checkers, health.NewBucketChecker(minioStore.Client(), minioStore.Bucket()))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, 0, checkers...)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.SessionCookieName, cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideListCache(cfg *config.Config, redisClient redis.UniversalClient, logger *slog.Logger) *service.ListCache {
	var store service.ListCacheStore
	switch {
	case !cfg.ListCacheEnabled:
		store = service.NewNoopListCacheStore()
	case cfg.RedisEnabled && redisClient != nil:
		store = service.NewRedisListCacheStore(redisClient, composeRedisPrefix(cfg.RedisPrefix, "cache"))
	default:
		store = service.NewMemoryListCacheStore()
	}
	return service.NewListCache(store, cfg.ListCacheTTL, logger)
}

func provideBulkRunner(cfg *config.Config) service.BulkRunner {
	return service.BulkRunner{MaxItems: cfg.BulkMaxItems, Concurrency: cfg.BulkConcurrency}
}

func provideAttemptGuard(cfg *config.Config, redisClient redis.UniversalClient) service.AttemptGuard {
	if !cfg.AuthAbuseProtectionEnabled {
		return service.NewNoopAttemptGuard()
	}
	policy := service.AttemptPolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   cfg.AuthAbuseMultiplier,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
	if cfg.RedisEnabled && redisClient != nil {
		return service.NewRedisAttemptGuard(redisClient, composeRedisPrefix(cfg.RedisPrefix, "guard"), policy)
	}
	return service.NewMemoryAttemptGuard(policy)
}

func providePasswordResetNotifier(logger *slog.Logger) service.PasswordResetNotifier {
	return service.NewLogPasswordResetNotifier(logger)
}

func provideSessionService(cfg *config.Config, store repository.Store, jwt *security.JWTManager, logger *slog.Logger) *service.SessionService {
	return service.NewSessionService(store.Sessions(), store.Users(), jwt, cfg.SessionTTL, logger)
}

func provideAuthService(
	cfg *config.Config,
	store repository.Store,
	sessions *service.SessionService,
	guard service.AttemptGuard,
	notifier service.PasswordResetNotifier,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(store.Users(), store.PasswordResets(), sessions, guard, notifier, service.AuthOptions{
		PasswordResetTTL: cfg.PasswordResetTTL,
		PasswordResetURL: cfg.PasswordResetURL,
	}, logger)
}

func provideSettingService(store repository.Store, cache *service.ListCache, logger *slog.Logger) *service.SettingService {
	return service.NewSettingService(store.Settings(), cache, logger)
}

func provideCategoryService(store repository.Store, cache *service.ListCache, bulk service.BulkRunner) *service.CategoryService {
	return service.NewCategoryService(store.Categories(), cache, bulk)
}

func provideTagService(store repository.Store, cache *service.ListCache) *service.TagService {
	return service.NewTagService(store.Tags(), cache)
}

func provideWebsiteService(
	store repository.Store,
	settings *service.SettingService,
	favicons service.FaviconStore,
	cache *service.ListCache,
	bulk service.BulkRunner,
	logger *slog.Logger,
) *service.WebsiteService {
	return service.NewWebsiteService(store.Websites(), store.Categories(), settings, favicons, cache, bulk, logger)
}

func provideFavoriteService(store repository.Store) *service.FavoriteService {
	return service.NewFavoriteService(store.Favorites(), store.Websites())
}

func provideUserService(store repository.Store, sessions *service.SessionService, bulk service.BulkRunner) *service.UserService {
	return service.NewUserService(store.Users(), store.Websites(), sessions, bulk)
}

func provideWebsiteHandler(svc service.WebsiteServiceInterface, cfg *config.Config) *handler.WebsiteHandler {
	return handler.NewWebsiteHandler(svc, cfg.FaviconMaxBytes)
}

// routeLimiters carries redis-backed limiters. Nil entries make the router
// fall back to in-process token buckets.
type routeLimiters struct {
	API      router.RateLimiterFunc
	Auth     router.RateLimiterFunc
	CheckURL router.RateLimiterFunc
}

func provideRouteLimiters(cfg *config.Config, redisClient redis.UniversalClient) routeLimiters {
	if !cfg.RateLimitRedisEnabled || redisClient == nil {
		return routeLimiters{}
	}
	backend := middleware.NewRedisFixedWindowLimiter(redisClient, composeRedisPrefix(cfg.RedisPrefix, "rl"))
	build := func(rpm int, mode middleware.FailureMode, scope string, keyFn middleware.KeyFunc) router.RateLimiterFunc {
		if rpm <= 0 {
			return nil
		}
		return middleware.NewDistributedRateLimiter(backend, rpm, time.Minute, mode, scope).
			WithKeyFunc(keyFn).
			Middleware()
	}
	return routeLimiters{
		API:      build(cfg.APIRateLimitPerMin, middleware.FailOpen, "api", middleware.KeyByUserOrIP),
		Auth:     build(cfg.AuthRateLimitPerMin, middleware.FailClosed, "auth", middleware.KeyByIP),
		CheckURL: build(cfg.CheckURLRateLimitPerMin, middleware.FailOpen, "check_url", middleware.KeyByIP),
	}
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	websiteHandler *handler.WebsiteHandler,
	catalogHandler *handler.CatalogHandler,
	favoriteHandler *handler.FavoriteHandler,
	settingHandler *handler.SettingHandler,
	adminHandler *handler.AdminHandler,
	sessions service.SessionResolver,
	cookies *security.CookieManager,
	limiters routeLimiters,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:          authHandler,
		WebsiteHandler:       websiteHandler,
		CatalogHandler:       catalogHandler,
		FavoriteHandler:      favoriteHandler,
		SettingHandler:       settingHandler,
		AdminHandler:         adminHandler,
		Sessions:             sessions,
		Cookies:              cookies,
		CORSOrigins:          cfg.CORSAllowedOrigins,
		APIRateLimitRPM:      cfg.APIRateLimitPerMin,
		AuthRateLimitRPM:     cfg.AuthRateLimitPerMin,
		CheckURLRateLimitRPM: cfg.CheckURLRateLimitPerMin,
		APIRateLimiter:       limiters.API,
		AuthRateLimiter:      limiters.Auth,
		CheckURLRateLimiter:  limiters.CheckURL,
		Readiness:            readiness,
		EnableOTelHTTP:       cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	store repository.Store,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, store, redisClient, readiness)
}
