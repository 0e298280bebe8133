package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	StoreDriverGorm = "gorm"
	StoreDriverSQL  = "sql"

	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

type Config struct {
	Env      string
	HTTPPort string

	StoreDriver       string
	DBDialect         string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBAutoMigrate     bool

	JWTIssuer              string
	JWTAudience            string
	JWTSecret              string
	SessionTTL             time.Duration
	SessionCookieName      string
	CookieDomain           string
	CookieSecure           bool
	CookieSameSite         string
	CORSAllowedOrigins     []string
	PasswordResetTTL       time.Duration
	PasswordResetURL       string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	ListCacheEnabled bool
	ListCacheTTL     time.Duration

	APIRateLimitPerMin      int
	AuthRateLimitPerMin     int
	CheckURLRateLimitPerMin int
	RateLimitRedisEnabled   bool

	AuthAbuseProtectionEnabled bool
	AuthAbuseFreeAttempts      int
	AuthAbuseBaseDelay         time.Duration
	AuthAbuseMultiplier        float64
	AuthAbuseMaxDelay          time.Duration
	AuthAbuseResetWindow       time.Duration

	BulkMaxItems    int
	BulkConcurrency int

	StorageEnabled     bool
	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOBucket        string
	MinIOUseSSL        bool
	MinIOPublicBaseURL string
	FaviconMaxBytes    int64

	LogLevel          string
	LogFile           string
	LogFileMaxSizeMB  int
	LogFileMaxBackups int
	LogFileMaxAgeDays int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool

	ReadinessProbeTimeout        time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

var defaults = map[string]any{
	"app_env":                        "development",
	"http_port":                      "8080",
	"store_driver":                   StoreDriverGorm,
	"db_dialect":                     DialectPostgres,
	"db_max_open_conns":              25,
	"db_max_idle_conns":              5,
	"db_conn_max_lifetime":           "30m",
	"db_auto_migrate":                true,
	"jwt_issuer":                     "sitedeck",
	"jwt_audience":                   "sitedeck-api",
	"session_ttl":                    "168h",
	"session_cookie_name":            "session_token",
	"cookie_secure":                  true,
	"cookie_samesite":                "lax",
	"cors_allowed_origins":           "http://localhost:3000",
	"password_reset_ttl":             "1h",
	"password_reset_url":             "http://localhost:3000/reset-password",
	"bootstrap_admin_name":           "Administrator",
	"redis_enabled":                  false,
	"redis_addr":                     "localhost:6379",
	"redis_db":                       0,
	"redis_prefix":                   "sitedeck",
	"list_cache_enabled":             true,
	"list_cache_ttl":                 "30s",
	"api_rate_limit_per_min":         120,
	"auth_rate_limit_per_min":        30,
	"check_url_rate_limit_per_min":   60,
	"rate_limit_redis_enabled":       false,
	"auth_abuse_protection_enabled":  true,
	"auth_abuse_free_attempts":       5,
	"auth_abuse_base_delay":          "2s",
	"auth_abuse_multiplier":          2.0,
	"auth_abuse_max_delay":           "5m",
	"auth_abuse_reset_window":        "30m",
	"bulk_max_items":                 100,
	"bulk_concurrency":               4,
	"storage_enabled":                false,
	"minio_endpoint":                 "localhost:9000",
	"minio_bucket":                   "favicons",
	"minio_use_ssl":                  false,
	"favicon_max_bytes":              256 * 1024,
	"log_level":                      "info",
	"log_file_max_size_mb":           100,
	"log_file_max_backups":           5,
	"log_file_max_age_days":          14,
	"otel_service_name":              "sitedeck",
	"otel_exporter_otlp_endpoint":    "localhost:4317",
	"otel_exporter_otlp_insecure":    true,
	"otel_metrics_export_interval":   "10s",
	"otel_trace_sampling_ratio":      1.0,
	"otel_metrics_enabled":           false,
	"otel_tracing_enabled":           false,
	"otel_logs_enabled":              false,
	"readiness_probe_timeout":        "1s",
	"shutdown_timeout":               "20s",
	"shutdown_http_drain_timeout":    "10s",
	"shutdown_observability_timeout": "8s",
}

// Load layers built-in defaults, the optional YAML file named by
// APP_CONFIG_FILE and the process environment, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := fromKoanf(k)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string { return strings.ToLower(s) }

func fromKoanf(k *koanf.Koanf) *Config {
	appEnv := k.String("app_env")
	otelEnv := k.String("otel_environment")
	if otelEnv == "" {
		otelEnv = appEnv
	}
	return &Config{
		Env:      appEnv,
		HTTPPort: k.String("http_port"),

		StoreDriver:       strings.ToLower(k.String("store_driver")),
		DBDialect:         strings.ToLower(k.String("db_dialect")),
		DatabaseURL:       k.String("database_url"),
		DBMaxOpenConns:    k.Int("db_max_open_conns"),
		DBMaxIdleConns:    k.Int("db_max_idle_conns"),
		DBConnMaxLifetime: k.Duration("db_conn_max_lifetime"),
		DBAutoMigrate:     k.Bool("db_auto_migrate"),

		JWTIssuer:              k.String("jwt_issuer"),
		JWTAudience:            k.String("jwt_audience"),
		JWTSecret:              k.String("jwt_secret"),
		SessionTTL:             k.Duration("session_ttl"),
		SessionCookieName:      k.String("session_cookie_name"),
		CookieDomain:           k.String("cookie_domain"),
		CookieSecure:           k.Bool("cookie_secure"),
		CookieSameSite:         strings.ToLower(k.String("cookie_samesite")),
		CORSAllowedOrigins:     splitCSV(k.String("cors_allowed_origins")),
		PasswordResetTTL:       k.Duration("password_reset_ttl"),
		PasswordResetURL:       k.String("password_reset_url"),
		BootstrapAdminEmail:    strings.TrimSpace(strings.ToLower(k.String("bootstrap_admin_email"))),
		BootstrapAdminPassword: k.String("bootstrap_admin_password"),
		BootstrapAdminName:     k.String("bootstrap_admin_name"),

		RedisEnabled:  k.Bool("redis_enabled"),
		RedisAddr:     k.String("redis_addr"),
		RedisPassword: k.String("redis_password"),
		RedisDB:       k.Int("redis_db"),
		RedisPrefix:   k.String("redis_prefix"),

		ListCacheEnabled: k.Bool("list_cache_enabled"),
		ListCacheTTL:     k.Duration("list_cache_ttl"),

		APIRateLimitPerMin:      k.Int("api_rate_limit_per_min"),
		AuthRateLimitPerMin:     k.Int("auth_rate_limit_per_min"),
		CheckURLRateLimitPerMin: k.Int("check_url_rate_limit_per_min"),
		RateLimitRedisEnabled:   k.Bool("rate_limit_redis_enabled"),

		AuthAbuseProtectionEnabled: k.Bool("auth_abuse_protection_enabled"),
		AuthAbuseFreeAttempts:      k.Int("auth_abuse_free_attempts"),
		AuthAbuseBaseDelay:         k.Duration("auth_abuse_base_delay"),
		AuthAbuseMultiplier:        k.Float64("auth_abuse_multiplier"),
		AuthAbuseMaxDelay:          k.Duration("auth_abuse_max_delay"),
		AuthAbuseResetWindow:       k.Duration("auth_abuse_reset_window"),

		BulkMaxItems:    k.Int("bulk_max_items"),
		BulkConcurrency: k.Int("bulk_concurrency"),

		StorageEnabled:     k.Bool("storage_enabled"),
		MinIOEndpoint:      k.String("minio_endpoint"),
		MinIOAccessKey:     k.String("minio_access_key"),
		MinIOSecretKey:     k.String("minio_secret_key"),
		MinIOBucket:        k.String("minio_bucket"),
		MinIOUseSSL:        k.Bool("minio_use_ssl"),
		MinIOPublicBaseURL: strings.TrimRight(k.String("minio_public_base_url"), "/"),
		FaviconMaxBytes:    k.Int64("favicon_max_bytes"),

		LogLevel:          strings.ToLower(k.String("log_level")),
		LogFile:           k.String("log_file"),
		LogFileMaxSizeMB:  k.Int("log_file_max_size_mb"),
		LogFileMaxBackups: k.Int("log_file_max_backups"),
		LogFileMaxAgeDays: k.Int("log_file_max_age_days"),

		OTELServiceName:           k.String("otel_service_name"),
		OTELEnvironment:           otelEnv,
		OTELExporterOTLPEndpoint:  k.String("otel_exporter_otlp_endpoint"),
		OTELExporterOTLPInsecure:  k.Bool("otel_exporter_otlp_insecure"),
		OTELMetricsExportInterval: k.Duration("otel_metrics_export_interval"),
		OTELTraceSamplingRatio:    k.Float64("otel_trace_sampling_ratio"),
		OTELMetricsEnabled:        k.Bool("otel_metrics_enabled"),
		OTELTracingEnabled:        k.Bool("otel_tracing_enabled"),
		OTELLogsEnabled:           k.Bool("otel_logs_enabled"),

		ReadinessProbeTimeout:        k.Duration("readiness_probe_timeout"),
		ShutdownTimeout:              k.Duration("shutdown_timeout"),
		ShutdownHTTPDrainTimeout:     k.Duration("shutdown_http_drain_timeout"),
		ShutdownObservabilityTimeout: k.Duration("shutdown_observability_timeout"),
	}
}

func (c *Config) Validate() error {
	var errs []string
	switch c.StoreDriver {
	case StoreDriverGorm, StoreDriverSQL:
	default:
		errs = append(errs, "STORE_DRIVER must be one of gorm, sql")
	}
	switch c.DBDialect {
	case DialectPostgres, DialectMySQL, DialectSQLite:
	default:
		errs = append(errs, "DB_DIALECT must be one of postgres, mysql, sqlite")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.SessionTTL <= 0 || c.SessionTTL > 30*24*time.Hour {
		errs = append(errs, "SESSION_TTL must be between 1s and 30d")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		errs = append(errs, "SESSION_COOKIE_NAME is required")
	}
	if !isValidSameSite(c.CookieSameSite) {
		errs = append(errs, "COOKIE_SAMESITE must be one of lax, strict, none")
	}
	if c.PasswordResetTTL <= 0 || c.PasswordResetTTL > 24*time.Hour {
		errs = append(errs, "PASSWORD_RESET_TTL must be between 1s and 24h")
	}
	if c.BootstrapAdminEmail != "" && len(c.BootstrapAdminPassword) < 8 {
		errs = append(errs, "BOOTSTRAP_ADMIN_PASSWORD must be at least 8 chars when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	if (c.RedisEnabled || c.RateLimitRedisEnabled) && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when redis is enabled")
	}
	if c.RateLimitRedisEnabled && !c.RedisEnabled {
		errs = append(errs, "RATE_LIMIT_REDIS_ENABLED requires REDIS_ENABLED=true")
	}
	if c.ListCacheEnabled && c.ListCacheTTL <= 0 {
		errs = append(errs, "LIST_CACHE_TTL must be > 0 when LIST_CACHE_ENABLED=true")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.CheckURLRateLimitPerMin <= 0 {
		errs = append(errs, "CHECK_URL_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.AuthAbuseProtectionEnabled {
		if c.AuthAbuseFreeAttempts < 0 {
			errs = append(errs, "AUTH_ABUSE_FREE_ATTEMPTS must be >= 0")
		}
		if c.AuthAbuseBaseDelay <= 0 || c.AuthAbuseMaxDelay < c.AuthAbuseBaseDelay {
			errs = append(errs, "AUTH_ABUSE_BASE_DELAY must be > 0 and <= AUTH_ABUSE_MAX_DELAY")
		}
		if c.AuthAbuseMultiplier < 1 {
			errs = append(errs, "AUTH_ABUSE_MULTIPLIER must be >= 1")
		}
		if c.AuthAbuseResetWindow <= 0 {
			errs = append(errs, "AUTH_ABUSE_RESET_WINDOW must be > 0")
		}
	}
	if c.BulkMaxItems <= 0 {
		errs = append(errs, "BULK_MAX_ITEMS must be > 0")
	}
	if c.BulkConcurrency <= 0 {
		errs = append(errs, "BULK_CONCURRENCY must be > 0")
	}
	if c.StorageEnabled {
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" || c.MinIOBucket == "" {
			errs = append(errs, "MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required when STORAGE_ENABLED=true")
		}
		if c.FaviconMaxBytes <= 0 {
			errs = append(errs, "FAVICON_MAX_BYTES must be > 0")
		}
	}
	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, "LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.LogFile != "" && c.LogFileMaxSizeMB <= 0 {
		errs = append(errs, "LOG_FILE_MAX_SIZE_MB must be > 0 when LOG_FILE is set")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsEnabled && c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 || c.ShutdownHTTPDrainTimeout <= 0 || c.ShutdownHTTPDrainTimeout > c.ShutdownTimeout {
		errs = append(errs, "SHUTDOWN_HTTP_DRAIN_TIMEOUT must be > 0 and <= SHUTDOWN_TIMEOUT")
	}
	if isProdLikeEnv(c.Env) {
		if !c.CookieSecure {
			errs = append(errs, "COOKIE_SECURE must be true in production")
		}
		if c.DBDialect == DialectSQLite {
			errs = append(errs, "DB_DIALECT=sqlite is not allowed in production")
		}
		for _, origin := range c.CORSAllowedOrigins {
			if origin == "*" {
				errs = append(errs, "CORS_ALLOWED_ORIGINS must not contain * in production")
			}
		}
	}
	if c.CookieSameSite == "none" && !c.CookieSecure {
		errs = append(errs, "COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// IsLocalLike reports development-style environments.
func (c *Config) IsLocalLike() bool { return isLocalLikeEnv(c.Env) }

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging":
		return true
	default:
		return false
	}
}

func isValidSameSite(v string) bool {
	switch v {
	case "lax", "strict", "none":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
