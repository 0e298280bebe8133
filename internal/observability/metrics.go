package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"

	"github.com/sandeepkv93/sitedeck/internal/config"
)

const meterName = "github.com/sandeepkv93/sitedeck"

type AppMetrics struct {
	authLoginCounter         metric.Int64Counter
	authLogoutCounter        metric.Int64Counter
	authFlowCounter          metric.Int64Counter
	sessionValidationCounter metric.Int64Counter
	sessionRevokedCount      metric.Float64Histogram
	rateLimitDecisionCounter metric.Int64Counter
	rateLimitRetryAfter      metric.Float64Histogram
	middlewareEventCounter   metric.Int64Counter
	abuseGuardCounter        metric.Int64Counter
	abuseGuardCooldown       metric.Float64Histogram
	submissionCounter        metric.Int64Counter
	moderationCounter        metric.Int64Counter
	duplicateCheckCounter    metric.Int64Counter
	bulkItemsCounter         metric.Int64Counter
	bulkDuration             metric.Float64Histogram
	adminMutationCounter     metric.Int64Counter
	favoriteCounter          metric.Int64Counter
	listCacheCounter         metric.Int64Counter
	storageCounter           metric.Int64Counter
	healthCheckResultCounter metric.Int64Counter
	healthCheckDuration      metric.Float64Histogram
	databaseStartupCounter   metric.Int64Counter
	databaseStartupDuration  metric.Float64Histogram
	repositoryOpsCounter     metric.Int64Counter
	toolCommandRuns          metric.Int64Counter
	toolCommandDuration      metric.Float64Histogram
	loadgenRequestsCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "bulk.operation.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create counter %s: %w", name, err)
		}
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithUnit("s"), metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create histogram %s: %w", name, err)
		}
		return h
	}
	plain := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create histogram %s: %w", name, err)
		}
		return h
	}

	m := &AppMetrics{
		authLoginCounter:         counter("auth.login.attempts", "Login attempts by outcome"),
		authLogoutCounter:        counter("auth.logout.attempts", "Logout calls by outcome"),
		authFlowCounter:          counter("auth.flow.events", "Register and password flows by outcome"),
		sessionValidationCounter: counter("auth.session.validation.events", "Session token resolution outcomes"),
		sessionRevokedCount:      plain("session.revoked.count", "Sessions removed per revocation action"),
		rateLimitDecisionCounter: counter("http.rate_limit.decisions", "Rate limiter decisions"),
		rateLimitRetryAfter:      seconds("http.rate_limit.retry_after", "Retry-after returned to throttled clients"),
		middlewareEventCounter:   counter("http.middleware.validation.events", "CORS, body limit and session middleware decisions"),
		abuseGuardCounter:        counter("auth.abuse_guard.events", "Login abuse guard events"),
		abuseGuardCooldown:       seconds("auth.abuse_guard.cooldown", "Cooldown returned by the login abuse guard"),
		submissionCounter:        counter("website.submissions", "Website submissions by resulting status"),
		moderationCounter:        counter("website.moderation.events", "Moderation actions by outcome"),
		duplicateCheckCounter:    counter("website.duplicate_check.events", "URL duplicate checks by outcome"),
		bulkItemsCounter:         counter("bulk.operation.items", "Items processed by bulk operations"),
		bulkDuration:             seconds("bulk.operation.duration", "Duration of bulk operations"),
		adminMutationCounter:     counter("admin.mutations", "Administrative mutations by entity"),
		favoriteCounter:          counter("favorite.events", "Favorite add/remove events"),
		listCacheCounter:         counter("list.cache.events", "List cache hits and misses"),
		storageCounter:           counter("storage.upload.events", "Object storage uploads by outcome"),
		healthCheckResultCounter: counter("health.check.results", "Dependency health check results"),
		healthCheckDuration:      seconds("health.check.duration", "Duration of dependency health checks"),
		databaseStartupCounter:   counter("database.startup.events", "Migrate and seed outcomes"),
		databaseStartupDuration:  seconds("database.startup.duration", "Duration of migrate and seed stages"),
		repositoryOpsCounter:     counter("repository.operations", "Persistence operations by outcome"),
		toolCommandRuns:          counter("tool.command.runs", "Operator tool command runs"),
		toolCommandDuration:      seconds("tool.command.duration", "Operator tool command duration"),
		loadgenRequestsCounter:   counter("loadgen.requests", "Load generator requests by status class"),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

func add(ctx context.Context, pick func(*AppMetrics) metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	m := currentMetrics()
	if m == nil {
		return
	}
	pick(m).Add(ctx, n, metric.WithAttributes(attrs...))
}

func observe(ctx context.Context, pick func(*AppMetrics) metric.Float64Histogram, v float64, attrs ...attribute.KeyValue) {
	m := currentMetrics()
	if m == nil {
		return
	}
	pick(m).Record(ctx, v, metric.WithAttributes(attrs...))
}

func RecordAuthLogin(ctx context.Context, status string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.authLoginCounter }, 1,
		attribute.String("status", status))
}

func RecordAuthLogout(ctx context.Context, status string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.authLogoutCounter }, 1,
		attribute.String("status", status))
}

func RecordAuthFlowEvent(ctx context.Context, flow, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.authFlowCounter }, 1,
		attribute.String("flow", flow),
		attribute.String("outcome", outcome))
}

func RecordSessionValidation(ctx context.Context, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.sessionValidationCounter }, 1,
		attribute.String("outcome", outcome))
}

func RecordSessionRevokedCount(ctx context.Context, action string, count int64) {
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.sessionRevokedCount }, float64(count),
		attribute.String("action", action))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.rateLimitDecisionCounter }, 1,
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.rateLimitRetryAfter }, retryAfter.Seconds(),
		attribute.String("scope", scope),
		attribute.String("reason", reason))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.middlewareEventCounter }, 1,
		attribute.String("middleware", middleware),
		attribute.String("outcome", outcome))
}

func RecordAuthAbuseGuardEvent(ctx context.Context, scope, action, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.abuseGuardCounter }, 1,
		attribute.String("scope", scope),
		attribute.String("action", action),
		attribute.String("outcome", outcome))
}

func RecordAuthAbuseCooldown(ctx context.Context, scope, action string, cooldown time.Duration) {
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.abuseGuardCooldown }, cooldown.Seconds(),
		attribute.String("scope", scope),
		attribute.String("action", action))
}

func RecordWebsiteSubmission(ctx context.Context, status string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.submissionCounter }, 1,
		attribute.String("status", status))
}

func RecordModerationAction(ctx context.Context, action, status string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.moderationCounter }, 1,
		attribute.String("action", action),
		attribute.String("status", status))
}

func RecordDuplicateCheck(ctx context.Context, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.duplicateCheckCounter }, 1,
		attribute.String("outcome", outcome))
}

// RecordBulkOperation records per-item outcomes and the total duration of one bulk call.
func RecordBulkOperation(ctx context.Context, operation string, succeeded, failed int, duration time.Duration) {
	if succeeded > 0 {
		add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.bulkItemsCounter }, int64(succeeded),
			attribute.String("operation", operation),
			attribute.String("outcome", "success"))
	}
	if failed > 0 {
		add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.bulkItemsCounter }, int64(failed),
			attribute.String("operation", operation),
			attribute.String("outcome", "failure"))
	}
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.bulkDuration }, duration.Seconds(),
		attribute.String("operation", operation))
}

func RecordAdminMutation(ctx context.Context, entity, action, status string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.adminMutationCounter }, 1,
		attribute.String("entity", entity),
		attribute.String("action", action),
		attribute.String("status", status))
}

func RecordFavoriteEvent(ctx context.Context, action, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.favoriteCounter }, 1,
		attribute.String("action", action),
		attribute.String("outcome", outcome))
}

func RecordListCacheEvent(ctx context.Context, namespace, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.listCacheCounter }, 1,
		attribute.String("namespace", namespace),
		attribute.String("outcome", outcome))
}

func RecordStorageUpload(ctx context.Context, kind, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.storageCounter }, 1,
		attribute.String("kind", kind),
		attribute.String("outcome", outcome))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.healthCheckResultCounter }, 1,
		attribute.String("check", check),
		attribute.String("outcome", outcome))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.healthCheckDuration }, duration.Seconds(),
		attribute.String("check", check))
}

func RecordDatabaseStartupEvent(ctx context.Context, stage, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.databaseStartupCounter }, 1,
		attribute.String("stage", stage),
		attribute.String("outcome", outcome))
}

func RecordDatabaseStartupDuration(ctx context.Context, stage string, duration time.Duration) {
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.databaseStartupDuration }, duration.Seconds(),
		attribute.String("stage", stage))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.repositoryOpsCounter }, 1,
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome))
}

func RecordToolCommandRun(ctx context.Context, tool, command, status string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.toolCommandRuns }, 1,
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("status", status))
}

func RecordToolCommandDuration(ctx context.Context, tool, command, status string, duration time.Duration) {
	observe(ctx, func(m *AppMetrics) metric.Float64Histogram { return m.toolCommandDuration }, duration.Seconds(),
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("status", status))
}

func RecordLoadgenRequest(ctx context.Context, statusClass, profile string) {
	add(ctx, func(m *AppMetrics) metric.Int64Counter { return m.loadgenRequestsCounter }, 1,
		attribute.String("status_class", statusClass),
		attribute.String("profile", profile))
}
