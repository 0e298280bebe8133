package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otlploggrpc "go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sandeepkv93/sitedeck/internal/config"
)

// fanoutHandler delivers each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithAttrs(attrs))
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithGroup(name))
	}
	return &fanoutHandler{handlers: next}
}

// traceContextHandler stamps trace and span ids onto records emitted inside a span.
type traceContextHandler struct {
	next slog.Handler
}

func (h *traceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *traceContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *traceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *traceContextHandler) WithGroup(name string) slog.Handler {
	return &traceContextHandler{next: h.next.WithGroup(name)}
}

var (
	loggerMu    sync.Mutex
	logFileSink *lumberjack.Logger
)

func NewBootstrapLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions(cfg)))
}

// redactedKeys never reach a sink with their values.
var redactedKeys = map[string]struct{}{
	"password":         {},
	"current_password": {},
	"new_password":     {},
	"password_hash":    {},
	"token":            {},
	"session_token":    {},
	"authorization":    {},
	"cookie":           {},
	"jwt_secret":       {},
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func handlerOptions(cfg *config.Config) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel), ReplaceAttr: redactAttr}
}

// InitLogger installs the process logger: JSON to stdout, an optional
// rotating file, and the OTel log bridge when a provider is supplied.
func InitLogger(cfg *config.Config, lp *sdklog.LoggerProvider) *slog.Logger {
	return installLogger(cfg, lp, os.Stdout)
}

func installLogger(cfg *config.Config, lp *sdklog.LoggerProvider, stdout io.Writer) *slog.Logger {
	opts := handlerOptions(cfg)
	handlers := []slog.Handler{slog.NewJSONHandler(stdout, opts)}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logFileSink != nil {
		_ = logFileSink.Close()
		logFileSink = nil
	}
	if cfg.LogFile != "" {
		logFileSink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogFileMaxSizeMB,
			MaxBackups: cfg.LogFileMaxBackups,
			MaxAge:     cfg.LogFileMaxAgeDays,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(logFileSink, opts))
	}
	if cfg.OTELLogsEnabled && lp != nil {
		handlers = append(handlers, otelslog.NewHandler(cfg.OTELServiceName, otelslog.WithLoggerProvider(lp)))
	}

	var root slog.Handler = handlers[0]
	if len(handlers) > 1 {
		root = &fanoutHandler{handlers: handlers}
	}
	l := slog.New(&traceContextHandler{next: root})
	slog.SetDefault(l)
	return l
}

// CloseLogSinks flushes and closes the rotating file sink, if any.
func CloseLogSinks() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logFileSink == nil {
		return nil
	}
	err := logFileSink.Close()
	logFileSink = nil
	return err
}

func InitLogs(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdklog.LoggerProvider, error) {
	if !cfg.OTELLogsEnabled {
		logger.Info("otel logs disabled")
		return nil, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp log exporter: %w", err)
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create logs resource: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	logger.Info("otel logs initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return lp, nil
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
