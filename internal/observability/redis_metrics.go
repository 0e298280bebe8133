package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisInstrumentationOnce sync.Once

// InstrumentRedisClient installs command and pool metrics on client once per process.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	redisInstrumentationOnce.Do(func() {
		hook, err := newRedisMetricsHook(otel.Meter(meterName), client.PoolStats)
		if err != nil {
			logger.Warn("redis instrumentation disabled", "error", err)
			return
		}
		client.AddHook(hook)
		logger.Info("redis instrumentation enabled")
	})
}

type redisMetricsHook struct {
	cmdTotal   metric.Int64Counter
	cmdErrors  metric.Int64Counter
	cmdLatency metric.Float64Histogram
	keyspace   metric.Int64Counter
}

func newRedisMetricsHook(meter metric.Meter, poolStats func() *redis.PoolStats) (*redisMetricsHook, error) {
	h := &redisMetricsHook{}
	var err error
	if h.cmdTotal, err = meter.Int64Counter("redis.command.total", metric.WithDescription("Redis commands executed")); err != nil {
		return nil, err
	}
	if h.cmdErrors, err = meter.Int64Counter("redis.command.errors", metric.WithDescription("Redis command errors")); err != nil {
		return nil, err
	}
	if h.cmdLatency, err = meter.Float64Histogram("redis.command.duration", metric.WithUnit("s"), metric.WithDescription("Redis command latency")); err != nil {
		return nil, err
	}
	if h.keyspace, err = meter.Int64Counter("redis.keyspace.lookups", metric.WithDescription("Redis read lookups by hit or miss")); err != nil {
		return nil, err
	}

	idle, err := meter.Int64ObservableGauge("redis.pool.idle_connections")
	if err != nil {
		return nil, err
	}
	total, err := meter.Int64ObservableGauge("redis.pool.total_connections")
	if err != nil {
		return nil, err
	}
	timeouts, err := meter.Int64ObservableCounter("redis.pool.timeouts")
	if err != nil {
		return nil, err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := poolStats()
		if stats == nil {
			return nil
		}
		o.ObserveInt64(idle, int64(stats.IdleConns))
		o.ObserveInt64(total, int64(stats.TotalConns))
		o.ObserveInt64(timeouts, int64(stats.Timeouts))
		return nil
	}, idle, total, timeouts)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cmdErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("command", "dial"), attribute.String("error_class", "dial")))
		}
		return conn, err
	}
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.record(ctx, cmd, time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)
		for _, cmd := range cmds {
			h.record(ctx, cmd, elapsed)
		}
		return err
	}
}

func (h *redisMetricsHook) record(ctx context.Context, cmd redis.Cmder, elapsed time.Duration) {
	name := strings.ToLower(cmd.Name())
	err := cmd.Err()
	status := "ok"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("command", name), attribute.String("error_class", redisErrorClass(err))))
	}
	attrs := metric.WithAttributes(attribute.String("command", name), attribute.String("status", status))
	h.cmdTotal.Add(ctx, 1, attrs)
	h.cmdLatency.Record(ctx, elapsed.Seconds(), attrs)

	if lookup := keyspaceOutcome(name, cmd, err); lookup != "" {
		h.keyspace.Add(ctx, 1, metric.WithAttributes(attribute.String("command", name), attribute.String("outcome", lookup)))
	}
}

// keyspaceOutcome classifies read commands as hit or miss; other commands yield "".
func keyspaceOutcome(name string, cmd redis.Cmder, err error) string {
	switch name {
	case "get", "hget", "getdel":
		if errors.Is(err, redis.Nil) {
			return "miss"
		}
		if err == nil {
			return "hit"
		}
	case "exists":
		if c, ok := cmd.(*redis.IntCmd); ok && err == nil {
			if c.Val() > 0 {
				return "hit"
			}
			return "miss"
		}
	}
	return ""
}

func redisErrorClass(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, redis.ErrClosed):
		return "closed"
	case strings.HasPrefix(err.Error(), "NOSCRIPT"), strings.HasPrefix(err.Error(), "ERR"):
		return "server"
	default:
		return "other"
	}
}
