package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/health"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Store         repository.Store
	Redis         redis.UniversalClient
	Readiness     *health.ProbeRunner
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	store repository.Store,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *App {
	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		Store:         store,
		Redis:         redisClient,
		Readiness:     readiness,
	}
}

// Run serves until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server starting", "addr", a.Server.Addr, "store_driver", a.Config.StoreDriver)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			_ = a.Shutdown(context.Background())
			return err
		}
		return nil
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}
	return a.Shutdown(context.Background())
}

// Shutdown drains HTTP first, then flushes telemetry, then closes backends.
// Each stage has its own budget inside the overall shutdown timeout.
func (a *App) Shutdown(parent context.Context) error {
	totalCtx, totalCancel := context.WithTimeout(parent, orDefault(a.Config.ShutdownTimeout, 20*time.Second))
	defer totalCancel()

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(totalCtx, orDefault(a.Config.ShutdownHTTPDrainTimeout, 10*time.Second))
	if err := a.Server.Shutdown(httpCtx); err != nil {
		a.Logger.Error("failed to shutdown http server", "error", err)
		errs = append(errs, err)
	}
	httpCancel()

	if a.Observability != nil {
		obsCtx, obsCancel := context.WithTimeout(totalCtx, orDefault(a.Config.ShutdownObservabilityTimeout, 8*time.Second))
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			a.Logger.Error("failed to shutdown observability", "error", err)
			errs = append(errs, err)
		}
		obsCancel()
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("failed to close store", "error", err)
			errs = append(errs, err)
		}
	}
	if err := observability.CloseLogSinks(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
