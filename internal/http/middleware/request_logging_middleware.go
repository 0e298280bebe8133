package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type requestMetaKey struct{}

// requestMeta is filled in by inner middleware so the access log can report
// values resolved after the logger wrapped the request.
type requestMeta struct {
	userID uint
}

func noteUser(ctx context.Context, id uint) {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		m.userID = id
	}
}

// StructuredRequestLogger emits one access log line per request through slog,
// so the line carries trace ids from the OTel-aware handler.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		meta := &requestMeta{}
		r = r.WithContext(context.WithValue(r.Context(), requestMetaKey{}, meta))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		routePattern := ""
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			routePattern = routeCtx.RoutePattern()
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"route", routePattern,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"client_ip", clientIPKey(r),
			"user_agent", r.UserAgent(),
		}
		if meta.userID != 0 {
			attrs = append(attrs, "user_id", meta.userID)
		}

		slog.Log(r.Context(), accessLogLevel(r.URL.Path, status), "http.request", attrs...)
	})
}

// accessLogLevel keeps orchestrator probes out of info-level output unless
// they fail.
func accessLogLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/") && status < http.StatusBadRequest:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
