package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// KeyFunc derives the bucket key for a request and names its kind for metrics.
type KeyFunc func(r *http.Request) (key string, keyType string)

// KeyByIP buckets requests by client address.
func KeyByIP(r *http.Request) (string, string) {
	return "ip:" + clientIPKey(r), "ip"
}

// KeyByUserOrIP buckets authenticated requests per user and falls back to
// the client address for anonymous traffic.
func KeyByUserOrIP(r *http.Request) (string, string) {
	if u, ok := UserFromContext(r.Context()); ok {
		return "user:" + strconv.FormatUint(uint64(u.ID), 10), "user"
	}
	return KeyByIP(r)
}

type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	mode    FailureMode
	scope   string
	keyFn   KeyFunc
}

// NewRateLimiter is the in-process limiter used when no shared backend is
// configured.
func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	return NewDistributedRateLimiter(NewLocalTokenBucketLimiter(), limit, window, FailClosed, scope)
}

func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		mode:    mode,
		scope:   scope,
		keyFn:   KeyByIP,
	}
}

// WithKeyFunc replaces the default per-IP bucketing.
func (rl *RateLimiter) WithKeyFunc(fn KeyFunc) *RateLimiter {
	if fn != nil {
		rl.keyFn = fn
	}
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, keyType := rl.keyFn(r)
			d, err := rl.limiter.Allow(r.Context(), rl.scope+":"+key, rl.limit, rl.window)
			if err != nil {
				if rl.mode == FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"mode", string(rl.mode),
						"error", err.Error(),
					)
					observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error_allowed", string(rl.mode), keyType)
					next.ServeHTTP(w, r)
					return
				}
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error_denied", string(rl.mode), keyType)
				observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, "backend_error", rl.window)
				w.Header().Set("Retry-After", retryAfterHeader(rl.window))
				response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests", nil)
				return
			}
			setRateLimitHeaders(w, rl.limit, d)
			if !d.Allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "denied", string(rl.mode), keyType)
				observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, "limit_exceeded", d.RetryAfter)
				w.Header().Set("Retry-After", retryAfterHeader(d.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allowed", string(rl.mode), keyType)
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	if !d.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localTokenBucketLimiter keeps one token bucket per key in process memory.
// A bucket holds limit tokens and refills at limit per window.
type localTokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cleanup time.Time
	now     func() time.Time
}

func NewLocalTokenBucketLimiter() Limiter {
	return &localTokenBucketLimiter{
		buckets: make(map[string]*bucket),
		cleanup: time.Now().Add(time.Minute),
		now:     time.Now,
	}
}

func (l *localTokenBucketLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{}, fmt.Errorf("rate limit must be positive")
	}
	if window <= 0 {
		window = time.Second
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > 2*window {
				delete(l.buckets, k)
			}
		}
		l.cleanup = now.Add(window)
	}

	every := window / time.Duration(limit)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	tokens := b.limiter.TokensAt(now)
	if tokens < 1 {
		delay := time.Duration((1 - tokens) * float64(every))
		if delay <= 0 {
			delay = time.Millisecond
		}
		return Decision{Allowed: false, RetryAfter: delay, ResetAt: now.Add(delay)}, nil
	}
	b.limiter.AllowN(now, 1)
	remaining := int(tokens) - 1
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(limit-remaining) * every),
	}, nil
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	return response.RetryAfterSeconds(d.Seconds())
}
