package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type mockLimiter struct {
	allow bool
	retry time.Duration
	err   error
}

func (m mockLimiter) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{
		Allowed:    m.allow,
		RetryAfter: m.retry,
		Remaining:  0,
		ResetAt:    time.Now().Add(m.retry),
	}, m.err
}

type recordingLimiter struct {
	lastKey string
	allow   bool
}

func (r *recordingLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	r.lastKey = key
	return Decision{
		Allowed:   r.allow,
		Remaining: max(limit-1, 0),
		ResetAt:   time.Now().Add(window),
	}, nil
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestDistributedRateLimiterFailOpenOnBackendError(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{err: errors.New("redis down")}, 10, time.Minute, FailOpen, "api")
	h := rl.Middleware()(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected fail-open to allow request, got %d", rr.Code)
	}
}

func TestDistributedRateLimiterFailClosedOnBackendError(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{err: errors.New("redis down")}, 10, time.Minute, FailClosed, "auth")
	h := rl.Middleware()(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodPost, "/auth", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected fail-closed to reject request, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After of one window, got %q", got)
	}
}

func TestRateLimiterDeniedResponseUsesEnvelope(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{allow: false, retry: 1500 * time.Millisecond}, 5, time.Minute, FailClosed, "check_url")
	h := rl.Middleware()(http.HandlerFunc(okHandler))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/websites/check-url", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After rounded up to 2, got %q", got)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "5" || rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", rr.Header())
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Error.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestRateLimiterKeyFunctions(t *testing.T) {
	tests := []struct {
		name    string
		keyFn   KeyFunc
		user    *domain.User
		wantKey string
	}{
		{name: "ip default", keyFn: nil, wantKey: "api:ip:203.0.113.7"},
		{name: "user when authenticated", keyFn: KeyByUserOrIP, user: &domain.User{ID: 42}, wantKey: "api:user:42"},
		{name: "ip when anonymous", keyFn: KeyByUserOrIP, wantKey: "api:ip:203.0.113.7"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recordingLimiter{allow: true}
			rl := NewDistributedRateLimiter(rec, 10, time.Minute, FailClosed, "api").WithKeyFunc(tc.keyFn)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.7:5555"
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), tc.user))
			}
			rr := httptest.NewRecorder()
			rl.Middleware()(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if rec.lastKey != tc.wantKey {
				t.Fatalf("expected key %q, got %q", tc.wantKey, rec.lastKey)
			}
			if rr.Header().Get("X-RateLimit-Remaining") != "9" {
				t.Fatalf("expected remaining header 9, got %q", rr.Header().Get("X-RateLimit-Remaining"))
			}
		})
	}
}

func TestLocalTokenBucketLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalTokenBucketLimiter().(*localTokenBucketLimiter)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "k", 3, 3*time.Second)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
		if d.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d, err := l.Allow(ctx, "k", 3, 3*time.Second)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected fourth request to be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Second {
		t.Fatalf("expected retry-after within one refill interval, got %v", d.RetryAfter)
	}

	other, _ := l.Allow(ctx, "other", 3, 3*time.Second)
	if !other.Allowed {
		t.Fatal("expected independent bucket per key")
	}

	now = now.Add(time.Second)
	d, _ = l.Allow(ctx, "k", 3, 3*time.Second)
	if !d.Allowed {
		t.Fatal("expected a refilled token after one interval")
	}
}

func TestLocalTokenBucketLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalTokenBucketLimiter().(*localTokenBucketLimiter)
	l.now = func() time.Time { return now }
	l.cleanup = now

	_, _ = l.Allow(context.Background(), "idle", 1, time.Second)
	now = now.Add(5 * time.Second)
	_, _ = l.Allow(context.Background(), "fresh", 1, time.Second)

	if _, ok := l.buckets["idle"]; ok {
		t.Fatal("expected idle bucket to be evicted")
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Fatal("expected fresh bucket to be tracked")
	}
}

func TestLocalTokenBucketLimiterRejectsInvalidLimit(t *testing.T) {
	if _, err := NewLocalTokenBucketLimiter().Allow(context.Background(), "k", 0, time.Second); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
