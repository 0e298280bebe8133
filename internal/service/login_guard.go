package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

// AttemptScope separates counters for credential flows that are throttled
// independently.
type AttemptScope string

const (
	AttemptScopeLogin  AttemptScope = "login"
	AttemptScopeForgot AttemptScope = "forgot"
	AttemptScopeChange AttemptScope = "change"
)

// AttemptPolicy describes the progressive cooldown applied after repeated
// failures. The first FreeAttempts failures inside ResetWindow cost nothing;
// each further failure waits BaseDelay*Multiplier^n, capped at MaxDelay.
type AttemptPolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p AttemptPolicy) normalized() AttemptPolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 30 * time.Minute
	}
	return p
}

// delayAfter is the cooldown earned by the failures-th consecutive failure.
func (p AttemptPolicy) delayAfter(failures int) time.Duration {
	if failures <= p.FreeAttempts {
		return 0
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(failures-p.FreeAttempts-1)))
	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}

// AttemptGuard throttles credential attempts per subject (normally an email)
// and per client IP. The larger of the two cooldowns wins.
type AttemptGuard interface {
	Wait(ctx context.Context, scope AttemptScope, subject, ip string) (time.Duration, error)
	Fail(ctx context.Context, scope AttemptScope, subject, ip string) (time.Duration, error)
	Clear(ctx context.Context, scope AttemptScope, subject, ip string) error
}

type NoopAttemptGuard struct{}

func NewNoopAttemptGuard() *NoopAttemptGuard { return &NoopAttemptGuard{} }

func (NoopAttemptGuard) Wait(context.Context, AttemptScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopAttemptGuard) Fail(context.Context, AttemptScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopAttemptGuard) Clear(context.Context, AttemptScope, string, string) error { return nil }

type attemptKey struct {
	scope AttemptScope
	dim   string
	value string
}

func attemptKeys(scope AttemptScope, subject, ip string) [2]attemptKey {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		subject = "anonymous"
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return [2]attemptKey{{scope, "subject", subject}, {scope, "ip", ip}}
}

type attemptState struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

type MemoryAttemptGuard struct {
	policy AttemptPolicy
	now    func() time.Time

	mu    sync.Mutex
	state map[attemptKey]attemptState
}

func NewMemoryAttemptGuard(policy AttemptPolicy) *MemoryAttemptGuard {
	return &MemoryAttemptGuard{
		policy: policy.normalized(),
		now:    func() time.Time { return time.Now().UTC() },
		state:  make(map[attemptKey]attemptState),
	}
}

func (g *MemoryAttemptGuard) Wait(_ context.Context, scope AttemptScope, subject, ip string) (time.Duration, error) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	var wait time.Duration
	for _, k := range attemptKeys(scope, subject, ip) {
		st, ok := g.state[k]
		if !ok {
			continue
		}
		if now.Sub(st.lastFailure) > g.policy.ResetWindow {
			delete(g.state, k)
			continue
		}
		if remaining := st.cooldownUntil.Sub(now); remaining > wait {
			wait = remaining
		}
	}
	return wait, nil
}

func (g *MemoryAttemptGuard) Fail(_ context.Context, scope AttemptScope, subject, ip string) (time.Duration, error) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	var wait time.Duration
	for _, k := range attemptKeys(scope, subject, ip) {
		st := g.state[k]
		if st.lastFailure.IsZero() || now.Sub(st.lastFailure) > g.policy.ResetWindow {
			st.failures = 0
		}
		st.failures++
		st.lastFailure = now
		d := g.policy.delayAfter(st.failures)
		st.cooldownUntil = now.Add(d)
		g.state[k] = st
		wait = max(wait, d)
	}
	return wait, nil
}

func (g *MemoryAttemptGuard) Clear(_ context.Context, scope AttemptScope, subject, ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range attemptKeys(scope, subject, ip) {
		delete(g.state, k)
	}
	return nil
}
