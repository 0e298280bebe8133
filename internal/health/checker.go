package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/sitedeck/internal/observability"
)

type CheckResult struct {
	Name       string  `json:"name"`
	Healthy    bool    `json:"healthy"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner evaluates readiness checks, each under its own timeout.
type ProbeRunner struct {
	checkers    []Checker
	timeout     time.Duration
	gracePeriod time.Duration
	startedAt   time.Time
}

// NewProbeRunner skips nil checkers so optional dependencies can be passed
// through unconditionally.
func NewProbeRunner(timeout, gracePeriod time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	active := make([]Checker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			active = append(active, c)
		}
	}
	return &ProbeRunner{
		checkers:    active,
		timeout:     timeout,
		gracePeriod: gracePeriod,
		startedAt:   time.Now(),
	}
}

// Ready runs every checker concurrently; results keep registration order.
func (r *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	if r == nil {
		return true, nil
	}
	if r.gracePeriod > 0 && time.Since(r.startedAt) < r.gracePeriod {
		return false, []CheckResult{{Name: "startup_grace", Healthy: false, Error: "startup grace period active"}}
	}
	results := make([]CheckResult, len(r.checkers))
	var g errgroup.Group
	for i, c := range r.checkers {
		g.Go(func() error {
			results[i] = r.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	allHealthy := true
	for _, res := range results {
		allHealthy = allHealthy && res.Healthy
	}
	return allHealthy, results
}

func (r *ProbeRunner) run(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	res := c.Check(checkCtx)
	elapsed := time.Since(start)
	res.DurationMS = float64(elapsed.Microseconds()) / 1000.0

	outcome := "healthy"
	if !res.Healthy {
		outcome = "unhealthy"
	}
	observability.RecordHealthCheckResult(ctx, res.Name, outcome)
	observability.RecordHealthCheckDuration(ctx, res.Name, elapsed)
	return res
}
