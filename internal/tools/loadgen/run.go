package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sandeepkv93/sitedeck/internal/observability"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status4xx     int64
	Status429     int64
	Status5xx     int64
	Elapsed       time.Duration
}

type request struct {
	method string
	path   string
	body   string
}

var (
	browseRequests = []request{
		{method: http.MethodGet, path: "/api/v1/websites"},
		{method: http.MethodGet, path: "/api/v1/websites?page=2&page_size=10&sort_by=title&sort_order=asc"},
		{method: http.MethodGet, path: "/api/v1/websites?q=go"},
		{method: http.MethodGet, path: "/api/v1/categories?with_usage=true"},
		{method: http.MethodGet, path: "/api/v1/tags"},
		{method: http.MethodGet, path: "/api/v1/settings"},
		{method: http.MethodGet, path: "/api/v1/websites/check-url?url=https://go.dev"},
	}
	authRequests = []request{
		{method: http.MethodPost, path: "/api/v1/auth/login", body: `{"email":"loadgen@sitedeck.test","password":"not-the-password"}`},
		{method: http.MethodGet, path: "/api/v1/auth/me"},
		{method: http.MethodPost, path: "/api/v1/auth/password/forgot", body: `{"email":"loadgen@sitedeck.test"}`},
	}
	errorRequests = []request{
		{method: http.MethodGet, path: "/api/v1/websites/999999999"},
		{method: http.MethodGet, path: "/api/v1/websites/check-url"},
		{method: http.MethodGet, path: "/api/v1/favorites"},
		{method: http.MethodPost, path: "/api/v1/websites", body: `{"title":""}`},
	}
)

func requestsForProfile(profile string) []request {
	switch strings.ToLower(profile) {
	case "", "mixed":
		out := append([]request{}, browseRequests...)
		out = append(out, authRequests...)
		return append(out, errorRequests[0])
	case "browse":
		return browseRequests
	case "auth":
		return authRequests
	case "error-heavy":
		return errorRequests
	default:
		return nil
	}
}

// Run replays the profile's requests in a seeded random order at cfg.RPS
// until cfg.Duration elapses.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	requests := requestsForProfile(cfg.Profile)
	if len(requests) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}
	profile := strings.ToLower(cfg.Profile)
	if profile == "" {
		profile = "mixed"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	client := &http.Client{Timeout: 5 * time.Second}
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 0x5173dec))

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	started := time.Now()

	var total, failures, s2xx, s4xx, s429, s5xx atomic.Int64
	jobs := make(chan request, cfg.Concurrency*2)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for job := range jobs {
				status, err := send(gctx, client, baseURL, job)
				if err != nil {
					if gctx.Err() == nil {
						failures.Add(1)
					}
					continue
				}
				total.Add(1)
				class := statusClass(status)
				switch {
				case status == http.StatusTooManyRequests:
					s429.Add(1)
					s4xx.Add(1)
				case class == "2xx":
					s2xx.Add(1)
				case class == "4xx":
					s4xx.Add(1)
				case class == "5xx":
					s5xx.Add(1)
				}
				observability.RecordLoadgenRequest(gctx, class, profile)
			}
			return nil
		})
	}

	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		job := requests[rng.IntN(len(requests))]
		select {
		case jobs <- job:
		case <-ctx.Done():
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return Result{}, err
	}
	return Result{
		TotalRequests: total.Load(),
		Failures:      failures.Load(),
		Status2xx:     s2xx.Load(),
		Status4xx:     s4xx.Load(),
		Status429:     s429.Load(),
		Status5xx:     s5xx.Load(),
		Elapsed:       time.Since(started),
	}, nil
}

func send(ctx context.Context, client *http.Client, baseURL string, job request) (int, error) {
	req, err := http.NewRequestWithContext(ctx, job.method, baseURL+job.path, strings.NewReader(job.body))
	if err != nil {
		return 0, err
	}
	if job.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
