package loadgen

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRunReplaysProfileAgainstServer(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method+" "+r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/auth/login":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/api/v1/auth/me":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	res, err := Run(context.Background(), Config{
		BaseURL:     srv.URL + "/",
		Profile:     "auth",
		Duration:    600 * time.Millisecond,
		RPS:         100,
		Concurrency: 3,
		Seed:        7,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TotalRequests == 0 {
		t.Fatal("expected requests to be sent")
	}
	if res.Status5xx != 0 {
		t.Fatalf("unexpected 5xx: %+v", res)
	}
	if res.Status2xx+res.Status4xx != res.TotalRequests {
		t.Fatalf("status classes do not add up: %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	for key := range seen {
		if !strings.HasPrefix(key, "POST /api/v1/auth/") && key != "GET /api/v1/auth/me" {
			t.Fatalf("request outside auth profile: %s", key)
		}
	}
}

func TestRunRejectsUnknownProfile(t *testing.T) {
	if _, err := Run(context.Background(), Config{Profile: "chaos"}); err == nil {
		t.Fatal("expected unknown profile error")
	}
}

func TestRequestsForProfile(t *testing.T) {
	if got := requestsForProfile(""); len(got) != len(browseRequests)+len(authRequests)+1 {
		t.Fatalf("unexpected mixed profile size: %d", len(got))
	}
	for _, r := range requestsForProfile("browse") {
		if r.method != http.MethodGet {
			t.Fatalf("browse profile must only read: %+v", r)
		}
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 429: "4xx", 503: "5xx", 0: "other"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	lines := summarize(Result{TotalRequests: 3, Status4xx: 2, Status429: 1})
	if lines[3] != "status_4xx=2 (rate_limited=1)" {
		t.Fatalf("unexpected summary: %v", lines)
	}
}

func TestSummarizeReportsAchievedRate(t *testing.T) {
	lines := summarize(Result{TotalRequests: 20, Elapsed: 2 * time.Second})
	if last := lines[len(lines)-1]; last != "achieved_rps=10.0" {
		t.Fatalf("unexpected rate line: %v", lines)
	}
	if lines := summarize(Result{}); len(lines) != 5 {
		t.Fatalf("expected no rate line without elapsed time: %v", lines)
	}
}

func TestOptionsValidate(t *testing.T) {
	ok := options{profile: "browse", rps: 5, concurrency: 2, duration: time.Second}
	if err := ok.validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}
	for name, mutate := range map[string]func(*options){
		"profile":     func(o *options) { o.profile = "spike" },
		"rps":         func(o *options) { o.rps = 0 },
		"concurrency": func(o *options) { o.concurrency = -1 },
		"duration":    func(o *options) { o.duration = 0 },
	} {
		o := ok
		mutate(&o)
		if err := o.validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestProfilesCommandListsEndpoints(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"profiles"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"error-heavy:", "POST /api/v1/auth/login", "GET /api/v1/websites"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}
