package loadgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sitedeck/internal/tools/common"
)

var profileNames = []string{"mixed", "browse", "auth", "error-heavy"}

type options struct {
	baseURL     string
	profile     string
	duration    time.Duration
	rps         int
	concurrency int
	seed        int64
	ci          bool
}

func (o *options) validate() error {
	if requestsForProfile(o.profile) == nil {
		return fmt.Errorf("unknown profile %q", o.profile)
	}
	if o.rps <= 0 || o.concurrency <= 0 {
		return errors.New("--rps and --concurrency must be positive")
	}
	if o.duration <= 0 {
		return errors.New("--duration must be positive")
	}
	return nil
}

func (o *options) config() Config {
	return Config{
		BaseURL:     o.baseURL,
		Profile:     o.profile,
		Duration:    o.duration,
		RPS:         o.rps,
		Concurrency: o.concurrency,
		Seed:        o.seed,
	}
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "loadgen", Short: "Replay directory browse, auth and error traffic against a running API"}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	flags.StringVar(&opts.profile, "profile", "mixed", "traffic profile, see `loadgen profiles`")
	flags.DurationVar(&opts.duration, "duration", 15*time.Second, "how long to send traffic")
	flags.IntVar(&opts.rps, "rps", 20, "target requests per second")
	flags.IntVar(&opts.concurrency, "concurrency", 6, "in-flight request workers")
	flags.Int64Var(&opts.seed, "seed", 42, "seed for the request order")
	flags.BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts), newProfilesCommand())
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Send traffic for the configured duration and summarize status classes",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := common.Runner{Tool: "loadgen", CI: opts.ci, Timeout: opts.duration + 15*time.Second}
			_, err := runner.Run("run", func(ctx context.Context) ([]string, error) {
				res, err := Run(ctx, opts.config())
				if err != nil {
					return nil, err
				}
				return summarize(res), nil
			})
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func newProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List traffic profiles and the endpoints they hit",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, name := range profileNames {
				fmt.Fprintf(out, "%s:\n", name)
				for _, r := range requestsForProfile(name) {
					fmt.Fprintf(out, "  %s %s\n", r.method, r.path)
				}
			}
		},
	}
}

func summarize(res Result) []string {
	lines := []string{
		fmt.Sprintf("total_requests=%d", res.TotalRequests),
		fmt.Sprintf("failures=%d", res.Failures),
		fmt.Sprintf("status_2xx=%d", res.Status2xx),
		fmt.Sprintf("status_4xx=%d (rate_limited=%d)", res.Status4xx, res.Status429),
		fmt.Sprintf("status_5xx=%d", res.Status5xx),
	}
	if secs := res.Elapsed.Seconds(); secs > 0 {
		lines = append(lines, fmt.Sprintf("achieved_rps=%.1f", float64(res.TotalRequests)/secs))
	}
	return lines
}
