package common

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/tools/ui"
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func PrintCIResult(ok bool, title string, details []string, err error) {
	writeCIResult(os.Stdout, ok, title, details, err)
}

func writeCIResult(w io.Writer, ok bool, title string, details []string, err error) {
	result := CIResult{OK: ok, Title: title, Details: details}
	if err != nil {
		result.Error = err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// Runner executes one tool command either headless (CI) or through the
// interactive progress view.
type Runner struct {
	Tool    string
	CI      bool
	Timeout time.Duration
}

// Run executes fn and records the outcome under the tool command metrics.
// In CI mode the result is printed as JSON.
func (r Runner) Run(command string, fn func(context.Context) ([]string, error)) ([]string, error) {
	start := time.Now()
	var (
		details []string
		err     error
	)
	if r.CI {
		ctx := context.Background()
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
		details, err = fn(ctx)
		PrintCIResult(err == nil, r.Tool+" "+command, details, err)
	} else {
		details, err = ui.Run(r.Tool+" "+command, r.Timeout, fn)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordToolCommandRun(context.Background(), r.Tool, command, status)
	observability.RecordToolCommandDuration(context.Background(), r.Tool, command, status, time.Since(start))
	return details, err
}
