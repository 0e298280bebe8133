package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type BulkItemResult struct {
	ID      uint   `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type BulkResult struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}

// BulkRunner applies a single-item operation to many ids. Items are
// independent: one failure neither cancels nor rolls back the others.
type BulkRunner struct {
	MaxItems    int
	Concurrency int
}

func (b BulkRunner) Run(ctx context.Context, operation string, ids []uint, fn func(context.Context, uint) error) (*BulkResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, invalid("ids", "must contain at least one id")
	}
	if b.MaxItems > 0 && len(ids) > b.MaxItems {
		return nil, invalid("ids", "must contain at most %d ids", b.MaxItems)
	}

	ctx, span := observability.StartSpan(ctx, "bulk."+operation, attribute.Int("bulk.items", len(ids)))
	start := time.Now()
	results := make([]BulkItemResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Concurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			results[i] = BulkItemResult{ID: id, Success: true}
			if err := fn(gctx, id); err != nil {
				results[i] = BulkItemResult{ID: id, Error: PublicMessage(err)}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &BulkResult{Total: len(ids), Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	observability.RecordBulkOperation(ctx, operation, out.Succeeded, out.Failed, time.Since(start))
	span.SetAttributes(attribute.Int("bulk.failed", out.Failed))
	observability.EndSpan(span, nil)
	return out, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PublicMessage renders err for clients without leaking internals.
func PublicMessage(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, ErrForbidden):
		return err.Error()
	case errors.Is(err, repository.ErrCategoryInUse):
		return "category is in use by websites"
	case errors.Is(err, repository.ErrDuplicate):
		return "already exists"
	case repository.IsNotFound(err), errors.Is(err, ErrNotFound):
		return "not found"
	default:
		return "internal error"
	}
}
