// Package aggregate implements the fan-out/fan-in aggregation pipeline:
// category executors that run provider adapters concurrently and merge
// their partial results deterministically, and the orchestrator that
// coordinates categories, caching, persistence, and progress events.
package aggregate

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/provider"
)

// Executor runs one category's adapters and merges their outcomes. The
// adapter slice is already in precedence order (see Policy.Order).
type Executor struct {
	category model.Category
	adapters []provider.Adapter
}

// NewExecutor creates an executor for one category.
func NewExecutor(cat model.Category, adapters []provider.Adapter) *Executor {
	return &Executor{category: cat, adapters: adapters}
}

// Category returns the category this executor serves.
func (e *Executor) Category() model.Category {
	return e.category
}

// CategoryOutcome is the settled result of one category pass. Err is set
// only when every adapter failed; partial failure is silent.
type CategoryOutcome struct {
	Category model.Category
	Payload  json.RawMessage
	Sources  []string
	Err      error
}

// Run launches every adapter concurrently, waits for all of them to
// settle, and merges the successful outcomes in precedence order. A slow
// or failing adapter never blocks or corrupts the others; merge order is
// fixed at configuration time, so the result is deterministic regardless
// of completion timing.
func (e *Executor) Run(ctx context.Context, subj model.Subject) CategoryOutcome {
	outcomes := make([]provider.Outcome, len(e.adapters))

	var wg sync.WaitGroup
	for i, a := range e.adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = provider.Run(ctx, a, subj)
		}()
	}
	wg.Wait()

	out := CategoryOutcome{Category: e.category}

	anyOK := false
	var reasons []string
	for _, o := range outcomes {
		if o.OK {
			anyOK = true
		} else {
			reasons = append(reasons, o.Source+": "+o.Reason)
		}
	}

	payload, sources := Merge(e.category, outcomes)
	raw, err := json.Marshal(payload)
	if err != nil {
		return CategoryOutcome{
			Category: e.category,
			Err:      eris.Wrapf(err, "aggregate: marshal %s payload", e.category),
		}
	}
	out.Payload = raw
	out.Sources = sources

	// "Nothing found" and "could not even try" are different states:
	// only total failure surfaces as a category error.
	if !anyOK && len(e.adapters) > 0 {
		out.Err = eris.Errorf("aggregate: all %s providers failed: %s",
			e.category, strings.Join(reasons, "; "))
	}

	return out
}

// deadlineReason rewrites a category error for the failed-by-timeout case
// so callers can tell an expired pass from provider failures.
func deadlineReason(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "aggregation deadline exceeded"
	}
	return err.Error()
}

// logSettled records one category settlement.
func logSettled(subj model.Subject, out CategoryOutcome, started time.Time) {
	if out.Err != nil {
		zap.L().Warn("aggregate: category failed",
			zap.String("subject", subj.Domain),
			zap.String("category", string(out.Category)),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(out.Err),
		)
		return
	}
	zap.L().Info("aggregate: category complete",
		zap.String("subject", subj.Domain),
		zap.String("category", string(out.Category)),
		zap.Strings("sources", out.Sources),
		zap.Duration("elapsed", time.Since(started)),
	)
}
