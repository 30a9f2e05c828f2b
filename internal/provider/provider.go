// Package provider contains the adapters for external data sources. Each
// adapter turns one vendor API into a typed outcome for one category;
// failures never cross the adapter boundary as errors.
package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
)

// ReasonNotConfigured marks an adapter that self-disabled because its
// credential is absent. This is expected steady state, not an alert.
const ReasonNotConfigured = "not configured"

// Outcome is the transient result of one adapter invocation: either data
// (a partial category payload) or a human-readable failure reason. Every
// invocation yields exactly one Outcome.
type Outcome struct {
	Source string
	OK     bool
	Data   any
	Reason string
}

// Success builds an ok outcome.
func Success(source string, data any) Outcome {
	return Outcome{Source: source, OK: true, Data: data}
}

// Failure builds a failed outcome.
func Failure(source, reason string) Outcome {
	return Outcome{Source: source, OK: false, Reason: reason}
}

// Adapter integrates one external data source. Invoke must return an
// Outcome for every call; it never panics past Run and never persists
// anything itself.
type Adapter interface {
	Name() string
	Timeout() time.Duration
	Invoke(ctx context.Context, subj model.Subject) Outcome
}

// Run invokes an adapter with its timeout applied and panics converted to
// failed outcomes, so a misbehaving adapter can never corrupt or stall
// the category that launched it.
func Run(ctx context.Context, a Adapter, subj model.Subject) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("provider: adapter panic",
				zap.String("adapter", a.Name()),
				zap.String("subject", subj.Domain),
				zap.Any("panic", r),
			)
			out = Failure(a.Name(), fmt.Sprintf("adapter panic: %v", r))
		}
	}()

	if t := a.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	start := time.Now()
	out = a.Invoke(ctx, subj)
	out.Source = a.Name()

	if out.OK {
		zap.L().Debug("provider: adapter succeeded",
			zap.String("adapter", a.Name()),
			zap.String("subject", subj.Domain),
			zap.Duration("elapsed", time.Since(start)),
		)
	} else if out.Reason != ReasonNotConfigured {
		zap.L().Warn("provider: adapter failed",
			zap.String("adapter", a.Name()),
			zap.String("subject", subj.Domain),
			zap.String("reason", out.Reason),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return out
}
