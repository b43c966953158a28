// Package engine wires the pure scoring, valuation, drift, signal and
// priority packages to persistence. It is the only place that decides which
// weights and benchmarks an assessment uses.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/benchmark"
	"github.com/sells-group/readiness-engine/internal/input"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/store"
	"github.com/sells-group/readiness-engine/internal/valuation"
)

// Options configures an Engine. Zero values fall back to sensible defaults.
type Options struct {
	// GlobalWeights is the config-level global override, used when the
	// store has no global row.
	GlobalWeights     scoring.Weights
	MaxDisplaySignals int
	BatchConcurrency  int
	DLQMaxRetries     int
	Retry             resilience.RetryConfig
}

// Engine runs assessments and drift periods against a store.
type Engine struct {
	store      store.Store
	benchmarks benchmark.Source
	opts       Options
	now        func() time.Time
}

// New returns an Engine. A nil benchmark source uses the built-in table.
func New(st store.Store, benchmarks benchmark.Source, opts Options) *Engine {
	if benchmarks == nil {
		benchmarks = benchmark.DefaultTable()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 5
	}
	if opts.DLQMaxRetries <= 0 {
		opts.DLQMaxRetries = 3
	}
	return &Engine{
		store:      st,
		benchmarks: benchmarks,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the underlying store for callers that only read.
func (e *Engine) Store() store.Store { return e.store }

// ResolveWeights returns the active weight set for a company. A company
// override wins, then the stored global override, then the configured global
// override, then the defaults. Exactly one set is used.
func (e *Engine) ResolveWeights(ctx context.Context, companyID string) (scoring.Weights, error) {
	company, err := e.store.GetWeights(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: weights for %s", companyID)
	}
	global, err := e.store.GetWeights(ctx, store.GlobalScope)
	if err != nil {
		return nil, eris.Wrap(err, "engine: global weights")
	}
	if len(global) == 0 {
		global = e.opts.GlobalWeights
	}
	return scoring.ResolveWeights(company, global), nil
}

// resolveBenchmark picks the multiples and average margin for a company.
// Explicit values on the input win over the NAICS lookup.
func (e *Engine) resolveBenchmark(ctx context.Context, c input.Company) (valuation.IndustryBenchmark, error) {
	if c.Multiples != nil && c.IndustryAvgMargin != nil {
		return valuation.IndustryBenchmark{
			NAICS:     c.NAICS,
			Multiples: *c.Multiples,
			AvgMargin: *c.IndustryAvgMargin,
			Source:    "input",
		}, nil
	}

	b, err := e.benchmarks.Lookup(ctx, c.NAICS)
	switch {
	case err == nil:
	case errors.Is(err, benchmark.ErrNotFound), errors.Is(err, benchmark.ErrInvalidNAICS):
		if c.Multiples == nil {
			return b, eris.Wrapf(valuation.ErrMissingMultiples, "engine: company %s naics %q", c.ID, c.NAICS)
		}
		zap.L().Warn("engine: no benchmark margin, using zero",
			zap.String("company_id", c.ID),
			zap.String("naics", c.NAICS),
		)
		b = valuation.IndustryBenchmark{NAICS: c.NAICS, AvgMargin: decimal.Zero}
	default:
		return b, eris.Wrapf(err, "engine: benchmark for %s", c.ID)
	}

	if c.Multiples != nil {
		b.Multiples = *c.Multiples
		b.Source = "input"
	}
	if c.IndustryAvgMargin != nil {
		b.AvgMargin = *c.IndustryAvgMargin
	}
	return b, nil
}

func (e *Engine) retryConfig(operation string) resilience.RetryConfig {
	cfg := e.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("store", operation)
	}
	return cfg
}
