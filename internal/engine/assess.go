package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/readiness-engine/internal/input"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/priority"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/valuation"
)

// Assessment is the result of scoring and valuing one company.
type Assessment struct {
	Snapshot       *model.ValuationSnapshot    `json:"snapshot"`
	Benchmark      valuation.IndustryBenchmark `json:"benchmark"`
	EBITDA         valuation.EBITDAResult      `json:"ebitda"`
	CategoryScores []model.CategoryScore       `json:"category_scores"`
	Weights        scoring.Weights             `json:"weights"`
	Tasks          []priority.RankedTask       `json:"tasks"`
}

// Assess scores a company, values it with both models, decomposes the value
// gap and appends the resulting snapshot. Input signals are ingested and the
// input tasks plus one improvement task per under-scoring category come back
// ranked by the priority matrix.
func (e *Engine) Assess(ctx context.Context, c input.Company, reason model.SnapshotReason) (*Assessment, error) {
	if reason == "" {
		reason = model.ReasonAssessmentCompleted
	}
	if !reason.Valid() {
		return nil, eris.Wrapf(model.ErrUnknownReason, "engine: assess %s: %q", c.ID, reason)
	}
	log := zap.L().With(zap.String("company_id", c.ID))

	if w := c.CompanyWeights(); w != nil {
		if err := resilience.Do(ctx, e.retryConfig("set_weights"), func(ctx context.Context) error {
			return e.store.SetWeights(ctx, c.ID, w)
		}); err != nil {
			return nil, eris.Wrapf(err, "engine: store weights for %s", c.ID)
		}
	}
	weights, err := e.ResolveWeights(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	bench, err := e.resolveBenchmark(ctx, c)
	if err != nil {
		return nil, err
	}

	scored, err := scoring.ScoreCategories(c.Responses, weights)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: score %s", c.ID)
	}
	core, err := scoring.CoreScore(c.CoreFactors)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: core score %s", c.ID)
	}
	scoreMap := scored.ScoreMap()

	ebitda := valuation.NormalizeEBITDA(c.Financials, bench.AvgMargin)

	snap := &model.ValuationSnapshot{
		CompanyID:           c.ID,
		Reason:              reason,
		CreatedAt:           e.now(),
		AdjustedEBITDA:      ebitda.AdjustedEBITDA,
		EBITDAEstimated:     ebitda.Estimated,
		EBITDAAdjustments:   ebitda.Adjustments,
		IndustryMultipleLow: bench.Multiples.Low,
		IndustryMultipleHi:  bench.Multiples.High,
		CoreScore:           core,
		BRIScore:            scored.BRI,
		CategoryScores:      scoreMap,
	}

	// No readiness answers, no valuation.
	addressable := decimal.Zero
	if scored.BRI != nil {
		if err := e.value(c, ebitda, bench, core, *scored.BRI, scoreMap, snap); err != nil {
			return nil, err
		}
		addressable = snap.Gap.Addressable
	} else {
		log.Warn("engine: bri unavailable, snapshot stored without valuation")
	}

	if err := resilience.Do(ctx, e.retryConfig("append_snapshot"), func(ctx context.Context) error {
		return e.store.AppendSnapshot(ctx, snap)
	}); err != nil {
		return nil, eris.Wrapf(err, "engine: append snapshot %s", c.ID)
	}

	if len(c.Signals) > 0 {
		if err := resilience.Do(ctx, e.retryConfig("append_signals"), func(ctx context.Context) error {
			return e.store.AppendSignals(ctx, c.Signals)
		}); err != nil {
			return nil, eris.Wrapf(err, "engine: append signals %s", c.ID)
		}
	}

	generated, err := CategoryTasks(c.ID, scoreMap, weights, addressable)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: category tasks %s", c.ID)
	}
	ranked, err := priority.SortTasks(append(generated, c.Tasks...))
	if err != nil {
		return nil, eris.Wrapf(err, "engine: rank tasks %s", c.ID)
	}

	fields := []zap.Field{
		zap.String("snapshot_id", snap.ID),
		zap.String("naics_used", bench.NAICS),
		zap.Float64("core_score", core),
		zap.Int("tasks", len(ranked)),
	}
	if snap.Valued() {
		fields = append(fields,
			zap.Float64("bri", *scored.BRI),
			zap.String("ev_mid", snap.V2.EVMid.StringFixed(2)),
			zap.String("gap_total", snap.Gap.Total.StringFixed(2)),
		)
	}
	log.Info("engine: assessment complete", fields...)

	return &Assessment{
		Snapshot:       snap,
		Benchmark:      bench,
		EBITDA:         ebitda,
		CategoryScores: scored.CategoryScores,
		Weights:        weights,
		Tasks:          ranked,
	}, nil
}

// value runs both valuation models and the gap decomposition onto snap.
func (e *Engine) value(
	c input.Company,
	ebitda valuation.EBITDAResult,
	bench valuation.IndustryBenchmark,
	core, bri float64,
	scores map[model.Category]float64,
	snap *model.ValuationSnapshot,
) error {
	v1, err := valuation.CalculateValuation(ebitda.AdjustedEBITDA, bench.Multiples, core, bri)
	if err != nil {
		return eris.Wrapf(err, "engine: v1 valuation %s", c.ID)
	}

	quality, err := valuation.QualityAdjustments(valuation.QualityInputs{
		SizeCategory:      ebitda.SizeCategory,
		Revenue:           c.Financials.Revenue,
		AdjustedEBITDA:    ebitda.AdjustedEBITDA,
		IndustryAvgMargin: bench.AvgMargin,
		CategoryScores:    scores,
	})
	if err != nil {
		return eris.Wrapf(err, "engine: %s", c.ID)
	}
	risks, err := valuation.RiskDiscounts(valuation.RiskInputs{
		SizeCategory:     ebitda.SizeCategory,
		CategoryScores:   scores,
		TopCustomerShare: c.TopCustomerShare,
		DLOMRate:         c.DLOMRate,
	})
	if err != nil {
		return eris.Wrapf(err, "engine: %s", c.ID)
	}

	v2, err := valuation.CalculateValuationV2(
		ebitda.AdjustedEBITDA,
		bench.Multiples,
		quality,
		risks,
		valuation.RiskMultiplier(risks),
		valuation.Scores{BusinessQuality: valuation.BusinessQualityScore(scores), DealReadiness: bri},
	)
	if err != nil {
		return eris.Wrapf(err, "engine: v2 valuation %s", c.ID)
	}
	gap := valuation.CalculateValueGapV2(ebitda.AdjustedEBITDA, bench.Multiples, v2)

	snap.V1, snap.V2, snap.Gap = &v1, &v2, &gap
	return nil
}

// CategoryTasks returns one improvement task per weighted category scoring
// below 0.9. The addressable gap is split across them in proportion to
// weight times shortfall.
func CategoryTasks(companyID string, scores map[model.Category]float64, weights scoring.Weights, addressable decimal.Decimal) ([]model.Task, error) {
	type need struct {
		category model.Category
		share    float64
	}
	var needs []need
	var total float64
	for _, c := range model.Categories {
		score, ok := scores[c]
		if !ok || weights[c] <= 0 || priority.ScoreToImpactLevel(score) == model.ImpactNone {
			continue
		}
		share := weights[c] * (1 - score)
		needs = append(needs, need{c, share})
		total += share
	}

	tasks := make([]model.Task, 0, len(needs))
	for _, n := range needs {
		value := decimal.Zero
		if total > 0 && addressable.IsPositive() {
			value = addressable.Mul(decimal.NewFromFloat(n.share / total)).Round(2)
		}
		effort := effortForScore(scores[n.category])
		difficulty, err := priority.EffortToDifficultyLevel(nil, effort)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: difficulty for %s", n.category)
		}
		tasks = append(tasks, model.Task{
			ID:         fmt.Sprintf("%s-%s", companyID, strings.ToLower(string(n.category))),
			Title:      fmt.Sprintf("Improve %s readiness", n.category.Label()),
			Category:   n.category,
			Impact:     priority.ScoreToImpactLevel(scores[n.category]),
			Difficulty: difficulty,
			Effort:     effort,
			Value:      value,
			Status:     model.TaskPending,
		})
	}
	return tasks, nil
}

func effortForScore(score float64) model.EffortLabel {
	switch {
	case score < 0.3:
		return model.EffortMajor
	case score < 0.5:
		return model.EffortHigh
	case score < 0.75:
		return model.EffortModerate
	default:
		return model.EffortLow
	}
}

// BatchResult summarizes an AssessBatch run.
type BatchResult struct {
	Assessments []*Assessment `json:"assessments"`
	Succeeded   int64         `json:"succeeded"`
	Failed      int64         `json:"failed"`
}

// AssessBatch assesses companies concurrently. A failed company is logged
// and sent to the dead-letter queue without aborting the batch; results
// keep input order with nil for failures.
func (e *Engine) AssessBatch(ctx context.Context, companies []input.Company, reason model.SnapshotReason) (*BatchResult, error) {
	if reason != "" && !reason.Valid() {
		return nil, eris.Wrapf(model.ErrUnknownReason, "engine: assess batch: %q", reason)
	}
	if len(companies) == 0 {
		zap.L().Info("engine: no companies to assess")
		return &BatchResult{}, nil
	}

	zap.L().Info("engine: assessing batch",
		zap.Int("companies", len(companies)),
		zap.Int("concurrency", e.opts.BatchConcurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.BatchConcurrency)

	var succeeded, failed atomic.Int64
	results := make([]*Assessment, len(companies))

	for i, c := range companies {
		g.Go(func() error {
			a, err := e.Assess(gctx, c, reason)
			if err != nil {
				failed.Add(1)
				zap.L().Error("engine: assessment failed", zap.String("company_id", c.ID), zap.Error(err))
				if dErr := e.deadLetter(gctx, c, err); dErr != nil {
					zap.L().Warn("engine: failed to enqueue dead letter", zap.String("company_id", c.ID), zap.Error(dErr))
				}
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			results[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: batch")
	}

	zap.L().Info("engine: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return &BatchResult{Assessments: results, Succeeded: succeeded.Load(), Failed: failed.Load()}, nil
}

const opAssess = "assess"

func (e *Engine) deadLetter(ctx context.Context, c input.Company, cause error) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "engine: marshal dead letter input")
	}
	now := e.now()
	return e.store.EnqueueDLQ(ctx, resilience.DLQEntry{
		CompanyID:    c.ID,
		Operation:    opAssess,
		Input:        raw,
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		MaxRetries:   e.opts.DLQMaxRetries,
		NextRetryAt:  now.Add(resilience.NextRetryDelay(0)),
		CreatedAt:    now,
		LastFailedAt: now,
	})
}

// ReplayResult counts a dead-letter replay.
type ReplayResult struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// ReplayDeadLetters re-runs due transient assessment failures. Successes
// leave the queue; failures are rescheduled with a longer delay.
func (e *Engine) ReplayDeadLetters(ctx context.Context, limit int) (ReplayResult, error) {
	var res ReplayResult
	entries, err := e.store.DequeueDLQ(ctx, resilience.DLQFilter{
		ErrorType: resilience.ErrorTransient,
		Operation: opAssess,
		Limit:     limit,
	})
	if err != nil {
		return res, eris.Wrap(err, "engine: dequeue dead letters")
	}

	for _, entry := range entries {
		var c input.Company
		if err := json.Unmarshal(entry.Input, &c); err != nil {
			return res, eris.Wrapf(err, "engine: decode dead letter %s", entry.ID)
		}
		if _, err := e.Assess(ctx, c, model.ReasonAssessmentCompleted); err != nil {
			res.Failed++
			next := e.now().Add(resilience.NextRetryDelay(entry.RetryCount + 1))
			if iErr := e.store.IncrementDLQRetry(ctx, entry.ID, next, err.Error()); iErr != nil {
				return res, eris.Wrapf(iErr, "engine: reschedule dead letter %s", entry.ID)
			}
			continue
		}
		if err := e.store.RemoveDLQ(ctx, entry.ID); err != nil {
			return res, eris.Wrapf(err, "engine: remove dead letter %s", entry.ID)
		}
		res.Replayed++
	}

	zap.L().Info("engine: dead letters replayed",
		zap.Int("replayed", res.Replayed),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
