// Package drift compares two valuation snapshots plus period activity and
// produces a weighted trend score, per-category directions and recommended
// actions. Everything here is pure: identical inputs give identical outputs.
package drift

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/scoring"
)

// Fixed drift constants.
const (
	CategoryThreshold  = 0.005
	DirectionThreshold = 0.05
	BRINormalization   = 0.10
	CriticalDrop       = 0.10
	HighDrop           = 0.05
	MaxActions         = 5

	weightBRI        = 0.60
	weightStaleness  = 0.15
	weightSignals    = 0.10
	weightCompletion = 0.15

	maxCategoryActions = 2
	maxTaskActions     = 3
)

// Input is everything CalculateDrift needs. Current and Previous may be nil
// when a company has no snapshot on that side of the period. Weights is used
// only when a snapshot lacks a composite BRI; nil means the default weights.
type Input struct {
	Current             *model.ValuationSnapshot
	Previous            *model.ValuationSnapshot
	StaleDocumentCount  int
	Signals             model.SignalsSummary
	TasksCompleted      int
	TasksPendingAtStart int
	TopPendingTasks     []model.Task
	Weights             scoring.Weights
}

// Factors are the normalized drift components before weighting.
type Factors struct {
	BRIChange      float64 `json:"bri_change"`
	Staleness      float64 `json:"staleness"`
	SignalPressure float64 `json:"signal_pressure"`
	TaskCompletion float64 `json:"task_completion"`
}

// Result is the output of CalculateDrift.
type Result struct {
	CategoryChanges []model.CategoryChange `json:"category_changes"`
	BRIStart        *float64               `json:"bri_start"`
	BRIEnd          *float64               `json:"bri_end"`
	BRIChange       float64                `json:"bri_change"`
	ValuationStart  decimal.NullDecimal    `json:"valuation_start"`
	ValuationEnd    decimal.NullDecimal    `json:"valuation_end"`
	CompletionRate  float64                `json:"completion_rate"`
	Factors         Factors                `json:"factors"`
	Score           float64                `json:"score"`
	Direction       model.Direction        `json:"direction"`
	Actions         []Action               `json:"actions"`
	SignalSeverity  *model.Severity        `json:"signal_severity,omitempty"`
}

// CalculateDrift computes the drift between two snapshots.
func CalculateDrift(in Input) Result {
	res := Result{
		CategoryChanges: CategoryChanges(in.Current, in.Previous),
		BRIStart:        briOf(in.Previous),
		BRIEnd:          briOf(in.Current),
		ValuationStart:  in.Previous.CurrentValue(),
		ValuationEnd:    in.Current.CurrentValue(),
		CompletionRate:  CompletionRate(in.TasksCompleted, in.TasksPendingAtStart),
	}
	res.BRIChange = briChange(in, res.CategoryChanges)

	res.Factors = Factors{
		BRIChange:      clamp(res.BRIChange/BRINormalization, -1, 1),
		Staleness:      math.Min(float64(max(in.StaleDocumentCount, 0))*0.1, 1),
		SignalPressure: math.Min(float64(max(in.Signals.Critical, 0))*0.3+float64(max(in.Signals.High, 0))*0.15, 1),
		TaskCompletion: res.CompletionRate,
	}
	res.Score = round4(weightBRI*res.Factors.BRIChange -
		weightStaleness*res.Factors.Staleness -
		weightSignals*res.Factors.SignalPressure +
		weightCompletion*res.Factors.TaskCompletion)
	res.Direction = OverallDirection(res.Score)

	if sev, ok := DriftSignalSeverity(res.BRIChange); ok {
		res.SignalSeverity = &sev
	}
	res.Actions = RecommendActions(res.CategoryChanges, in.TopPendingTasks, in.StaleDocumentCount, in.Signals)
	return res
}

// CategoryChanges returns one change per category in fixed order. A
// category missing from either snapshot has a zero delta.
func CategoryChanges(current, previous *model.ValuationSnapshot) []model.CategoryChange {
	out := make([]model.CategoryChange, 0, len(model.Categories))
	for _, c := range model.Categories {
		end, okEnd := current.CategoryScore(c)
		start, okStart := previous.CategoryScore(c)
		var delta float64
		if okEnd && okStart {
			delta = round4(end - start)
		}
		out = append(out, model.CategoryChange{
			Category:  c,
			Start:     start,
			End:       end,
			Delta:     delta,
			Direction: CategoryTrend(delta),
		})
	}
	return out
}

// CategoryTrend classifies a 0-1 scale delta with a half-point dead band.
func CategoryTrend(delta float64) model.Trend {
	switch {
	case delta > CategoryThreshold:
		return model.TrendImproving
	case delta < -CategoryThreshold:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// OverallDirection classifies a weighted drift score.
func OverallDirection(score float64) model.Direction {
	switch {
	case score > DirectionThreshold:
		return model.DirectionImproving
	case score < -DirectionThreshold:
		return model.DirectionDeclining
	default:
		return model.DirectionStable
	}
}

// CompletionRate is completed / (completed + pending at start), clamped to
// [0, 1] and 0 when there were no tasks.
func CompletionRate(completed, pendingAtStart int) float64 {
	denom := completed + pendingAtStart
	if denom <= 0 {
		return 0
	}
	return clamp(float64(completed)/float64(denom), 0, 1)
}

// DriftSignalSeverity maps a BRI change to the severity of the drift signal
// it should raise. Only drops raise signals.
func DriftSignalSeverity(briChange float64) (model.Severity, bool) {
	if briChange >= 0 {
		return "", false
	}
	drop := round4(-briChange)
	switch {
	case drop >= CriticalDrop:
		return model.SeverityCritical, true
	case drop >= HighDrop:
		return model.SeverityHigh, true
	default:
		return "", false
	}
}

// briChange prefers the composite BRI delta and falls back to the
// weight-normalized category deltas when either composite is unavailable.
func briChange(in Input, changes []model.CategoryChange) float64 {
	start, end := briOf(in.Previous), briOf(in.Current)
	if start != nil && end != nil {
		return round4(*end - *start)
	}
	w := in.Weights
	if w == nil {
		w = scoring.DefaultWeights()
	}
	var num, den float64
	for _, ch := range changes {
		if wt := w[ch.Category]; wt > 0 {
			num += ch.Delta * wt
			den += wt
		}
	}
	if den == 0 {
		return 0
	}
	return round4(num / den)
}

func briOf(s *model.ValuationSnapshot) *float64 {
	if s == nil || s.BRIScore == nil {
		return nil
	}
	v := *s.BRIScore
	return &v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round4 keeps float outputs stable across platforms and equality checks.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func sortedDeclines(changes []model.CategoryChange) []model.CategoryChange {
	var out []model.CategoryChange
	for _, ch := range changes {
		if ch.Direction == model.TrendDeclining {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Delta < out[j].Delta })
	return out
}
