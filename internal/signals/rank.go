// Package signals ranks, groups and bounds detected issues so the owner sees
// a small, stable set instead of an alert stream.
package signals

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

var severityWeights = map[model.Severity]float64{
	model.SeverityInfo:     1,
	model.SeverityLow:      2,
	model.SeverityMedium:   4,
	model.SeverityHigh:     7,
	model.SeverityCritical: 10,
}

var confidenceMultipliers = map[model.Confidence]decimal.Decimal{
	model.ConfidenceUncertain:         decimal.RequireFromString("0.40"),
	model.ConfidenceSomewhatConfident: decimal.RequireFromString("0.60"),
	model.ConfidenceConfident:         decimal.RequireFromString("0.85"),
	model.ConfidenceVerified:          decimal.NewFromInt(1),
	model.ConfidenceNotApplicable:     decimal.NewFromInt(1),
}

var resolutionMultipliers = map[model.ResolutionStatus]float64{
	model.StatusOpen:         1.0,
	model.StatusAcknowledged: 0.90,
	model.StatusResolved:     0.30,
	model.StatusDismissed:    0.10,
}

// valueScale is the impact, in dollars, at which the value factor starts to
// grow meaningfully.
const valueScale = 1000.0

// SeverityWeight returns the rank weight for a severity.
func SeverityWeight(s model.Severity) (float64, error) {
	w, ok := severityWeights[s]
	if !ok {
		return 0, eris.Wrapf(model.ErrUnknownSeverity, "signals: %q", s)
	}
	return w, nil
}

// ConfidenceMultiplier returns the weighting applied for a confidence level.
func ConfidenceMultiplier(c model.Confidence) (decimal.Decimal, error) {
	m, ok := confidenceMultipliers[c]
	if !ok {
		return decimal.Zero, eris.Wrapf(model.ErrUnknownConfidence, "signals: %q", c)
	}
	return m, nil
}

// ResolutionMultiplier returns the suppression applied for a status.
func ResolutionMultiplier(s model.ResolutionStatus) (float64, error) {
	m, ok := resolutionMultipliers[s]
	if !ok {
		return 0, eris.Wrapf(model.ErrUnknownStatus, "signals: %q", s)
	}
	return m, nil
}

// ValueFactor grows logarithmically with the absolute value impact. A
// missing impact counts as 1.
func ValueFactor(impact decimal.NullDecimal) float64 {
	if !impact.Valid {
		return 1
	}
	return 1 + math.Log10(1+impact.Decimal.Abs().InexactFloat64()/valueScale)
}

// CalculateRankScore scores one signal. Unknown enum values are errors.
func CalculateRankScore(s model.Signal) (float64, error) {
	sev, err := SeverityWeight(s.Severity)
	if err != nil {
		return 0, err
	}
	conf, err := ConfidenceMultiplier(s.Confidence)
	if err != nil {
		return 0, err
	}
	res, err := ResolutionMultiplier(s.ResolutionStatus)
	if err != nil {
		return 0, err
	}
	return sev * conf.InexactFloat64() * res * ValueFactor(s.EstimatedValueImpact), nil
}

// CalculateWeightedValueImpact scales the impact by confidence, keeping its
// sign. A missing impact stays missing.
func CalculateWeightedValueImpact(s model.Signal) (decimal.NullDecimal, error) {
	conf, err := ConfidenceMultiplier(s.Confidence)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if !s.EstimatedValueImpact.Valid {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(s.EstimatedValueImpact.Decimal.Mul(conf).Round(2)), nil
}

// CalculateWeightedValueAtRisk sums |impact| x confidence over signals.
// Callers pick which statuses to include.
func CalculateWeightedValueAtRisk(signals []model.Signal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, s := range signals {
		conf, err := ConfidenceMultiplier(s.Confidence)
		if err != nil {
			return decimal.Zero, err
		}
		if !s.EstimatedValueImpact.Valid {
			continue
		}
		total = total.Add(s.EstimatedValueImpact.Decimal.Abs().Mul(conf))
	}
	return total.Round(2), nil
}

// RankedSignal is a signal with its computed rank score and weighted impact.
type RankedSignal struct {
	model.Signal
	RankScore           float64             `json:"rank_score"`
	WeightedValueImpact decimal.NullDecimal `json:"weighted_value_impact"`
}

// RankSignals scores every signal and orders them by rank score, highest
// first. Ties go to the newer signal, then to the lower ID.
func RankSignals(signals []model.Signal) ([]RankedSignal, error) {
	out := make([]RankedSignal, 0, len(signals))
	for _, s := range signals {
		score, err := CalculateRankScore(s)
		if err != nil {
			return nil, eris.Wrapf(err, "signals: rank %s", s.ID)
		}
		weighted, err := CalculateWeightedValueImpact(s)
		if err != nil {
			return nil, eris.Wrapf(err, "signals: weigh %s", s.ID)
		}
		out = append(out, RankedSignal{Signal: s, RankScore: score, WeightedValueImpact: weighted})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RankScore != out[j].RankScore {
			return out[i].RankScore > out[j].RankScore
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Summarize counts high and critical signals for drift inputs.
func Summarize(signals []model.Signal) model.SignalsSummary {
	var sum model.SignalsSummary
	for _, s := range signals {
		sum.Total++
		switch s.Severity {
		case model.SeverityHigh:
			sum.High++
		case model.SeverityCritical:
			sum.Critical++
		}
	}
	return sum
}
