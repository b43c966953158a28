package valuation

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

var (
	maxQualityImpact = decimal.RequireFromString("0.5")
	baseSpread       = decimal.RequireFromString("0.10")
	readinessSpread  = decimal.RequireFromString("0.15")
)

// Scores are the 0-1 scores reported alongside a V2 valuation.
type Scores struct {
	BusinessQuality float64
	DealReadiness   float64
}

// CalculateValuationV2 runs the quality/risk-adjusted multiple model.
// quality holds signed fractional impacts on the industry median, risks
// holds discount rates and riskMultiplier is their combined product (see
// RiskMultiplier). The DLOM rate is read from the risk discount keyed
// KeyDLOM when present.
func CalculateValuationV2(
	adjustedEBITDA decimal.Decimal,
	m Multiples,
	quality []model.Adjustment,
	risks []model.Adjustment,
	riskMultiplier decimal.Decimal,
	scores Scores,
) (model.ValuationV2, error) {
	if err := m.Validate(); err != nil {
		return model.ValuationV2{}, err
	}

	one := decimal.NewFromInt(1)
	r := clampDecimal(riskMultiplier, decimal.Zero, one)

	median := m.Median().Round(4)
	q := qualityMultiple(median, quality)
	riskAdjusted := q.Mul(r).Round(4)

	readiness := clampFloat(scores.DealReadiness, 0, 1)
	spread := baseSpread.Add(readinessSpread.Mul(fraction(1 - readiness))).Round(4)

	mid := nonNegative(adjustedEBITDA.Mul(riskAdjusted)).Round(2)
	low := mid.Mul(one.Sub(spread)).Round(2)
	high := mid.Mul(one.Add(spread)).Round(2)

	dlomRate := decimal.Zero
	for _, d := range risks {
		if d.Key == KeyDLOM {
			dlomRate = d.Impact
		}
	}
	dlomAmount, err := DLOMAmount(mid, dlomRate)
	if err != nil {
		return model.ValuationV2{}, err
	}

	return model.ValuationV2{
		BusinessQualityScore:    clampFloat(scores.BusinessQuality, 0, 1),
		DealReadinessScore:      readiness,
		RiskSeverityScore:       one.Sub(r).InexactFloat64(),
		IndustryMedianMultiple:  median,
		QualityAdjustedMultiple: q,
		RiskMultiplier:          r,
		RiskAdjustedMultiple:    riskAdjusted,
		SpreadFactor:            spread,
		EVLow:                   low,
		EVMid:                   mid,
		EVHigh:                  high,
		DLOMRate:                dlomRate,
		DLOMAmount:              dlomAmount,
		QualityAdjustments:      quality,
		RiskDiscounts:           risks,
	}, nil
}

// DLOMAmount back-solves the marketability discount from a post-discount
// value: evMid is what remains after the discount, so the discount itself
// is evMid * rate / (1 - rate).
func DLOMAmount(evMid, rate decimal.Decimal) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	if rate.IsNegative() || !rate.LessThan(one) {
		return decimal.Zero, eris.Wrapf(ErrInvalidDLOMRate, "rate %s", rate)
	}
	if rate.IsZero() {
		return decimal.Zero, nil
	}
	return evMid.Mul(rate).Div(one.Sub(rate)).Round(2), nil
}

// qualityMultiple scales the median by the summed impacts, bounded to
// +/-50% so the multiple never goes negative.
func qualityMultiple(median decimal.Decimal, adjustments []model.Adjustment) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range adjustments {
		sum = sum.Add(a.Impact)
	}
	sum = clampDecimal(sum, maxQualityImpact.Neg(), maxQualityImpact)
	return median.Mul(decimal.NewFromInt(1).Add(sum)).Round(4)
}
