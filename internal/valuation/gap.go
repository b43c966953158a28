package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// CalculateValueGapV2 splits the distance between the current mid estimate
// and the top of the industry range into three non-overlapping buckets.
//
// Addressable is what removing every negative addressable quality
// adjustment would recover at today's risk level. Structural is what the
// risk discounts cost on that improved multiple. Aspirational is whatever
// remains up to ebitda * High. Buckets are filled in that order, each
// clamped to the gap still unallocated, so they always sum to Total.
func CalculateValueGapV2(adjustedEBITDA decimal.Decimal, m Multiples, v model.ValuationV2) model.ValueGap {
	potential := nonNegative(adjustedEBITDA.Mul(m.High)).Round(2)
	total := nonNegative(potential.Sub(v.EVMid))
	if total.IsZero() || !adjustedEBITDA.IsPositive() {
		return model.ValueGap{Total: total, Addressable: decimal.Zero, Structural: decimal.Zero, Aspirational: total}
	}

	one := decimal.NewFromInt(1)
	r := clampDecimal(v.RiskMultiplier, decimal.Zero, one)

	var improved []model.Adjustment
	for _, a := range v.QualityAdjustments {
		if a.Bucket == model.BucketAddressable && a.Impact.IsNegative() {
			continue
		}
		improved = append(improved, a)
	}
	qImproved := qualityMultiple(v.IndustryMedianMultiple, improved)

	remaining := total
	addressable := clampDecimal(
		adjustedEBITDA.Mul(qImproved.Sub(v.QualityAdjustedMultiple)).Mul(r).Round(2),
		decimal.Zero, remaining,
	)
	remaining = remaining.Sub(addressable)

	structural := clampDecimal(
		adjustedEBITDA.Mul(qImproved).Mul(one.Sub(r)).Round(2),
		decimal.Zero, remaining,
	)
	remaining = remaining.Sub(structural)

	return model.ValueGap{
		Total:        total,
		Addressable:  addressable,
		Structural:   structural,
		Aspirational: remaining,
	}
}
