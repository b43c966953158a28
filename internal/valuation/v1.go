package valuation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

const (
	// Alpha shapes the V1 readiness discount: (1 - bri)^Alpha.
	Alpha = 1.4
	// CoreBlendWeight is the share of the core score in the V1 position
	// within the industry range; the rest comes from the BRI.
	CoreBlendWeight = 0.5
)

// CalculateValuation runs the V1 single-discount model. V1 fields are still
// written on every snapshot for older consumers; V2 drives display.
func CalculateValuation(adjustedEBITDA decimal.Decimal, m Multiples, coreScore, briScore float64) (model.ValuationV1, error) {
	if err := m.Validate(); err != nil {
		return model.ValuationV1{}, err
	}

	core := clampFloat(coreScore, 0, 1)
	bri := clampFloat(briScore, 0, 1)
	blend := fraction(CoreBlendWeight*core + (1-CoreBlendWeight)*bri)

	base := m.Low.Add(blend.Mul(m.Spread())).Round(4)
	discount := fraction(math.Pow(1-bri, Alpha))
	final := base.Mul(decimal.NewFromInt(1).Sub(discount)).Round(4)

	current := nonNegative(adjustedEBITDA.Mul(final)).Round(2)
	potential := nonNegative(adjustedEBITDA.Mul(base)).Round(2)

	return model.ValuationV1{
		BaseMultiple:     base,
		DiscountFraction: discount,
		FinalMultiple:    final,
		CurrentValue:     current,
		PotentialValue:   potential,
		ValueGap:         potential.Sub(current),
	}, nil
}
