package valuation

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// Adjustment keys.
const (
	KeySizeDiscount          = "size_discount"
	KeyMarginQuality         = "margin_quality"
	KeyFinancialQuality      = "financial_quality"
	KeyTransferability       = "transferability"
	KeyOperationalQuality    = "operational_quality"
	KeyMarketPosition        = "market_position"
	KeyOwnerDependency       = "owner_dependency"
	KeyCustomerConcentration = "customer_concentration"
	KeyLegalTaxExposure      = "legal_tax_exposure"
	KeyDLOM                  = "dlom"
)

// QualityInputs feed the business-quality adjustments.
type QualityInputs struct {
	SizeCategory      RevenueSizeCategory
	Revenue           decimal.Decimal
	AdjustedEBITDA    decimal.Decimal
	IndustryAvgMargin decimal.Decimal
	CategoryScores    map[model.Category]float64
}

// RiskInputs feed the discrete risk discounts. TopCustomerShare is the
// largest customer's share of revenue (0-1), nil when unknown. DLOMRate
// overrides the size-band default when set.
type RiskInputs struct {
	SizeCategory     RevenueSizeCategory
	CategoryScores   map[model.Category]float64
	TopCustomerShare *float64
	DLOMRate         *decimal.Decimal
}

var (
	marginSensitivity   = decimal.RequireFromString("0.25")
	marginCap           = decimal.RequireFromString("0.15")
	majorCategoryWeight = 0.20
	minorCategoryWeight = 0.10
)

// QualityAdjustments returns the named, signed fractional impacts on the
// industry median multiple. Every entry is addressable: owners can close it
// by improving the business. Categories missing from CategoryScores were not
// assessed and get no adjustment.
func QualityAdjustments(in QualityInputs) ([]model.Adjustment, error) {
	band, err := LookupSize(in.SizeCategory)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: quality adjustments")
	}
	out := []model.Adjustment{{
		Key:         KeySizeDiscount,
		Label:       "Size discount",
		Impact:      band.SizeDiscount,
		Explanation: fmt.Sprintf("Businesses with %s revenue trade at a %s%% size adjustment", band.Label, pct(band.SizeDiscount)),
		Bucket:      model.BucketAddressable,
	}}

	if in.Revenue.IsPositive() && in.IndustryAvgMargin.IsPositive() {
		margin := in.AdjustedEBITDA.Div(in.Revenue)
		rel := margin.Sub(in.IndustryAvgMargin).Div(in.IndustryAvgMargin)
		impact := clampDecimal(rel.Mul(marginSensitivity), marginCap.Neg(), marginCap).Round(4)
		out = append(out, model.Adjustment{
			Key:    KeyMarginQuality,
			Label:  "Margin quality",
			Impact: impact,
			Explanation: fmt.Sprintf("Adjusted EBITDA margin of %s%% vs %s%% industry average",
				pct(margin), pct(in.IndustryAvgMargin)),
			Bucket: model.BucketAddressable,
		})
	}

	categoryAdjustments := []struct {
		key, label string
		category   model.Category
		weight     float64
	}{
		{KeyFinancialQuality, "Financial quality", model.CategoryFinancial, majorCategoryWeight},
		{KeyTransferability, "Transferability", model.CategoryTransferability, majorCategoryWeight},
		{KeyOperationalQuality, "Operational quality", model.CategoryOperational, minorCategoryWeight},
		{KeyMarketPosition, "Market position", model.CategoryMarket, minorCategoryWeight},
	}
	for _, ca := range categoryAdjustments {
		score, ok := in.CategoryScores[ca.category]
		if !ok {
			continue
		}
		impact := decimal.NewFromFloat((clampFloat(score, 0, 1) - 0.5) * ca.weight).Round(4)
		out = append(out, model.Adjustment{
			Key:    ca.key,
			Label:  ca.label,
			Impact: impact,
			Explanation: fmt.Sprintf("%s readiness score of %.0f%% moves the multiple %s%%",
				ca.category.Label(), score*100, pct(impact)),
			Bucket: model.BucketAddressable,
		})
	}
	return out, nil
}

// RiskDiscounts returns the discrete discount rates applied on top of the
// quality-adjusted multiple. Every entry is structural.
func RiskDiscounts(in RiskInputs) ([]model.Adjustment, error) {
	band, err := LookupSize(in.SizeCategory)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: risk discounts")
	}
	var out []model.Adjustment

	if score, ok := in.CategoryScores[model.CategoryTransferability]; ok {
		rate := decimal.NewFromFloat((1 - clampFloat(score, 0, 1)) * 0.20).Round(4)
		out = append(out, model.Adjustment{
			Key:         KeyOwnerDependency,
			Label:       "Owner dependency",
			Impact:      rate,
			Explanation: fmt.Sprintf("Transferability score of %.0f%% implies a %s%% owner-dependency discount", score*100, pct(rate)),
			Bucket:      model.BucketStructural,
		})
	}

	if in.TopCustomerShare != nil {
		share := *in.TopCustomerShare
		rate := decimal.Zero
		switch {
		case share > 0.50:
			rate = decimal.RequireFromString("0.20")
		case share > 0.25:
			rate = decimal.RequireFromString("0.10")
		case share > 0.10:
			rate = decimal.RequireFromString("0.05")
		}
		out = append(out, model.Adjustment{
			Key:         KeyCustomerConcentration,
			Label:       "Customer concentration",
			Impact:      rate,
			Explanation: fmt.Sprintf("Largest customer is %.0f%% of revenue", share*100),
			Bucket:      model.BucketStructural,
		})
	}

	if score, ok := in.CategoryScores[model.CategoryLegalTax]; ok {
		rate := decimal.NewFromFloat((1 - clampFloat(score, 0, 1)) * 0.15).Round(4)
		out = append(out, model.Adjustment{
			Key:         KeyLegalTaxExposure,
			Label:       "Legal and tax exposure",
			Impact:      rate,
			Explanation: fmt.Sprintf("Legal/Tax score of %.0f%% implies a %s%% exposure discount", score*100, pct(rate)),
			Bucket:      model.BucketStructural,
		})
	}

	dlom := band.DLOMRate
	why := fmt.Sprintf("Private company with %s revenue", band.Label)
	if in.DLOMRate != nil {
		dlom = *in.DLOMRate
		why = "Marketability discount supplied by appraiser"
	}
	out = append(out, model.Adjustment{
		Key:         KeyDLOM,
		Label:       "Discount for lack of marketability",
		Impact:      dlom,
		Explanation: fmt.Sprintf("%s: %s%% DLOM", why, pct(dlom)),
		Bucket:      model.BucketStructural,
	})
	return out, nil
}

var maxRiskRate = decimal.RequireFromString("0.95")

// RiskMultiplier is the product of (1 - rate) over all risk discounts. Each
// rate is clamped to [0, 0.95] so the multiplier stays positive.
func RiskMultiplier(discounts []model.Adjustment) decimal.Decimal {
	one := decimal.NewFromInt(1)
	m := one
	for _, d := range discounts {
		rate := clampDecimal(d.Impact, decimal.Zero, maxRiskRate)
		m = m.Mul(one.Sub(rate))
	}
	return m.Round(6)
}

// BusinessQualityScore averages the financial, operational and market
// category scores that are present.
func BusinessQualityScore(scores map[model.Category]float64) float64 {
	var sum float64
	var n int
	for _, c := range []model.Category{model.CategoryFinancial, model.CategoryOperational, model.CategoryMarket} {
		if v, ok := scores[c]; ok {
			sum += clampFloat(v, 0, 1)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
