package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// LineItem is a named add-back or deduction applied to reported EBITDA.
type LineItem struct {
	Label  string          `json:"label" yaml:"label"`
	Amount decimal.Decimal `json:"amount" yaml:"amount"`
}

// Financials are the reported figures used to derive adjusted EBITDA.
// OwnerCompensation is nil when unknown, in which case no owner-comp
// normalization is applied.
type Financials struct {
	Revenue           decimal.Decimal  `json:"revenue" yaml:"revenue"`
	AnnualEBITDA      decimal.Decimal  `json:"annual_ebitda" yaml:"annual_ebitda"`
	OwnerCompensation *decimal.Decimal `json:"owner_compensation,omitempty" yaml:"owner_compensation,omitempty"`
	AddBacks          []LineItem       `json:"add_backs,omitempty" yaml:"add_backs,omitempty"`
	Deductions        []LineItem       `json:"deductions,omitempty" yaml:"deductions,omitempty"`
}

// EBITDAResult is adjusted EBITDA plus the audit trail that produced it.
type EBITDAResult struct {
	ReportedEBITDA decimal.Decimal     `json:"reported_ebitda"`
	BaseEBITDA     decimal.Decimal     `json:"base_ebitda"`
	AdjustedEBITDA decimal.Decimal     `json:"adjusted_ebitda"`
	Estimated      bool                `json:"estimated"`
	SizeCategory   RevenueSizeCategory `json:"size_category"`
	Adjustments    []model.Adjustment  `json:"adjustments"`
}

// NormalizeEBITDA converts reported financials into a buyer's view of
// sustainable earnings. When reported EBITDA is not positive it is estimated
// from revenue at the industry average margin before any adjustments.
// Owner compensation is normalized in both directions: an underpaid owner
// lowers adjusted EBITDA and an overpaid owner raises it.
func NormalizeEBITDA(f Financials, industryAvgMargin decimal.Decimal) EBITDAResult {
	band := classify(f.Revenue)
	res := EBITDAResult{
		ReportedEBITDA: f.AnnualEBITDA,
		BaseEBITDA:     f.AnnualEBITDA,
		SizeCategory:   band.Category,
	}

	if !f.AnnualEBITDA.IsPositive() {
		estimated := decimal.Zero
		if f.Revenue.IsPositive() && industryAvgMargin.IsPositive() {
			estimated = f.Revenue.Mul(industryAvgMargin).Round(2)
		}
		res.BaseEBITDA = estimated
		res.Estimated = true
		res.Adjustments = append(res.Adjustments, model.Adjustment{
			Key:    "ebitda_estimate",
			Label:  "EBITDA estimated from revenue",
			Impact: estimated.Sub(f.AnnualEBITDA),
			Explanation: fmt.Sprintf(
				"Reported EBITDA of %s is not positive; estimated %s from revenue %s at the %s%% industry average margin",
				money(f.AnnualEBITDA), money(estimated), money(f.Revenue), pct(industryAvgMargin),
			),
		})
	}

	adjusted := res.BaseEBITDA
	for _, a := range f.AddBacks {
		adjusted = adjusted.Add(a.Amount)
		res.Adjustments = append(res.Adjustments, model.Adjustment{
			Key:         "add_back",
			Label:       a.Label,
			Impact:      a.Amount,
			Explanation: fmt.Sprintf("Add-back %q of %s is non-recurring or discretionary", a.Label, money(a.Amount)),
		})
	}
	for _, d := range f.Deductions {
		adjusted = adjusted.Sub(d.Amount)
		res.Adjustments = append(res.Adjustments, model.Adjustment{
			Key:         "deduction",
			Label:       d.Label,
			Impact:      d.Amount.Neg(),
			Explanation: fmt.Sprintf("Deduction %q of %s is a recurring cost not reflected in reported EBITDA", d.Label, money(d.Amount)),
		})
	}

	if f.OwnerCompensation != nil {
		benchmark := band.MarketSalary
		delta := f.OwnerCompensation.Sub(benchmark)
		adjusted = adjusted.Add(delta)

		var why string
		switch delta.Sign() {
		case 1:
			why = "owner is paid above market; the excess is added back"
		case -1:
			why = "owner is paid below market; the shortfall is a hidden labor cost"
		default:
			why = "owner is paid at market; no adjustment"
		}
		res.Adjustments = append(res.Adjustments, model.Adjustment{
			Key:    "owner_compensation",
			Label:  "Owner compensation normalization",
			Impact: delta,
			Explanation: fmt.Sprintf("Owner compensation %s vs %s market salary for %s revenue: %s",
				money(*f.OwnerCompensation), money(benchmark), band.Label, why),
		})
	}

	res.AdjustedEBITDA = adjusted.Round(2)
	return res
}

func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func pct(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).StringFixed(1)
}
