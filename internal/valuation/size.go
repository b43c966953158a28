// Package valuation implements EBITDA normalization, the V1 and V2 valuation
// models and value-gap decomposition. All currency and multiple arithmetic
// uses fixed-point decimals.
package valuation

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrUnknownSizeCategory is returned for a revenue size category outside the
// fixed bands.
var ErrUnknownSizeCategory = eris.New("valuation: unknown revenue size category")

// RevenueSizeCategory buckets a company by annual revenue.
type RevenueSizeCategory string

const (
	SizeUnder500K RevenueSizeCategory = "UNDER_500K"
	Size500KTo1M  RevenueSizeCategory = "500K_TO_1M"
	Size1MTo3M    RevenueSizeCategory = "1M_TO_3M"
	Size3MTo10M   RevenueSizeCategory = "3M_TO_10M"
	Size10MTo25M  RevenueSizeCategory = "10M_TO_25M"
	Size25MPlus   RevenueSizeCategory = "25M_PLUS"
)

// SizeBand holds the constants that depend on a company's revenue size.
// Upper is the exclusive revenue bound; zero means unbounded.
type SizeBand struct {
	Category     RevenueSizeCategory `json:"category"`
	Upper        decimal.Decimal     `json:"upper"`
	MarketSalary decimal.Decimal     `json:"market_salary"`
	SizeDiscount decimal.Decimal     `json:"size_discount"`
	DLOMRate     decimal.Decimal     `json:"dlom_rate"`
	Label        string              `json:"label"`
}

// sizeBands is ordered from smallest to largest revenue.
var sizeBands = []SizeBand{
	{SizeUnder500K, decimal.NewFromInt(500_000), decimal.NewFromInt(60_000), decimal.RequireFromString("-0.25"), decimal.RequireFromString("0.30"), "under $500K"},
	{Size500KTo1M, decimal.NewFromInt(1_000_000), decimal.NewFromInt(80_000), decimal.RequireFromString("-0.20"), decimal.RequireFromString("0.25"), "$500K-$1M"},
	{Size1MTo3M, decimal.NewFromInt(3_000_000), decimal.NewFromInt(120_000), decimal.RequireFromString("-0.15"), decimal.RequireFromString("0.20"), "$1M-$3M"},
	{Size3MTo10M, decimal.NewFromInt(10_000_000), decimal.NewFromInt(175_000), decimal.RequireFromString("-0.10"), decimal.RequireFromString("0.15"), "$3M-$10M"},
	{Size10MTo25M, decimal.NewFromInt(25_000_000), decimal.NewFromInt(225_000), decimal.RequireFromString("-0.05"), decimal.RequireFromString("0.12"), "$10M-$25M"},
	{Size25MPlus, decimal.Zero, decimal.NewFromInt(300_000), decimal.Zero, decimal.RequireFromString("0.10"), "$25M+"},
}

// ClassifyRevenue returns the size category for an annual revenue figure.
// Zero or negative revenue falls into the smallest band.
func ClassifyRevenue(revenue decimal.Decimal) RevenueSizeCategory {
	return classify(revenue).Category
}

func classify(revenue decimal.Decimal) SizeBand {
	for _, b := range sizeBands {
		if b.Upper.IsZero() || revenue.LessThan(b.Upper) {
			return b
		}
	}
	return sizeBands[len(sizeBands)-1]
}

// Valid reports whether c is one of the fixed size bands.
func (c RevenueSizeCategory) Valid() bool {
	_, err := LookupSize(c)
	return err == nil
}

// LookupSize returns the band for c.
func LookupSize(c RevenueSizeCategory) (SizeBand, error) {
	for _, b := range sizeBands {
		if b.Category == c {
			return b, nil
		}
	}
	return SizeBand{}, eris.Wrapf(ErrUnknownSizeCategory, "%q", c)
}
