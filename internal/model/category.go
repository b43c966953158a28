// Package model holds the records exchanged between the valuation engine and
// its collaborators.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Category is one of the six fixed buyer-readiness categories.
type Category string

const (
	CategoryFinancial       Category = "FINANCIAL"
	CategoryTransferability Category = "TRANSFERABILITY"
	CategoryOperational     Category = "OPERATIONAL"
	CategoryMarket          Category = "MARKET"
	CategoryLegalTax        Category = "LEGAL_TAX"
	CategoryPersonal        Category = "PERSONAL"
)

// Categories lists every category in display order. Iteration over category
// maps always goes through this slice so results stay deterministic.
var Categories = []Category{
	CategoryFinancial,
	CategoryTransferability,
	CategoryOperational,
	CategoryMarket,
	CategoryLegalTax,
	CategoryPersonal,
}

var categoryLabels = map[Category]string{
	CategoryFinancial:       "Financial",
	CategoryTransferability: "Transferability",
	CategoryOperational:     "Operational",
	CategoryMarket:          "Market",
	CategoryLegalTax:        "Legal/Tax",
	CategoryPersonal:        "Personal",
}

// ErrUnknownCategory is returned when a category value is not one of the six.
var ErrUnknownCategory = eris.New("model: unknown category")

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable category name.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", eris.Wrapf(ErrUnknownCategory, "%q", s)
	}
	return c, nil
}

// UnmarshalText rejects unknown categories instead of letting them flow into
// weighted sums.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
