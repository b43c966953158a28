// Package scoring turns assessment responses into per-category readiness
// scores and the weighted Buyer Readiness Index (BRI).
package scoring

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-engine/internal/model"
)

// Weights maps each category to its weight in the BRI composite. Weights need
// not sum to 1; the composite is weight-normalized.
type Weights map[model.Category]float64

// DefaultWeights returns the hardcoded category weights.
func DefaultWeights() Weights {
	return Weights{
		model.CategoryFinancial:       0.25,
		model.CategoryTransferability: 0.20,
		model.CategoryOperational:     0.20,
		model.CategoryMarket:          0.15,
		model.CategoryLegalTax:        0.10,
		model.CategoryPersonal:        0.10,
	}
}

// Sum returns the total of all positive weights.
func (w Weights) Sum() float64 {
	var sum float64
	for _, c := range model.Categories {
		if v := w[c]; v > 0 {
			sum += v
		}
	}
	return sum
}

// Clone returns an independent copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Validate checks that every key is a known category and no weight is
// negative. An all-zero set is valid; it produces an unavailable BRI.
func (w Weights) Validate() error {
	var errs []string
	for c, v := range w {
		if !c.Valid() {
			errs = append(errs, fmt.Sprintf("unknown category %q", c))
			continue
		}
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", c))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolveWeights picks the active weight set: a per-company override wins,
// then a global override, then the defaults. Exactly one set is returned.
func ResolveWeights(company, global Weights) Weights {
	switch {
	case len(company) > 0:
		return company.Clone()
	case len(global) > 0:
		return global.Clone()
	default:
		return DefaultWeights()
	}
}
