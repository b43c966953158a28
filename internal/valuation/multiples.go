package valuation

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingMultiples means no industry benchmark was available. Callers
	// must surface "valuation unavailable" instead of a zero valuation.
	ErrMissingMultiples = eris.New("valuation: industry multiples unavailable")
	// ErrInvalidMultiples means the benchmark range is inverted or negative.
	ErrInvalidMultiples = eris.New("valuation: invalid industry multiples")
	// ErrInvalidDLOMRate means a marketability discount outside [0, 1).
	ErrInvalidDLOMRate = eris.New("valuation: dlom rate must be in [0, 1)")
)

// Multiples is an industry EBITDA multiple range.
type Multiples struct {
	Low  decimal.Decimal `json:"low" yaml:"low"`
	High decimal.Decimal `json:"high" yaml:"high"`
}

// Validate rejects missing, negative and inverted ranges.
func (m Multiples) Validate() error {
	if m.Low.IsZero() && m.High.IsZero() {
		return ErrMissingMultiples
	}
	if m.Low.IsNegative() || m.High.IsNegative() {
		return eris.Wrapf(ErrInvalidMultiples, "negative range %s-%s", m.Low, m.High)
	}
	if m.High.LessThan(m.Low) {
		return eris.Wrapf(ErrInvalidMultiples, "high %s below low %s", m.High, m.Low)
	}
	return nil
}

// Median is the midpoint of the range.
func (m Multiples) Median() decimal.Decimal {
	return m.Low.Add(m.High).Div(decimal.NewFromInt(2))
}

// Spread is High minus Low.
func (m Multiples) Spread() decimal.Decimal {
	return m.High.Sub(m.Low)
}

func fraction(v float64) decimal.Decimal {
	return decimal.NewFromFloat(clampFloat(v, 0, 1)).Round(6)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// nonNegative floors currency values at zero; a business is never valued
// below nothing.
func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
