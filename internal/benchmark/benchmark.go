// Package benchmark resolves industry EBITDA multiples and average margins by
// NAICS code, falling back from 6 to 4 to 2 digits.
package benchmark

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/valuation"
)

var (
	// ErrNotFound means no source had a benchmark for the code or any of
	// its parents.
	ErrNotFound = eris.New("benchmark: no benchmark for naics")
	// ErrInvalidNAICS is returned for codes that are not 2-6 digits.
	ErrInvalidNAICS = eris.New("benchmark: invalid naics code")
)

// Source looks up the current benchmark for a NAICS code.
type Source interface {
	Lookup(ctx context.Context, naics string) (valuation.IndustryBenchmark, error)
}

// Chain tries each source in order. A source that fails for any reason
// other than ErrNotFound is logged and skipped so a database outage degrades
// to the built-in table instead of failing the assessment.
type Chain []Source

func (c Chain) Lookup(ctx context.Context, naics string) (valuation.IndustryBenchmark, error) {
	if _, err := Levels(naics); err != nil {
		return valuation.IndustryBenchmark{}, err
	}
	for _, src := range c {
		b, err := src.Lookup(ctx, naics)
		if err == nil {
			return b, nil
		}
		if ctx.Err() != nil {
			return valuation.IndustryBenchmark{}, eris.Wrap(ctx.Err(), "benchmark: lookup")
		}
		if !errors.Is(err, ErrNotFound) {
			zap.L().Warn("benchmark: source failed, trying next",
				zap.String("naics", naics),
				zap.Error(err),
			)
		}
	}
	return valuation.IndustryBenchmark{}, eris.Wrapf(ErrNotFound, "naics %s", naics)
}

// Levels returns the lookup order for a code, most specific first. For
// "238220" it returns ["238220", "2382", "23"].
func Levels(naics string) ([]string, error) {
	naics = strings.TrimSpace(naics)
	if len(naics) < 2 || len(naics) > 6 {
		return nil, eris.Wrapf(ErrInvalidNAICS, "%q", naics)
	}
	for _, r := range naics {
		if r < '0' || r > '9' {
			return nil, eris.Wrapf(ErrInvalidNAICS, "%q", naics)
		}
	}

	levels := []string{naics}
	if len(naics) > 4 {
		levels = append(levels, naics[:4])
	}
	if len(naics) > 2 {
		levels = append(levels, naics[:2])
	}
	return levels, nil
}
