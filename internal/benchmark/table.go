package benchmark

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/readiness-engine/internal/valuation"
)

// Table is an in-memory benchmark set keyed by NAICS prefix, with an optional
// catch-all used when no prefix matches.
type Table struct {
	byCode   map[string]valuation.IndustryBenchmark
	fallback *valuation.IndustryBenchmark
}

var builtinAsOf = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sector(naics, label, low, high, margin string) valuation.IndustryBenchmark {
	return valuation.IndustryBenchmark{
		NAICS:     naics,
		Label:     label,
		Multiples: valuation.Multiples{Low: decimal.RequireFromString(low), High: decimal.RequireFromString(high)},
		AvgMargin: decimal.RequireFromString(margin),
		Source:    "built-in",
		AsOf:      builtinAsOf,
	}
}

// DefaultTable returns the built-in sector table for lower middle market
// companies.
func DefaultTable() *Table {
	fallback := sector("", "All industries", "3.0", "5.0", "0.10")
	t := &Table{byCode: map[string]valuation.IndustryBenchmark{}, fallback: &fallback}
	for _, b := range []valuation.IndustryBenchmark{
		sector("23", "Construction", "3.0", "5.0", "0.10"),
		sector("31", "Manufacturing", "4.0", "6.5", "0.12"),
		sector("32", "Manufacturing", "4.0", "6.5", "0.12"),
		sector("33", "Manufacturing", "4.0", "6.5", "0.12"),
		sector("42", "Wholesale trade", "3.5", "5.5", "0.08"),
		sector("44", "Retail trade", "2.5", "4.0", "0.07"),
		sector("45", "Retail trade", "2.5", "4.0", "0.07"),
		sector("48", "Transportation", "3.0", "5.0", "0.09"),
		sector("51", "Information", "5.0", "8.0", "0.18"),
		sector("54", "Professional services", "3.5", "6.0", "0.15"),
		sector("56", "Administrative and support services", "3.0", "5.0", "0.10"),
		sector("62", "Health care", "4.0", "7.0", "0.14"),
		sector("72", "Accommodation and food services", "2.0", "3.5", "0.08"),
		sector("81", "Other services", "2.5", "4.0", "0.12"),
	} {
		t.byCode[b.NAICS] = b
	}
	return t
}

// NewTable builds a table from explicit benchmarks without a catch-all.
// When a code appears more than once the newest observation wins.
func NewTable(benchmarks []valuation.IndustryBenchmark) (*Table, error) {
	t := &Table{byCode: make(map[string]valuation.IndustryBenchmark, len(benchmarks))}
	for _, b := range benchmarks {
		if _, err := Levels(b.NAICS); err != nil {
			return nil, err
		}
		if err := b.Multiples.Validate(); err != nil {
			return nil, eris.Wrapf(err, "benchmark: naics %s", b.NAICS)
		}
		if cur, ok := t.byCode[b.NAICS]; ok && cur.AsOf.After(b.AsOf) {
			continue
		}
		t.byCode[b.NAICS] = b
	}
	return t, nil
}

type tableFile struct {
	Benchmarks []valuation.IndustryBenchmark `yaml:"benchmarks"`
}

// LoadTable reads a YAML benchmark file:
//
//	benchmarks:
//	  - naics: "238220"
//	    label: Plumbing and HVAC contractors
//	    multiples: {low: "3.5", high: "5.5"}
//	    avg_margin: "0.11"
//	    as_of: 2026-01-01T00:00:00Z
func LoadTable(path string) ([]valuation.IndustryBenchmark, *Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "benchmark: read %s", path)
	}
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, eris.Wrapf(err, "benchmark: parse %s", path)
	}
	t, err := NewTable(f.Benchmarks)
	if err != nil {
		return nil, nil, err
	}
	return f.Benchmarks, t, nil
}

// Lookup implements Source.
func (t *Table) Lookup(_ context.Context, naics string) (valuation.IndustryBenchmark, error) {
	levels, err := Levels(naics)
	if err != nil {
		return valuation.IndustryBenchmark{}, err
	}
	for _, code := range levels {
		if b, ok := t.byCode[code]; ok {
			return b, nil
		}
	}
	if t.fallback != nil {
		return *t.fallback, nil
	}
	return valuation.IndustryBenchmark{}, eris.Wrapf(ErrNotFound, "naics %s", naics)
}
