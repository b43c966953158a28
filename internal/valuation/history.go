package valuation

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// IndustryBenchmark is one observation of an industry's multiple range and
// average EBITDA margin.
type IndustryBenchmark struct {
	NAICS     string          `json:"naics" yaml:"naics"`
	Label     string          `json:"label,omitempty" yaml:"label,omitempty"`
	Multiples Multiples       `json:"multiples" yaml:"multiples"`
	AvgMargin decimal.Decimal `json:"avg_margin" yaml:"avg_margin"`
	Source    string          `json:"source,omitempty" yaml:"source,omitempty"`
	AsOf      time.Time       `json:"as_of" yaml:"as_of"`
}

// BenchmarkHistory is an append-only, time-ordered list of benchmark
// observations for one industry. Re-enrichment appends a new version
// instead of overwriting the old one so trend comparisons stay possible.
type BenchmarkHistory struct {
	versions []IndustryBenchmark
}

// NewBenchmarkHistory builds a history from existing observations in any
// order.
func NewBenchmarkHistory(observations ...IndustryBenchmark) (*BenchmarkHistory, error) {
	h := &BenchmarkHistory{}
	sorted := append([]IndustryBenchmark(nil), observations...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AsOf.Before(sorted[j].AsOf) })
	for _, b := range sorted {
		if err := h.Append(b); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Append adds a new version. Observations must not predate the latest one.
func (h *BenchmarkHistory) Append(b IndustryBenchmark) error {
	if err := b.Multiples.Validate(); err != nil {
		return eris.Wrapf(err, "valuation: append benchmark %s", b.NAICS)
	}
	if latest, ok := h.Latest(); ok && b.AsOf.Before(latest.AsOf) {
		return eris.Errorf("valuation: benchmark %s as of %s predates latest %s",
			b.NAICS, b.AsOf.Format(time.DateOnly), latest.AsOf.Format(time.DateOnly))
	}
	h.versions = append(h.versions, b)
	return nil
}

// Len returns the number of versions.
func (h *BenchmarkHistory) Len() int { return len(h.versions) }

// Latest returns the most recent version.
func (h *BenchmarkHistory) Latest() (IndustryBenchmark, bool) {
	if len(h.versions) == 0 {
		return IndustryBenchmark{}, false
	}
	return h.versions[len(h.versions)-1], true
}

// Previous returns the version before the latest.
func (h *BenchmarkHistory) Previous() (IndustryBenchmark, bool) {
	if len(h.versions) < 2 {
		return IndustryBenchmark{}, false
	}
	return h.versions[len(h.versions)-2], true
}

// AsOf returns the newest version observed at or before t.
func (h *BenchmarkHistory) AsOf(t time.Time) (IndustryBenchmark, bool) {
	for i := len(h.versions) - 1; i >= 0; i-- {
		if !h.versions[i].AsOf.After(t) {
			return h.versions[i], true
		}
	}
	return IndustryBenchmark{}, false
}

// Versions returns a copy of every version, oldest first.
func (h *BenchmarkHistory) Versions() []IndustryBenchmark {
	return append([]IndustryBenchmark(nil), h.versions...)
}
