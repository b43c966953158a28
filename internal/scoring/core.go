package scoring

import (
	"github.com/rotisserie/eris"
)

// CoreFactors are the five business-model factors behind the core score.
// They come from the company profile, not from assessment responses.
type CoreFactors struct {
	RevenueModel     string `json:"revenue_model" yaml:"revenue_model"`
	GrossMargin      string `json:"gross_margin" yaml:"gross_margin"`
	LaborIntensity   string `json:"labor_intensity" yaml:"labor_intensity"`
	AssetIntensity   string `json:"asset_intensity" yaml:"asset_intensity"`
	OwnerInvolvement string `json:"owner_involvement" yaml:"owner_involvement"`
}

// ErrUnknownFactor is returned for a core factor value outside its table.
var ErrUnknownFactor = eris.New("scoring: unknown core factor value")

var (
	revenueModelScores = map[string]float64{
		"PROJECT_BASED":       0.25,
		"TRANSACTIONAL":       0.50,
		"RECURRING_CONTRACTS": 0.75,
		"SUBSCRIPTION":        1.00,
	}
	grossMarginScores = map[string]float64{
		"LOW":       0.25,
		"MODERATE":  0.50,
		"HIGH":      0.75,
		"EXCELLENT": 1.00,
	}
	laborIntensityScores = map[string]float64{
		"VERY_HIGH": 0.25,
		"HIGH":      0.50,
		"MODERATE":  0.75,
		"LOW":       1.00,
	}
	assetIntensityScores = map[string]float64{
		"ASSET_HEAVY": 0.33,
		"MODERATE":    0.67,
		"ASSET_LIGHT": 1.00,
	}
	ownerInvolvementScores = map[string]float64{
		"CRITICAL": 0.00,
		"HIGH":     0.25,
		"MODERATE": 0.50,
		"LOW":      0.75,
		"MINIMAL":  1.00,
	}
)

// CoreScore averages the five factor scores into a 0-1 core score.
func CoreScore(f CoreFactors) (float64, error) {
	lookups := []struct {
		name  string
		value string
		table map[string]float64
	}{
		{"revenue_model", f.RevenueModel, revenueModelScores},
		{"gross_margin", f.GrossMargin, grossMarginScores},
		{"labor_intensity", f.LaborIntensity, laborIntensityScores},
		{"asset_intensity", f.AssetIntensity, assetIntensityScores},
		{"owner_involvement", f.OwnerInvolvement, ownerInvolvementScores},
	}

	var sum float64
	for _, l := range lookups {
		v, ok := l.table[l.value]
		if !ok {
			return 0, eris.Wrapf(ErrUnknownFactor, "%s=%q", l.name, l.value)
		}
		sum += v
	}
	return sum / float64(len(lookups)), nil
}
