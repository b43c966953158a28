package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// SnapshotReason records what triggered a scoring event.
type SnapshotReason string

const (
	ReasonAssessmentCompleted SnapshotReason = "ASSESSMENT_COMPLETED"
	ReasonFactorEdit          SnapshotReason = "FACTOR_EDIT"
	ReasonMonthlyDrift        SnapshotReason = "MONTHLY_DRIFT"
)

// ErrUnknownReason is returned for a snapshot reason outside the fixed set.
var ErrUnknownReason = eris.New("model: unknown snapshot reason")

// Valid reports whether r is a known reason.
func (r SnapshotReason) Valid() bool {
	switch r {
	case ReasonAssessmentCompleted, ReasonFactorEdit, ReasonMonthlyDrift:
		return true
	}
	return false
}

// ParseSnapshotReason parses a reason case-insensitively.
func ParseSnapshotReason(v string) (SnapshotReason, error) {
	r := SnapshotReason(strings.ToUpper(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", eris.Wrapf(ErrUnknownReason, "%q", v)
	}
	return r, nil
}

// AdjustmentBucket says which value-gap bucket an adjustment belongs to.
type AdjustmentBucket string

const (
	BucketAddressable AdjustmentBucket = "addressable"
	BucketStructural  AdjustmentBucket = "structural"
)

// Adjustment is one named, explained change applied during valuation.
// Impact is a signed fraction for quality adjustments, a discount rate for
// risk discounts, and a currency amount for EBITDA adjustments.
type Adjustment struct {
	Key         string           `json:"key"`
	Label       string           `json:"label"`
	Impact      decimal.Decimal  `json:"impact"`
	Explanation string           `json:"explanation"`
	Bucket      AdjustmentBucket `json:"bucket,omitempty"`
}

// ValuationV1 holds the legacy single-discount valuation fields.
type ValuationV1 struct {
	BaseMultiple     decimal.Decimal `json:"base_multiple"`
	DiscountFraction decimal.Decimal `json:"discount_fraction"`
	FinalMultiple    decimal.Decimal `json:"final_multiple"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	PotentialValue   decimal.Decimal `json:"potential_value"`
	ValueGap         decimal.Decimal `json:"value_gap"`
}

// ValuationV2 holds the quality/risk-adjusted valuation.
type ValuationV2 struct {
	BusinessQualityScore    float64         `json:"business_quality_score"`
	DealReadinessScore      float64         `json:"deal_readiness_score"`
	RiskSeverityScore       float64         `json:"risk_severity_score"`
	IndustryMedianMultiple  decimal.Decimal `json:"industry_median_multiple"`
	QualityAdjustedMultiple decimal.Decimal `json:"quality_adjusted_multiple"`
	RiskMultiplier          decimal.Decimal `json:"risk_multiplier"`
	RiskAdjustedMultiple    decimal.Decimal `json:"risk_adjusted_multiple"`
	SpreadFactor            decimal.Decimal `json:"spread_factor"`
	EVLow                   decimal.Decimal `json:"ev_low"`
	EVMid                   decimal.Decimal `json:"ev_mid"`
	EVHigh                  decimal.Decimal `json:"ev_high"`
	DLOMRate                decimal.Decimal `json:"dlom_rate"`
	DLOMAmount              decimal.Decimal `json:"dlom_amount"`
	QualityAdjustments      []Adjustment    `json:"quality_adjustments"`
	RiskDiscounts           []Adjustment    `json:"risk_discounts"`
}

// ValueGap splits potential minus current value into three buckets.
type ValueGap struct {
	Total        decimal.Decimal `json:"total"`
	Addressable  decimal.Decimal `json:"addressable"`
	Structural   decimal.Decimal `json:"structural"`
	Aspirational decimal.Decimal `json:"aspirational"`
}

// ValuationSnapshot is an immutable record created once per scoring event.
// Stores append snapshots and never update them.
//
// CategoryScores holds only categories that had at least one active
// question. V1, V2 and Gap are nil when buyer readiness was unavailable and
// the business could not be valued.
type ValuationSnapshot struct {
	ID                  string               `json:"id"`
	CompanyID           string               `json:"company_id"`
	Reason              SnapshotReason       `json:"reason"`
	CreatedAt           time.Time            `json:"created_at"`
	AdjustedEBITDA      decimal.Decimal      `json:"adjusted_ebitda"`
	EBITDAEstimated     bool                 `json:"ebitda_estimated"`
	EBITDAAdjustments   []Adjustment         `json:"ebitda_adjustments"`
	IndustryMultipleLow decimal.Decimal      `json:"industry_multiple_low"`
	IndustryMultipleHi  decimal.Decimal      `json:"industry_multiple_high"`
	CoreScore           float64              `json:"core_score"`
	BRIScore            *float64             `json:"bri_score"`
	CategoryScores      map[Category]float64 `json:"category_scores"`
	V1                  *ValuationV1         `json:"v1,omitempty"`
	V2                  *ValuationV2         `json:"v2,omitempty"`
	Gap                 *ValueGap            `json:"gap,omitempty"`
}

// CategoryScore returns the stored score for c and whether it was present.
func (s *ValuationSnapshot) CategoryScore(c Category) (float64, bool) {
	if s == nil || s.CategoryScores == nil {
		return 0, false
	}
	v, ok := s.CategoryScores[c]
	return v, ok
}

// Valued reports whether the snapshot carries a valuation.
func (s *ValuationSnapshot) Valued() bool {
	return s != nil && s.V2 != nil
}

// CurrentValue is the displayed valuation: the V2 mid estimate. It is null
// for a missing or unvalued snapshot.
func (s *ValuationSnapshot) CurrentValue() decimal.NullDecimal {
	if !s.Valued() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(s.V2.EVMid)
}
