package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the per-category drift direction.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Direction is the overall drift direction.
type Direction string

const (
	DirectionImproving Direction = "IMPROVING"
	DirectionDeclining Direction = "DECLINING"
	DirectionStable    Direction = "STABLE"
)

// CategoryChange is the movement of one category between two snapshots.
type CategoryChange struct {
	Category  Category `json:"category"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"`
	Delta     float64  `json:"delta"`
	Direction Trend    `json:"direction"`
}

// SignalsSummary counts signals raised during a drift period.
type SignalsSummary struct {
	High     int `json:"high" yaml:"high"`
	Critical int `json:"critical" yaml:"critical"`
	Total    int `json:"total" yaml:"total"`
}

// DriftReport is the immutable monthly snapshot-of-snapshots for a company.
type DriftReport struct {
	ID                string              `json:"id"`
	CompanyID         string              `json:"company_id"`
	PeriodStart       time.Time           `json:"period_start"`
	PeriodEnd         time.Time           `json:"period_end"`
	BRIScoreStart     *float64            `json:"bri_score_start"`
	BRIScoreEnd       *float64            `json:"bri_score_end"`
	ValuationStart    decimal.NullDecimal `json:"valuation_start"`
	ValuationEnd      decimal.NullDecimal `json:"valuation_end"`
	CategoryChanges   []CategoryChange    `json:"category_changes"`
	Signals           SignalsSummary      `json:"signals"`
	TasksCompleted    int                 `json:"tasks_completed"`
	TasksPendingStart int                 `json:"tasks_pending_start"`
	CompletionRate    float64             `json:"completion_rate"`
	DriftScore        float64             `json:"drift_score"`
	Direction         Direction           `json:"direction"`
	SignalSeverity    *Severity           `json:"signal_severity,omitempty"`
	Summary           string              `json:"summary"`
	CreatedAt         time.Time           `json:"created_at"`
}
