package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssessmentResponse is one answer to one assessment question. A question can
// be answered many times across assessments; only the most recently updated
// response is authoritative.
type AssessmentResponse struct {
	QuestionID      string              `json:"question_id" yaml:"question_id"`
	AssessmentID    string              `json:"assessment_id,omitempty" yaml:"assessment_id,omitempty"`
	Category        Category            `json:"category" yaml:"category"`
	MaxImpactPoints decimal.Decimal     `json:"max_impact_points" yaml:"max_impact_points"`
	ScoreValue      decimal.NullDecimal `json:"score_value" yaml:"score_value"`
	Inactive        bool                `json:"inactive,omitempty" yaml:"inactive,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at" yaml:"updated_at"`
}

// Answered reports whether a selected option carries a score.
func (r AssessmentResponse) Answered() bool {
	return r.ScoreValue.Valid
}

// CategoryScore is a derived 0-1 score for one category.
type CategoryScore struct {
	Category Category        `json:"category"`
	Score    float64         `json:"score"`
	Earned   decimal.Decimal `json:"earned"`
	Max      decimal.Decimal `json:"max"`
	Answered int             `json:"answered"`
	Total    int             `json:"total"`
}
