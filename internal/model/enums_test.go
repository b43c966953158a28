package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		got, err := ParseCategory(" " + string(c) + " ")
		require.NoError(t, err)
		assert.Equal(t, c, got)
		assert.NotEqual(t, string(c), c.Label())
	}

	got, err := ParseCategory("legal_tax")
	require.NoError(t, err)
	assert.Equal(t, CategoryLegalTax, got)

	_, err = ParseCategory("HR")
	assert.True(t, errors.Is(err, ErrUnknownCategory))
	assert.Equal(t, "HR", Category("HR").Label())
}

func TestUnmarshal_RejectsUnknownEnums(t *testing.T) {
	t.Parallel()

	var r AssessmentResponse
	err := json.Unmarshal([]byte(`{"question_id":"q","category":"SALES","max_impact_points":"5"}`), &r)
	assert.True(t, errors.Is(err, ErrUnknownCategory), err)

	var s Signal
	err = yaml.Unmarshal([]byte("id: s1\nseverity: SEVERE\n"), &s)
	assert.True(t, errors.Is(err, ErrUnknownSeverity), err)

	var task Task
	err = yaml.Unmarshal([]byte("id: t1\neffort: HUGE\n"), &task)
	assert.True(t, errors.Is(err, ErrUnknownEffort), err)
}

func TestUnmarshal_Signal(t *testing.T) {
	t.Parallel()

	var s Signal
	err := yaml.Unmarshal([]byte(`
id: s1
title: Customer concentration above 40%
severity: high
confidence: somewhat_confident
resolution_status: OPEN
event_type: risk_factor
category: MARKET
estimated_value_impact: "-125000.50"
`), &s)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, SeverityHigh, s.Severity)
	assert.Equal(t, ConfidenceSomewhatConfident, s.Confidence)
	require.True(t, s.EstimatedValueImpact.Valid)
	assert.True(t, s.EstimatedValueImpact.Decimal.Equal(decimal.RequireFromString("-125000.50")))
}

func TestSignalValidate(t *testing.T) {
	t.Parallel()

	ok := Signal{
		ID:               "s",
		Severity:         SeverityLow,
		Confidence:       ConfidenceVerified,
		ResolutionStatus: StatusOpen,
		EventType:        EventRiskFactor,
	}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name   string
		mutate func(*Signal)
		want   error
	}{
		{"severity", func(s *Signal) { s.Severity = "x" }, ErrUnknownSeverity},
		{"confidence", func(s *Signal) { s.Confidence = "x" }, ErrUnknownConfidence},
		{"status", func(s *Signal) { s.ResolutionStatus = "x" }, ErrUnknownStatus},
		{"category", func(s *Signal) { s.Category = "x" }, ErrUnknownCategory},
		{"event", func(s *Signal) { s.EventType = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := ok
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want))
			}
		})
	}
}

func TestLevelsIndex(t *testing.T) {
	t.Parallel()

	for i, l := range ImpactLevels {
		assert.Equal(t, i, l.Index())
	}
	for i, l := range DifficultyLevels {
		assert.Equal(t, i, l.Index())
	}
	assert.Equal(t, -1, ImpactLevel("x").Index())

	got, err := ParseDifficultyLevel("very_high")
	require.NoError(t, err)
	assert.Equal(t, DifficultyVeryHigh, got)
	_, err = ParseImpactLevel("enormous")
	assert.True(t, errors.Is(err, ErrUnknownImpact))
}

func TestSnapshotAccessors(t *testing.T) {
	t.Parallel()

	var nilSnap *ValuationSnapshot
	_, ok := nilSnap.CategoryScore(CategoryFinancial)
	assert.False(t, ok)
	assert.False(t, nilSnap.Valued())
	assert.False(t, nilSnap.CurrentValue().Valid)

	s := &ValuationSnapshot{CategoryScores: map[Category]float64{CategoryMarket: 0.4}}
	assert.False(t, s.CurrentValue().Valid)

	s.V2 = &ValuationV2{EVMid: decimal.NewFromInt(900000)}
	v, ok := s.CategoryScore(CategoryMarket)
	assert.True(t, ok)
	assert.Equal(t, 0.4, v)
	require.True(t, s.CurrentValue().Valid)
	assert.True(t, s.CurrentValue().Decimal.Equal(decimal.NewFromInt(900000)))
}

func TestParseSnapshotReason(t *testing.T) {
	t.Parallel()

	got, err := ParseSnapshotReason(" monthly_drift ")
	require.NoError(t, err)
	assert.Equal(t, ReasonMonthlyDrift, got)
	assert.True(t, ReasonFactorEdit.Valid())

	_, err = ParseSnapshotReason("WHIM")
	assert.True(t, errors.Is(err, ErrUnknownReason))
	assert.False(t, SnapshotReason("").Valid())
}
