package drift

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-engine/internal/model"
)

func ptr(v float64) *float64 { return &v }

func snap(bri *float64, scores map[model.Category]float64, evMid string) *model.ValuationSnapshot {
	s := &model.ValuationSnapshot{BRIScore: bri, CategoryScores: scores}
	if evMid != "" {
		s.V2 = &model.ValuationV2{EVMid: decimal.RequireFromString(evMid)}
	}
	return s
}

func TestCalculateDrift_CriticalDecline(t *testing.T) {
	t.Parallel()

	res := CalculateDrift(Input{
		Previous: snap(ptr(0.70), nil, ""),
		Current:  snap(ptr(0.58), nil, ""),
	})

	assert.InDelta(t, -0.12, res.BRIChange, 1e-9)
	require.NotNil(t, res.SignalSeverity)
	assert.Equal(t, model.SeverityCritical, *res.SignalSeverity)
	assert.Equal(t, model.DirectionDeclining, res.Direction)
	assert.InDelta(t, -1.0, res.Factors.BRIChange, 1e-9)
	assert.InDelta(t, -0.6, res.Score, 1e-9)
	assert.Empty(t, res.Actions)
}

func TestDriftSignalSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		change float64
		want   model.Severity
		ok     bool
	}{
		{"large drop", -0.25, model.SeverityCritical, true},
		{"exact critical", -0.10, model.SeverityCritical, true},
		{"high", -0.07, model.SeverityHigh, true},
		{"exact high", -0.05, model.SeverityHigh, true},
		{"small drop", -0.049, "", false},
		{"flat", 0, "", false},
		{"big gain", 0.4, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := DriftSignalSeverity(tt.change)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryChanges(t *testing.T) {
	t.Parallel()

	prev := snap(nil, map[model.Category]float64{
		model.CategoryFinancial:   0.50,
		model.CategoryOperational: 0.60,
		model.CategoryMarket:      0.40,
		model.CategoryLegalTax:    0.80,
	}, "")
	cur := snap(nil, map[model.Category]float64{
		model.CategoryFinancial:   0.56,
		model.CategoryOperational: 0.597,
		model.CategoryMarket:      0.30,
		model.CategoryLegalTax:    0.80,
		model.CategoryPersonal:    0.90,
	}, "")

	changes := CategoryChanges(cur, prev)
	require.Len(t, changes, len(model.Categories))

	byCat := map[model.Category]model.CategoryChange{}
	for _, ch := range changes {
		byCat[ch.Category] = ch
	}
	assert.Equal(t, model.TrendImproving, byCat[model.CategoryFinancial].Direction)
	assert.Equal(t, model.TrendStable, byCat[model.CategoryOperational].Direction)
	assert.Equal(t, model.TrendDeclining, byCat[model.CategoryMarket].Direction)
	assert.Equal(t, model.TrendStable, byCat[model.CategoryLegalTax].Direction)
	// Missing on one side: no delta.
	assert.Zero(t, byCat[model.CategoryPersonal].Delta)
	assert.Zero(t, byCat[model.CategoryTransferability].Delta)
}

func TestCategoryChanges_NilSnapshots(t *testing.T) {
	t.Parallel()

	for _, ch := range CategoryChanges(nil, nil) {
		assert.Zero(t, ch.Delta)
		assert.Equal(t, model.TrendStable, ch.Direction)
	}
}

func TestCompletionRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, CompletionRate(0, 0))
	assert.InDelta(t, 0.25, CompletionRate(1, 3), 1e-9)
	assert.Equal(t, 1.0, CompletionRate(4, 0))
	assert.Zero(t, CompletionRate(-2, 1))
}

func TestCalculateDrift_Factors(t *testing.T) {
	t.Parallel()

	res := CalculateDrift(Input{
		Previous:            snap(ptr(0.60), nil, "1000000"),
		Current:             snap(ptr(0.62), nil, "1100000"),
		StaleDocumentCount:  3,
		Signals:             model.SignalsSummary{High: 2, Critical: 1, Total: 5},
		TasksCompleted:      3,
		TasksPendingAtStart: 1,
	})

	assert.InDelta(t, 0.2, res.Factors.BRIChange, 1e-9)
	assert.InDelta(t, 0.3, res.Factors.Staleness, 1e-9)
	assert.InDelta(t, 0.6, res.Factors.SignalPressure, 1e-9)
	assert.InDelta(t, 0.75, res.Factors.TaskCompletion, 1e-9)
	// 0.6*0.2 - 0.15*0.3 - 0.10*0.6 + 0.15*0.75
	assert.InDelta(t, 0.1275, res.Score, 1e-9)
	assert.Equal(t, model.DirectionImproving, res.Direction)
	assert.Nil(t, res.SignalSeverity)
	require.True(t, res.ValuationEnd.Valid)
	assert.True(t, res.ValuationEnd.Decimal.Equal(decimal.NewFromInt(1100000)))
}

func TestCalculateDrift_FactorCaps(t *testing.T) {
	t.Parallel()

	res := CalculateDrift(Input{
		Previous:           snap(ptr(0.5), nil, ""),
		Current:            snap(ptr(0.5), nil, ""),
		StaleDocumentCount: 40,
		Signals:            model.SignalsSummary{Critical: 9},
	})
	assert.Equal(t, 1.0, res.Factors.Staleness)
	assert.Equal(t, 1.0, res.Factors.SignalPressure)
	assert.InDelta(t, -0.25, res.Score, 1e-9)
	assert.Equal(t, model.DirectionDeclining, res.Direction)
}

func TestCalculateDrift_FallsBackToCategoryDeltas(t *testing.T) {
	t.Parallel()

	prev := snap(nil, map[model.Category]float64{model.CategoryFinancial: 0.8, model.CategoryMarket: 0.5}, "")
	cur := snap(nil, map[model.Category]float64{model.CategoryFinancial: 0.6, model.CategoryMarket: 0.5}, "")

	res := CalculateDrift(Input{Previous: prev, Current: cur})
	// -0.2 * 0.25 over the full default weight of 1.0
	assert.InDelta(t, -0.05, res.BRIChange, 1e-9)
	require.NotNil(t, res.SignalSeverity)
	assert.Equal(t, model.SeverityHigh, *res.SignalSeverity)
}

func TestCalculateDrift_NoPrevious(t *testing.T) {
	t.Parallel()

	res := CalculateDrift(Input{Current: snap(ptr(0.4), map[model.Category]float64{model.CategoryFinancial: 0.4}, "")})
	assert.Nil(t, res.BRIStart)
	require.NotNil(t, res.BRIEnd)
	assert.Zero(t, res.BRIChange)
	assert.Equal(t, model.DirectionStable, res.Direction)
	assert.Nil(t, res.SignalSeverity)
	assert.False(t, res.ValuationStart.Valid)
	assert.False(t, res.ValuationEnd.Valid)
}

func TestCalculateDrift_Deterministic(t *testing.T) {
	t.Parallel()

	in := Input{
		Previous: snap(ptr(0.71), map[model.Category]float64{
			model.CategoryFinancial: 0.7, model.CategoryMarket: 0.6, model.CategoryOperational: 0.9,
		}, "2500000"),
		Current: snap(ptr(0.63), map[model.Category]float64{
			model.CategoryFinancial: 0.6, model.CategoryMarket: 0.45, model.CategoryOperational: 0.7,
		}, "2300000"),
		StaleDocumentCount:  2,
		Signals:             model.SignalsSummary{High: 1, Total: 3},
		TasksCompleted:      1,
		TasksPendingAtStart: 4,
		TopPendingTasks: []model.Task{
			{ID: "t1", Title: "Document SOPs", Category: model.CategoryOperational, Value: decimal.NewFromInt(40000)},
			{ID: "t2", Title: "Diversify customers", Category: model.CategoryMarket, Value: decimal.NewFromInt(90000)},
		},
	}
	first := CalculateDrift(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, CalculateDrift(in))
	}
}

func TestRecommendActions(t *testing.T) {
	t.Parallel()

	changes := CategoryChanges(
		snap(nil, map[model.Category]float64{
			model.CategoryFinancial:       0.60,
			model.CategoryTransferability: 0.20,
			model.CategoryOperational:     0.55,
			model.CategoryMarket:          0.90,
		}, ""),
		snap(nil, map[model.Category]float64{
			model.CategoryFinancial:       0.70,
			model.CategoryTransferability: 0.50,
			model.CategoryOperational:     0.60,
			model.CategoryMarket:          0.80,
		}, ""),
	)
	tasks := []model.Task{
		{ID: "a", Title: "Build management bench", Category: model.CategoryTransferability, Value: decimal.NewFromInt(50000), Status: model.TaskPending},
		{ID: "b", Title: "Audit financials", Category: model.CategoryFinancial, Value: decimal.NewFromInt(120000), Status: model.TaskPending},
		{ID: "c", Title: "Expand marketing", Category: model.CategoryMarket, Value: decimal.NewFromInt(900000), Status: model.TaskPending},
		{ID: "d", Title: "Write SOPs", Category: model.CategoryOperational, Value: decimal.NewFromInt(30000), Status: model.TaskPending},
		{ID: "e", Title: "Done already", Category: model.CategoryFinancial, Value: decimal.NewFromInt(999999), Status: model.TaskCompleted},
		{ID: "f", Title: "Close books monthly", Category: model.CategoryFinancial, Value: decimal.NewFromInt(10000)},
	}

	actions := RecommendActions(changes, tasks, 2, model.SignalsSummary{Critical: 1})
	require.Len(t, actions, MaxActions)

	assert.Equal(t, ActionCategory, actions[0].Kind)
	assert.Equal(t, model.CategoryTransferability, actions[0].Category)
	assert.Equal(t, ActionCategory, actions[1].Kind)
	assert.Equal(t, model.CategoryFinancial, actions[1].Category)

	assert.Equal(t, "b", actions[2].TaskID)
	assert.Equal(t, "a", actions[3].TaskID)
	assert.Equal(t, "d", actions[4].TaskID)
}

func TestRecommendActions_Reminders(t *testing.T) {
	t.Parallel()

	actions := RecommendActions(CategoryChanges(nil, nil), nil, 1, model.SignalsSummary{Critical: 2})
	require.Len(t, actions, 2)
	assert.Equal(t, ActionDocuments, actions[0].Kind)
	assert.Contains(t, actions[0].Title, "1 stale document ")
	assert.Equal(t, ActionSignals, actions[1].Kind)

	assert.Empty(t, RecommendActions(CategoryChanges(nil, nil), nil, 0, model.SignalsSummary{High: 4}))
}

func TestDriftSignal(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res := CalculateDrift(Input{
		Previous: snap(ptr(0.70), map[model.Category]float64{model.CategoryMarket: 0.7}, "2000000"),
		Current:  snap(ptr(0.58), map[model.Category]float64{model.CategoryMarket: 0.5}, "1800000"),
	})

	sig, ok := DriftSignal("sig-1", "co-1", res, at)
	require.True(t, ok)
	assert.Equal(t, model.SeverityCritical, sig.Severity)
	assert.Equal(t, model.EventBRIDrift, sig.EventType)
	assert.Equal(t, model.CategoryMarket, sig.Category)
	require.True(t, sig.EstimatedValueImpact.Valid)
	assert.True(t, sig.EstimatedValueImpact.Decimal.Equal(decimal.NewFromInt(-200000)))
	require.NoError(t, sig.Validate())

	_, ok = DriftSignal("sig-2", "co-1", CalculateDrift(Input{}), at)
	assert.False(t, ok)
}
