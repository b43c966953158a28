package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/priority"
	"github.com/sells-group/readiness-engine/internal/signals"
)

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("table"))
	assert.NoError(t, checkFormat("json"))
	assert.Error(t, checkFormat("csv"))
}

func TestMoneyAndScore(t *testing.T) {
	got := money(decimal.RequireFromString("1234566.6"))
	assert.True(t, strings.HasPrefix(got, "$"), got)
	assert.Equal(t, "1234567", strings.NewReplacer("$", "", ",", "").Replace(got))

	assert.Equal(t, "n/a", score(nil))
	assert.Equal(t, "n/a", nullMoney(decimal.NullDecimal{}))
	v := 0.61234
	assert.Equal(t, "0.612", score(&v))
}

func TestWriteJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestFormatTasks(t *testing.T) {
	var buf bytes.Buffer
	formatTasks(&buf, []priority.RankedTask{
		{Task: model.Task{ID: "t1", Title: "Document SOPs", Impact: model.ImpactHigh, Difficulty: model.DifficultyLow, Value: decimal.NewFromInt(25000)}, Rank: 5, Band: priority.BandHighest},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "RANK")
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[2], "HIGHEST")
	assert.Contains(t, lines[2], "Document SOPs")
	assert.Contains(t, lines[2], "t1")
}

func TestFormatSnapshots(t *testing.T) {
	bri := 0.7
	s := model.ValuationSnapshot{
		CompanyID: "acme",
		Reason:    model.ReasonMonthlyDrift,
		CreatedAt: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		BRIScore:  &bri,
		CoreScore: 0.55,
	}

	var buf bytes.Buffer
	formatSnapshots(&buf, []model.ValuationSnapshot{s, {Reason: model.ReasonFactorEdit}})
	out := buf.String()
	assert.Contains(t, out, "2026-03-01 06:00")
	assert.Contains(t, out, "MONTHLY_DRIFT")
	assert.Contains(t, out, "0.700")
	assert.Contains(t, out, "n/a")
}

func TestFormatDriftReports(t *testing.T) {
	sev := model.SeverityHigh
	start, end := 0.8, 0.6
	var buf bytes.Buffer
	formatDriftReports(&buf, []model.DriftReport{{
		PeriodStart:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		BRIScoreStart:  &start,
		BRIScoreEnd:    &end,
		DriftScore:     -0.2,
		Direction:      model.DirectionDeclining,
		SignalSeverity: &sev,
		Summary:        "readiness fell",
	}})
	out := buf.String()
	assert.Contains(t, out, "2026-02")
	assert.Contains(t, out, "-0.2000")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "readiness fell")
}

func TestFormatSignals(t *testing.T) {
	var buf bytes.Buffer
	formatSignals(&buf, signals.Display{
		Active: []signals.SignalGroup{{
			Title:           "2 risk factors identified",
			Count:           2,
			AggregateScore:  1.5,
			HighestSeverity: model.SeverityCritical,
		}},
		Queued:           []signals.SignalGroup{{}, {}},
		TotalSignalCount: 4,
	})
	out := buf.String()
	assert.Contains(t, out, "2 risk factors identified")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "4 signals, 2 groups queued")
}

func TestFormatAssessment_Unvalued(t *testing.T) {
	var buf bytes.Buffer
	formatAssessment(&buf, &engine.Assessment{Snapshot: &model.ValuationSnapshot{
		CompanyID:      "beta",
		AdjustedEBITDA: decimal.NewFromInt(400000),
	}})
	out := buf.String()
	assert.Contains(t, out, "beta")
	assert.Contains(t, out, "Enterprise value:")
	assert.Contains(t, out, "n/a")
	assert.NotContains(t, out, "Value gap")
}
