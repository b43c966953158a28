package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/readiness-engine/internal/model"
)

func fixture() Data {
	bri := 0.62
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := model.ValuationSnapshot{
		ID:                  "snap-1",
		CompanyID:           "acme",
		Reason:              model.ReasonAssessmentCompleted,
		CreatedAt:           at,
		AdjustedEBITDA:      decimal.NewFromInt(1200000),
		IndustryMultipleLow: decimal.NewFromFloat(4.5),
		IndustryMultipleHi:  decimal.NewFromFloat(6.5),
		CoreScore:           0.75,
		BRIScore:            &bri,
		CategoryScores:      map[model.Category]float64{model.CategoryFinancial: 0.8},
	}
	snap.V2 = &model.ValuationV2{EVMid: decimal.RequireFromString("6543210.55")}
	snap.Gap = &model.ValueGap{Total: decimal.NewFromInt(900000)}

	sev := model.SeverityHigh
	report := model.DriftReport{
		CompanyID:      "acme",
		PeriodStart:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		BRIScoreEnd:    &bri,
		ValuationEnd:   decimal.NewNullDecimal(decimal.RequireFromString("6543210.55")),
		DriftScore:     -0.08,
		Direction:      model.DirectionDeclining,
		TasksCompleted: 2,
		SignalSeverity: &sev,
		Summary:        "BRI fell",
	}

	sig := model.Signal{
		ID:               "sig-1",
		CompanyID:        "acme",
		Title:            "Key customer churn",
		Severity:         model.SeverityCritical,
		Confidence:       model.ConfidenceVerified,
		ResolutionStatus: model.StatusOpen,
		EventType:        model.EventRiskFactor,
		CreatedAt:        at,
		EstimatedValueImpact: decimal.NullDecimal{
			Decimal: decimal.NewFromInt(-250000),
			Valid:   true,
		},
	}
	return Data{
		Snapshots: []model.ValuationSnapshot{snap},
		Reports:   []model.DriftReport{report},
		Signals:   []model.Signal{sig},
	}
}

func cellAt(t *testing.T, sheet *xlsx.Sheet, row, col int) *xlsx.Cell {
	t.Helper()
	require.Greater(t, len(sheet.Rows), row)
	require.Greater(t, len(sheet.Rows[row].Cells), col)
	return sheet.Rows[row].Cells[col]
}

func TestWriteFile_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "acme.xlsx")
	require.NoError(t, WriteFile(path, fixture()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)

	snaps := f.Sheet[SheetSnapshots]
	require.NotNil(t, snaps)
	require.Len(t, snaps.Rows, 2)
	assert.Equal(t, "Company", cellAt(t, snaps, 0, 0).String())
	assert.Equal(t, "BRI", cellAt(t, snaps, 0, 3).String())
	assert.Len(t, snaps.Rows[0].Cells, len(snapshotHeader))
	assert.Equal(t, "acme", cellAt(t, snaps, 1, 0).String())
	assert.Equal(t, string(model.ReasonAssessmentCompleted), cellAt(t, snaps, 1, 2).String())

	bri, err := cellAt(t, snaps, 1, 3).Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.62, bri, 1e-9)

	evMid, err := cellAt(t, snaps, 1, 10).Float()
	require.NoError(t, err)
	assert.InDelta(t, 6543210.55, evMid, 1e-6)

	// No V1 on the fixture, so its columns stay blank.
	assert.Empty(t, cellAt(t, snaps, 1, 13).String())

	drift := f.Sheet[SheetDrift]
	require.NotNil(t, drift)
	require.Len(t, drift.Rows, 2)
	assert.Empty(t, cellAt(t, drift, 1, 5).String())
	valEnd, err := cellAt(t, drift, 1, 6).Float()
	require.NoError(t, err)
	assert.InDelta(t, 6543210.55, valEnd, 1e-6)
	assert.Equal(t, string(model.DirectionDeclining), cellAt(t, drift, 1, 8).String())
	assert.Equal(t, string(model.SeverityHigh), cellAt(t, drift, 1, 14).String())
	assert.Equal(t, "BRI fell", cellAt(t, drift, 1, 15).String())

	sigs := f.Sheet[SheetSignals]
	require.NotNil(t, sigs)
	require.Len(t, sigs.Rows, 2)
	assert.Equal(t, "sig-1", cellAt(t, sigs, 1, 0).String())
	assert.Equal(t, string(model.SeverityCritical), cellAt(t, sigs, 1, 4).String())
	impact, err := cellAt(t, sigs, 1, 9).Float()
	require.NoError(t, err)
	assert.InDelta(t, -250000, impact, 1e-9)
}

func TestBuild_EmptyStillHasHeaders(t *testing.T) {
	t.Parallel()

	f, err := Build(Data{})
	require.NoError(t, err)
	for _, name := range []string{SheetSnapshots, SheetDrift, SheetSignals} {
		sheet := f.Sheet[name]
		require.NotNil(t, sheet, name)
		assert.Len(t, sheet.Rows, 1, name)
	}
}

func TestWrite_Stream(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fixture()))
	assert.NotZero(t, buf.Len())

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 3)
}

func TestWriteFile_BadPath(t *testing.T) {
	t.Parallel()

	err := WriteFile(filepath.Join(t.TempDir(), "missing", "dir", "x.xlsx"), Data{})
	assert.Error(t, err)
}
