package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/signals"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testSnapshot(company string, at time.Time, bri float64, evMid int64) *model.ValuationSnapshot {
	return &model.ValuationSnapshot{
		CompanyID:      company,
		Reason:         model.ReasonAssessmentCompleted,
		CreatedAt:      at,
		AdjustedEBITDA: decimal.NewFromInt(1_000_000),
		BRIScore:       &bri,
		CategoryScores: map[model.Category]float64{model.CategoryFinancial: bri},
		V2:             &model.ValuationV2{EVMid: decimal.NewFromInt(evMid)},
	}
}

func TestSQLite_Snapshots_Unvalued(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	snap := &model.ValuationSnapshot{CompanyID: "acme", Reason: model.ReasonAssessmentCompleted, CreatedAt: t0}
	require.NoError(t, st.AppendSnapshot(ctx, snap))

	var evMid *string
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT ev_mid FROM valuation_snapshots WHERE id = ?`, snap.ID).Scan(&evMid))
	assert.Nil(t, evMid)

	got, err := st.LatestSnapshot(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, got.V2)
	assert.False(t, got.CurrentValue().Valid)
}

func testSignal(id, company string, at time.Time) model.Signal {
	return model.Signal{
		ID:                   id,
		CompanyID:            company,
		Title:                "Customer concentration",
		Severity:             model.SeverityHigh,
		Confidence:           model.ConfidenceConfident,
		EstimatedValueImpact: decimal.NewNullDecimal(decimal.NewFromInt(-50_000)),
		EventType:            model.EventRiskFactor,
		Category:             model.CategoryMarket,
		CreatedAt:            at,
	}
}

// --- Snapshots ---

func TestSQLite_Snapshots_AppendAndQuery(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testSnapshot("acme", t0, 0.6, 3_000_000)
	second := testSnapshot("acme", t0.AddDate(0, 1, 0), 0.7, 3_400_000)
	other := testSnapshot("zenith", t0, 0.5, 900_000)
	for _, s := range []*model.ValuationSnapshot{first, second, other} {
		require.NoError(t, st.AppendSnapshot(ctx, s))
		assert.NotEmpty(t, s.ID)
	}

	latest, err := st.LatestSnapshot(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, latest.V2.EVMid.Equal(decimal.NewFromInt(3_400_000)))
	require.NotNil(t, latest.BRIScore)
	assert.InDelta(t, 0.7, *latest.BRIScore, 1e-9)
	assert.InDelta(t, 0.7, latest.CategoryScores[model.CategoryFinancial], 1e-9)

	asOf, err := st.SnapshotAsOf(ctx, "acme", t0.AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Equal(t, first.ID, asOf.ID)

	_, err = st.SnapshotAsOf(ctx, "acme", t0.Add(-time.Hour))
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := st.ListSnapshots(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	limited, err := st.ListSnapshots(ctx, "acme", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	companies, err := st.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "zenith"}, companies)
}

func TestSQLite_Snapshots_AppendOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	snap := testSnapshot("acme", t0, 0.6, 1)
	require.NoError(t, st.AppendSnapshot(ctx, snap))
	assert.Error(t, st.AppendSnapshot(ctx, snap), "re-inserting the same snapshot id must fail")

	assert.Error(t, st.AppendSnapshot(ctx, &model.ValuationSnapshot{}))
}

func TestSQLite_LatestSnapshot_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.LatestSnapshot(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Drift reports ---

func TestSQLite_DriftReports(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	jan := &model.DriftReport{
		CompanyID:   "acme",
		PeriodStart: t0,
		PeriodEnd:   t0.AddDate(0, 1, 0),
		DriftScore:  -0.12,
		Direction:   model.DirectionDeclining,
		Summary:     "Buyer readiness declined.",
	}
	feb := &model.DriftReport{
		CompanyID:   "acme",
		PeriodStart: t0.AddDate(0, 1, 0),
		PeriodEnd:   t0.AddDate(0, 2, 0),
		Direction:   model.DirectionStable,
	}
	require.NoError(t, st.SaveDriftReport(ctx, jan))
	require.NoError(t, st.SaveDriftReport(ctx, feb))

	dup := *jan
	dup.ID = ""
	err := st.SaveDriftReport(ctx, &dup)
	assert.True(t, errors.Is(err, ErrDuplicateReport), err)

	reports, err := st.ListDriftReports(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, feb.ID, reports[0].ID)
	assert.Equal(t, "Buyer readiness declined.", reports[1].Summary)
	assert.Equal(t, model.DirectionDeclining, reports[1].Direction)
}

// --- Signals ---

func TestSQLite_Signals_AppendIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendSignals(ctx, []model.Signal{testSignal("s1", "acme", t0)}))
	_, err := st.UpdateSignalStatus(ctx, "s1", model.StatusAcknowledged)
	require.NoError(t, err)

	// Re-ingesting the same signal keeps the acknowledged status.
	require.NoError(t, st.AppendSignals(ctx, []model.Signal{testSignal("s1", "acme", t0)}))
	got, err := st.GetSignal(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAcknowledged, got.ResolutionStatus)
	assert.True(t, got.EstimatedValueImpact.Decimal.Equal(decimal.NewFromInt(-50_000)))
}

func TestSQLite_Signals_RejectsInvalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	bad := testSignal("s1", "acme", t0)
	bad.Severity = "SEVERE"
	err := st.AppendSignals(context.Background(), []model.Signal{bad})
	assert.True(t, errors.Is(err, model.ErrUnknownSeverity))
}

func TestSQLite_Signals_ListFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendSignals(ctx, []model.Signal{
		testSignal("a", "acme", t0),
		testSignal("b", "acme", t0.AddDate(0, 0, 10)),
		testSignal("c", "acme", t0.AddDate(0, 1, 5)),
		testSignal("d", "zenith", t0.AddDate(0, 0, 10)),
	}))
	_, err := st.UpdateSignalStatus(ctx, "b", model.StatusDismissed)
	require.NoError(t, err)

	all, err := st.ListSignals(ctx, SignalFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, signalIDs(all))

	open, err := st.ListSignals(ctx, SignalFilter{CompanyID: "acme", Statuses: []model.ResolutionStatus{model.StatusOpen}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, signalIDs(open))

	january, err := st.ListSignals(ctx, SignalFilter{Since: t0, Until: t0.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "d"}, signalIDs(january))

	limited, err := st.ListSignals(ctx, SignalFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Signals_Transitions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.AppendSignals(ctx, []model.Signal{testSignal("s1", "acme", t0)}))

	got, err := st.UpdateSignalStatus(ctx, "s1", model.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, got.ResolutionStatus)

	_, err = st.UpdateSignalStatus(ctx, "s1", model.StatusAcknowledged)
	assert.True(t, errors.Is(err, signals.ErrInvalidTransition))

	got, err = st.UpdateSignalStatus(ctx, "s1", model.StatusOpen)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.ResolutionStatus)

	_, err = st.UpdateSignalStatus(ctx, "missing", model.StatusResolved)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func signalIDs(sigs []model.Signal) []string {
	ids := make([]string, len(sigs))
	for i, s := range sigs {
		ids[i] = s.ID
	}
	return ids
}

// --- Weights ---

func TestSQLite_Weights(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	w, err := st.GetWeights(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, w)

	override := scoring.Weights{model.CategoryFinancial: 0.5, model.CategoryMarket: 0.5}
	require.NoError(t, st.SetWeights(ctx, "acme", override))
	require.NoError(t, st.SetWeights(ctx, GlobalScope, scoring.DefaultWeights()))

	w, err = st.GetWeights(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, override, w)

	// Replacing drops categories that are no longer present.
	require.NoError(t, st.SetWeights(ctx, "acme", scoring.Weights{model.CategoryPersonal: 1}))
	w, err = st.GetWeights(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, scoring.Weights{model.CategoryPersonal: 1}, w)

	global, err := st.GetWeights(ctx, GlobalScope)
	require.NoError(t, err)
	assert.Len(t, global, len(model.Categories))

	assert.Error(t, st.SetWeights(ctx, "acme", scoring.Weights{model.CategoryMarket: -1}))
	assert.Error(t, st.SetWeights(ctx, "", scoring.DefaultWeights()))
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}
