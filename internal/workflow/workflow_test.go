package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/store"
)

var (
	febStart = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	marStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newEngine(t *testing.T) (*engine.Engine, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "workflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return engine.New(st, nil, engine.Options{Retry: resilience.RetryConfig{MaxAttempts: 1}}), st
}

func snapshot(companyID string, at time.Time, bri float64) *model.ValuationSnapshot {
	scores := make(map[model.Category]float64, len(model.Categories))
	for _, c := range model.Categories {
		scores[c] = bri
	}
	s := &model.ValuationSnapshot{
		CompanyID:      companyID,
		Reason:         model.ReasonAssessmentCompleted,
		CreatedAt:      at,
		BRIScore:       &bri,
		CategoryScores: scores,
	}
	s.V2 = &model.ValuationV2{EVMid: decimal.NewFromInt(int64(bri * 10_000_000))}
	return s
}

func TestMonthlyDrift_EndToEnd(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()
	require.NoError(t, st.AppendSnapshot(ctx, snapshot("acme", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), 0.8)))
	require.NoError(t, st.AppendSnapshot(ctx, snapshot("acme", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), 0.6)))
	require.NoError(t, st.AppendSnapshot(ctx, snapshot("beta", time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), 0.5)))

	run := func() MonthlyDriftResult {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestWorkflowEnvironment()
		Register(env, &Activities{Engine: eng})
		env.ExecuteWorkflow(WorkflowName, MonthlyDriftInput{PeriodStart: febStart, PeriodEnd: marStart})
		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())
		var res MonthlyDriftResult
		require.NoError(t, env.GetWorkflowResult(&res))
		return res
	}

	first := run()
	assert.Equal(t, 2, first.Companies)
	assert.Equal(t, 2, first.Reports)
	assert.Equal(t, 0, first.Failed)
	assert.Equal(t, 1, first.Signals, "acme fell 0.2 and should raise a drift signal")

	reports, err := st.ListDriftReports(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, model.DirectionDeclining, reports[0].Direction)

	second := run()
	assert.Equal(t, 0, second.Reports)
	assert.Equal(t, 2, second.Skipped)
}

func TestMonthlyDrift_DefaultPeriodAndFailures(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	Register(env, &Activities{})
	env.SetStartTime(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))

	env.OnActivity(ActivityListCompanies, mock.Anything).Return([]string{"a", "b", "c"}, nil)
	env.OnActivity(ActivityRunDrift, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in CompanyDriftInput) (CompanyDriftResult, error) {
			if !in.PeriodStart.Equal(febStart) || !in.PeriodEnd.Equal(marStart) {
				return CompanyDriftResult{}, temporal.NewNonRetryableApplicationError("wrong period", "test", nil)
			}
			switch in.CompanyID {
			case "a":
				return CompanyDriftResult{CompanyID: "a", ReportID: "r-a", SignalID: "drift-a"}, nil
			case "b":
				return CompanyDriftResult{CompanyID: "b", NoSnapshots: true}, nil
			default:
				return CompanyDriftResult{}, temporal.NewNonRetryableApplicationError("boom", "test", nil)
			}
		})

	env.ExecuteWorkflow(MonthlyDrift, MonthlyDriftInput{FanOut: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res MonthlyDriftResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, febStart, res.PeriodStart)
	assert.Equal(t, 3, res.Companies)
	assert.Equal(t, 1, res.Reports)
	assert.Equal(t, 1, res.NoSnapshots)
	assert.Equal(t, 1, res.Signals)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"c"}, res.FailedCompanies)
}

func TestMonthlyDrift_ListFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	Register(env, &Activities{})

	env.ExecuteWorkflow(MonthlyDrift, MonthlyDriftInput{PeriodStart: febStart, PeriodEnd: marStart})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestActivities_RunDrift(t *testing.T) {
	eng, _ := newEngine(t)
	acts := &Activities{Engine: eng}
	ctx := context.Background()

	out, err := acts.RunDrift(ctx, CompanyDriftInput{CompanyID: "ghost", PeriodStart: febStart, PeriodEnd: marStart})
	require.NoError(t, err)
	assert.True(t, out.NoSnapshots)

	_, err = acts.RunDrift(ctx, CompanyDriftInput{CompanyID: "acme", PeriodStart: marStart, PeriodEnd: febStart})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())

	ids, err := acts.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core))

	l.Debug("d", "k", 1)
	l.Info("i")
	l.Warn("w")
	l.With("company_id", "acme").Error("e", "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	fields := entries[3].ContextMap()
	assert.Equal(t, "acme", fields["company_id"])
	assert.EqualValues(t, 2, fields["attempt"])
}
