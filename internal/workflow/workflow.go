// Package workflow runs the monthly drift job on Temporal: list every
// company with snapshots, then compute one drift report per company.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/readiness-engine/internal/engine"
)

const (
	WorkflowName          = "monthly_drift"
	ActivityListCompanies = "drift_list_companies"
	ActivityRunDrift      = "drift_run_company"

	defaultFanOut = 10
)

// MonthlyDriftInput selects the period. A zero period means the calendar
// month before the workflow started.
type MonthlyDriftInput struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	// FanOut caps concurrent drift activities.
	FanOut int `json:"fan_out,omitempty"`
}

// CompanyDriftInput is the argument to the per-company activity.
type CompanyDriftInput struct {
	CompanyID   string    `json:"company_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// CompanyDriftResult summarizes one company's drift run.
type CompanyDriftResult struct {
	CompanyID   string `json:"company_id"`
	ReportID    string `json:"report_id,omitempty"`
	Direction   string `json:"direction,omitempty"`
	SignalID    string `json:"signal_id,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
	NoSnapshots bool   `json:"no_snapshots,omitempty"`
}

// MonthlyDriftResult totals a workflow run.
type MonthlyDriftResult struct {
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Companies       int       `json:"companies"`
	Reports         int       `json:"reports"`
	Skipped         int       `json:"skipped"`
	NoSnapshots     int       `json:"no_snapshots"`
	Signals         int       `json:"signals"`
	Failed          int       `json:"failed"`
	FailedCompanies []string  `json:"failed_companies,omitempty"`
}

// MonthlyDrift is the workflow. A failing company is counted and logged;
// it never fails the run for the others.
func MonthlyDrift(ctx workflow.Context, in MonthlyDriftInput) (MonthlyDriftResult, error) {
	log := workflow.GetLogger(ctx)

	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() {
		in.PeriodStart, in.PeriodEnd = engine.MonthPeriod(workflow.Now(ctx))
	}
	fanOut := in.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	res := MonthlyDriftResult{PeriodStart: in.PeriodStart, PeriodEnd: in.PeriodEnd}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var companies []string
	if err := workflow.ExecuteActivity(ctx, ActivityListCompanies).Get(ctx, &companies); err != nil {
		return res, err
	}
	res.Companies = len(companies)
	log.Info("monthly drift started", "companies", len(companies), "period_start", in.PeriodStart)

	for start := 0; start < len(companies); start += fanOut {
		end := min(start+fanOut, len(companies))
		futures := make([]workflow.Future, 0, end-start)
		for _, id := range companies[start:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, ActivityRunDrift, CompanyDriftInput{
				CompanyID:   id,
				PeriodStart: in.PeriodStart,
				PeriodEnd:   in.PeriodEnd,
			}))
		}
		for i, f := range futures {
			id := companies[start+i]
			var out CompanyDriftResult
			if err := f.Get(ctx, &out); err != nil {
				log.Error("drift failed", "company_id", id, "error", err)
				res.Failed++
				res.FailedCompanies = append(res.FailedCompanies, id)
				continue
			}
			switch {
			case out.NoSnapshots:
				res.NoSnapshots++
			case out.Skipped:
				res.Skipped++
			default:
				res.Reports++
			}
			if out.SignalID != "" {
				res.Signals++
			}
		}
	}

	log.Info("monthly drift complete",
		"reports", res.Reports,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}
