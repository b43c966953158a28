package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/input"
	"github.com/sells-group/readiness-engine/internal/model"
)

var (
	driftCompany   string
	driftAll       bool
	driftStart     string
	driftEnd       string
	driftTasksFile string
	driftStale     int
	driftFormat    string
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compute the monthly drift report for one or all companies",
	Long:  "Compares the latest snapshot at the period end with the latest at the period start, saves a drift report and raises a drift signal when readiness fell. The period defaults to the previous calendar month.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(driftFormat); err != nil {
			return err
		}
		if (driftCompany == "") == !driftAll {
			return eris.New("exactly one of --company or --all is required")
		}
		start, end, err := parsePeriod(driftStart, driftEnd, time.Now())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tasks := map[string][]model.Task{}
		if driftTasksFile != "" {
			companies, err := input.LoadFile(driftTasksFile)
			if err != nil {
				return err
			}
			for _, c := range companies {
				tasks[c.ID] = c.Tasks
			}
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := []string{driftCompany}
		if driftAll {
			if ids, err = env.Store.ListCompanies(ctx); err != nil {
				return eris.Wrap(err, "list companies")
			}
		}
		return runDrift(ctx, env.Engine, ids, start, end, tasks, driftStale, driftFormat, cmd.OutOrStdout())
	},
}

func init() {
	driftCmd.Flags().StringVar(&driftCompany, "company", "", "company ID")
	driftCmd.Flags().BoolVar(&driftAll, "all", false, "run for every company with snapshots")
	driftCmd.Flags().StringVar(&driftStart, "start", "", "period start, YYYY-MM-DD (default: first of last month)")
	driftCmd.Flags().StringVar(&driftEnd, "end", "", "period end, YYYY-MM-DD (default: first of this month)")
	driftCmd.Flags().StringVar(&driftTasksFile, "tasks", "", "company fixture whose tasks drive completion rate")
	driftCmd.Flags().IntVar(&driftStale, "stale-documents", 0, "documents past their refresh date")
	driftCmd.Flags().StringVar(&driftFormat, "format", formatTable, "output format: table or json")
	rootCmd.AddCommand(driftCmd)
}

// parsePeriod reads optional YYYY-MM-DD bounds. Both empty means the month
// before now.
func parsePeriod(start, end string, now time.Time) (time.Time, time.Time, error) {
	if start == "" && end == "" {
		s, e := engine.MonthPeriod(now)
		return s, e, nil
	}
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, eris.New("--start and --end must be given together")
	}
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "parse --start")
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrap(err, "parse --end")
	}
	return s, e, nil
}

// runDrift runs each company in turn. tasks is keyed by company ID. A
// single company fails the command; with several, failures are counted.
func runDrift(ctx context.Context, eng *engine.Engine, ids []string, start, end time.Time, tasks map[string][]model.Task, stale int, format string, out io.Writer) error {
	var outcomes []*engine.DriftOutcome
	var failed int
	for _, id := range ids {
		o, err := eng.RunDrift(ctx, engine.DriftRequest{
			CompanyID:          id,
			PeriodStart:        start,
			PeriodEnd:          end,
			Tasks:              tasks[id],
			StaleDocumentCount: stale,
		})
		switch {
		case errors.Is(err, engine.ErrNoSnapshots):
			zap.L().Info("no snapshots for period", zap.String("company_id", id))
			continue
		case err != nil:
			if len(ids) == 1 {
				return eris.Wrap(err, "drift")
			}
			zap.L().Error("drift failed", zap.String("company_id", id), zap.Error(err))
			failed++
			continue
		}
		outcomes = append(outcomes, o)
	}

	if format == formatJSON {
		return writeJSON(out, outcomes)
	}
	var reports []model.DriftReport
	var skipped int
	for _, o := range outcomes {
		if o.Skipped {
			skipped++
			continue
		}
		reports = append(reports, *o.Report)
	}
	formatDriftReports(out, reports)
	_, _ = fmt.Fprintf(out, "\n%d reports, %d already existed, %d failed\n", len(reports), skipped, failed)
	return nil
}
