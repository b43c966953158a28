package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/workflow"
)

var (
	workerConcurrency int
	workerSchedule    bool
	workerRunNow      bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for the monthly drift workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		retry := resilience.FromRetryConfig(cfg.Engine.Retry.MaxAttempts, cfg.Engine.Retry.InitialBackoffMs, cfg.Engine.Retry.MaxBackoffMs)
		c, err := workflow.Dial(ctx, cfg.Temporal, retry)
		if err != nil {
			return err
		}
		defer c.Close()

		if workerSchedule {
			if err := workflow.EnsureSchedule(ctx, c, cfg.Temporal.TaskQueue); err != nil {
				return err
			}
		}

		w := workflow.NewWorker(c, cfg.Temporal.TaskQueue, &workflow.Activities{Engine: env.Engine}, workerConcurrency)
		if err := w.Start(); err != nil {
			return eris.Wrap(err, "start temporal worker")
		}
		defer w.Stop()
		zap.L().Info("temporal worker started",
			zap.String("namespace", cfg.Temporal.Namespace),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)

		if workerRunNow {
			if _, err := workflow.Start(ctx, c, cfg.Temporal.TaskQueue, workflow.MonthlyDriftInput{}); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
		case <-worker.InterruptCh():
		}
		zap.L().Info("stopping temporal worker")
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "max concurrent activities and workflow tasks")
	workerCmd.Flags().BoolVar(&workerSchedule, "schedule", true, "create the monthly schedule if missing")
	workerCmd.Flags().BoolVar(&workerRunNow, "run-now", false, "start one drift run for last month immediately")
	rootCmd.AddCommand(workerCmd)
}
