package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/config"
	"github.com/sells-group/readiness-engine/internal/resilience"
)

// ScheduleID names the monthly schedule.
const ScheduleID = "readiness-monthly-drift"

// monthlyCron fires at 06:00 UTC on the first of each month.
const monthlyCron = "0 6 1 * *"

// Dial connects to Temporal, retrying while the server is unreachable.
func Dial(ctx context.Context, cfg config.TemporalConfig, retry resilience.RetryConfig) (client.Client, error) {
	opts := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewLogger(zap.L()),
	}
	retry.ShouldRetry = func(err error) bool { return ctx.Err() == nil }
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("workflow: temporal not reachable, retrying",
			zap.String("host_port", cfg.HostPort),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	c, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (client.Client, error) {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.DialContext(dialCtx, opts)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: dial temporal %s namespace %s", cfg.HostPort, cfg.Namespace)
	}
	return c, nil
}

// NewWorker registers the workflow and activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, acts *Activities, concurrency int) worker.Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	Register(w, acts)
	return w
}

// registry is satisfied by both worker.Worker and the SDK test environment.
type registry interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// Register adds the workflow and activities to r.
func Register(r registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(MonthlyDrift, workflow.RegisterOptions{Name: WorkflowName})
	r.RegisterActivityWithOptions(acts.ListCompanies, activity.RegisterOptions{Name: ActivityListCompanies})
	r.RegisterActivityWithOptions(acts.RunDrift, activity.RegisterOptions{Name: ActivityRunDrift})
}

// EnsureSchedule creates the monthly schedule unless it already exists.
func EnsureSchedule(ctx context.Context, c client.Client, taskQueue string) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{monthlyCron},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        ScheduleID + "-run",
			Workflow:  WorkflowName,
			Args:      []any{MonthlyDriftInput{}},
			TaskQueue: taskQueue,
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		zap.L().Debug("workflow: schedule already exists", zap.String("schedule_id", ScheduleID))
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "workflow: create schedule")
	}
	zap.L().Info("workflow: schedule created", zap.String("schedule_id", ScheduleID), zap.String("cron", monthlyCron))
	return nil
}

// Start runs the workflow once now. The workflow ID is derived from the
// period so two starts for the same month share one execution.
func Start(ctx context.Context, c client.Client, taskQueue string, in MonthlyDriftInput) (client.WorkflowRun, error) {
	id := "monthly-drift"
	if !in.PeriodStart.IsZero() {
		id = fmt.Sprintf("monthly-drift-%s", in.PeriodStart.UTC().Format("2006-01"))
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: taskQueue,
	}, WorkflowName, in)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: start monthly drift")
	}
	zap.L().Info("workflow: monthly drift started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return run, nil
}
