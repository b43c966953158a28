package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/drift"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/priority"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/signals"
	"github.com/sells-group/readiness-engine/internal/store"
)

// ErrNoSnapshots means a company has no snapshot on either side of a drift
// period, so there is nothing to compare.
var ErrNoSnapshots = eris.New("engine: no snapshots for drift period")

// ErrInvalidDriftRequest is returned for a request with no company or an
// empty period.
var ErrInvalidDriftRequest = eris.New("engine: invalid drift request")

// DriftRequest describes one company's drift period. Tasks is the task list
// as of the period end; it drives completion rate and recommended actions.
type DriftRequest struct {
	CompanyID          string       `json:"company_id"`
	PeriodStart        time.Time    `json:"period_start"`
	PeriodEnd          time.Time    `json:"period_end"`
	Tasks              []model.Task `json:"tasks,omitempty"`
	StaleDocumentCount int          `json:"stale_document_count,omitempty"`
}

// DriftOutcome is a saved drift report plus the signal it raised, if any.
type DriftOutcome struct {
	Report  *model.DriftReport `json:"report"`
	Result  drift.Result       `json:"result"`
	Signal  *model.Signal      `json:"signal,omitempty"`
	Skipped bool               `json:"skipped,omitempty"`
}

// MonthPeriod returns the calendar month before at, in UTC: the start of the
// previous month and the start of the month containing at.
func MonthPeriod(at time.Time) (start, end time.Time) {
	at = at.UTC()
	end = time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, -1, 0), end
}

// RunDrift compares the latest snapshot at the period end with the latest
// one at the period start, raises a drift signal when buyer readiness fell
// far enough and saves the report. Reports are unique per company and
// period start; a rerun for the same period returns Skipped.
//
// The signal is written first. Its ID is derived from the company and
// period and signal inserts ignore duplicates, so a retry after a failed
// report save never loses or doubles it.
func (e *Engine) RunDrift(ctx context.Context, req DriftRequest) (*DriftOutcome, error) {
	if req.CompanyID == "" {
		return nil, eris.Wrap(ErrInvalidDriftRequest, "no company id")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, eris.Wrapf(ErrInvalidDriftRequest, "period end %s is not after start %s",
			req.PeriodEnd.Format(time.DateOnly), req.PeriodStart.Format(time.DateOnly))
	}
	log := zap.L().With(zap.String("company_id", req.CompanyID), zap.Time("period_start", req.PeriodStart))

	current, err := e.snapshotAt(ctx, req.CompanyID, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	previous, err := e.snapshotAt(ctx, req.CompanyID, req.PeriodStart)
	if err != nil {
		return nil, err
	}
	if current == nil && previous == nil {
		return nil, eris.Wrapf(ErrNoSnapshots, "company %s", req.CompanyID)
	}

	raised, err := e.store.ListSignals(ctx, store.SignalFilter{
		CompanyID: req.CompanyID,
		Since:     req.PeriodStart,
		Until:     req.PeriodEnd,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "engine: signals for %s", req.CompanyID)
	}

	weights, err := e.ResolveWeights(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	in := drift.Input{
		Current:            current,
		Previous:           previous,
		StaleDocumentCount: req.StaleDocumentCount,
		Signals:            signals.Summarize(raised),
		Weights:            weights,
	}
	var pending []model.Task
	for _, t := range req.Tasks {
		switch t.Status {
		case model.TaskCompleted:
			if completedWithin(t, req.PeriodStart, req.PeriodEnd) {
				in.TasksCompleted++
			}
		case model.TaskPending, model.TaskInProgress, "":
			pending = append(pending, t)
		}
	}
	in.TasksPendingAtStart = len(pending)
	ranked, err := priority.SortTasks(pending)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: rank pending tasks for %s", req.CompanyID)
	}
	for _, rt := range ranked {
		in.TopPendingTasks = append(in.TopPendingTasks, rt.Task)
	}

	res := drift.CalculateDrift(in)
	report := drift.BuildReport(drift.Period{
		ID:        uuid.New().String(),
		CompanyID: req.CompanyID,
		Start:     req.PeriodStart,
		End:       req.PeriodEnd,
		CreatedAt: e.now(),
	}, in, res)

	var raisedSig *model.Signal
	sigID := fmt.Sprintf("drift-%s-%s", req.CompanyID, req.PeriodStart.UTC().Format("2006-01-02"))
	if sig, ok := drift.DriftSignal(sigID, req.CompanyID, res, e.now()); ok {
		if err := resilience.Do(ctx, e.retryConfig("append_signals"), func(ctx context.Context) error {
			return e.store.AppendSignals(ctx, []model.Signal{sig})
		}); err != nil {
			return nil, eris.Wrapf(err, "engine: append drift signal %s", req.CompanyID)
		}
		raisedSig = &sig
	}

	err = resilience.Do(ctx, e.retryConfig("save_drift_report"), func(ctx context.Context) error {
		return e.store.SaveDriftReport(ctx, &report)
	})
	if errors.Is(err, store.ErrDuplicateReport) {
		log.Info("engine: drift report already exists, skipping")
		return &DriftOutcome{Result: res, Skipped: true}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "engine: save drift report %s", req.CompanyID)
	}

	out := &DriftOutcome{Report: &report, Result: res, Signal: raisedSig}

	log.Info("engine: drift complete",
		zap.Float64("drift_score", res.Score),
		zap.String("direction", string(res.Direction)),
		zap.Bool("signal", out.Signal != nil),
	)
	return out, nil
}

// completedWithin reports whether t was completed inside [start, end). A
// completed task with no completion time is not counted.
func completedWithin(t model.Task, start, end time.Time) bool {
	return t.CompletedAt != nil && !t.CompletedAt.Before(start) && t.CompletedAt.Before(end)
}

func (e *Engine) snapshotAt(ctx context.Context, companyID string, at time.Time) (*model.ValuationSnapshot, error) {
	snap, err := e.store.SnapshotAsOf(ctx, companyID, at)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "engine: snapshot for %s at %s", companyID, at.Format(time.RFC3339))
	}
	return snap, nil
}

// SignalsDisplay ranks and groups a company's signals for display.
func (e *Engine) SignalsDisplay(ctx context.Context, companyID string) (signals.Display, error) {
	sigs, err := e.store.ListSignals(ctx, store.SignalFilter{CompanyID: companyID})
	if err != nil {
		return signals.Display{}, eris.Wrapf(err, "engine: signals for %s", companyID)
	}
	return signals.ProcessSignalsForDisplay(sigs, e.opts.MaxDisplaySignals)
}

// UpdateSignalStatus moves a signal through its resolution lifecycle.
func (e *Engine) UpdateSignalStatus(ctx context.Context, id string, to model.ResolutionStatus) (*model.Signal, error) {
	sig, err := e.store.UpdateSignalStatus(ctx, id, to)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: update signal %s", id)
	}
	zap.L().Info("engine: signal status changed",
		zap.String("signal_id", id),
		zap.String("company_id", sig.CompanyID),
		zap.String("status", string(to)),
	)
	return sig, nil
}
