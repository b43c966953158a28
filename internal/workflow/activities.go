package workflow

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/engine"
)

// Activities binds workflow activities to an engine.
type Activities struct {
	Engine *engine.Engine
}

// ListCompanies returns every company with at least one snapshot.
func (a *Activities) ListCompanies(ctx context.Context) ([]string, error) {
	if a == nil || a.Engine == nil {
		return nil, temporal.NewNonRetryableApplicationError("workflow: activities not configured", "config", nil)
	}
	ids, err := a.Engine.Store().ListCompanies(ctx)
	return ids, eris.Wrap(err, "workflow: list companies")
}

// RunDrift computes one company's drift report. A company with no
// snapshots in range is reported, not retried.
func (a *Activities) RunDrift(ctx context.Context, in CompanyDriftInput) (CompanyDriftResult, error) {
	res := CompanyDriftResult{CompanyID: in.CompanyID}
	if a == nil || a.Engine == nil {
		return res, temporal.NewNonRetryableApplicationError("workflow: activities not configured", "config", nil)
	}

	out, err := a.Engine.RunDrift(ctx, engine.DriftRequest{
		CompanyID:   in.CompanyID,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
	})
	switch {
	case errors.Is(err, engine.ErrNoSnapshots):
		zap.L().Info("workflow: no snapshots for period", zap.String("company_id", in.CompanyID))
		res.NoSnapshots = true
		return res, nil
	case errors.Is(err, engine.ErrInvalidDriftRequest):
		return res, temporal.NewNonRetryableApplicationError(err.Error(), "invalid_request", err)
	case err != nil:
		return res, err
	}

	res.Skipped = out.Skipped
	if out.Report != nil {
		res.ReportID = out.Report.ID
		res.Direction = string(out.Report.Direction)
	}
	if out.Signal != nil {
		res.SignalID = out.Signal.ID
	}
	return res, nil
}
