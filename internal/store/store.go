// Package store persists valuation snapshots, drift reports, signals, weight
// overrides and the assessment dead-letter queue. Snapshots and reports are
// append-only; signals only ever change resolution status.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/scoring"
)

// GlobalScope is the weight-override scope that applies to every company
// without its own override.
const GlobalScope = "*"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicateReport is returned when a drift report already exists for
	// the company and period start.
	ErrDuplicateReport = eris.New("store: drift report already exists for period")
)

// SignalFilter narrows ListSignals. Zero values match everything.
type SignalFilter struct {
	CompanyID string                   `json:"company_id,omitempty"`
	Statuses  []model.ResolutionStatus `json:"statuses,omitempty"`
	Since     time.Time                `json:"since,omitempty"`
	Until     time.Time                `json:"until,omitempty"`
	Limit     int                      `json:"limit,omitempty"`
}

// Store is the persistence interface used by the engine, API and workflow.
type Store interface {
	// Snapshots
	AppendSnapshot(ctx context.Context, snap *model.ValuationSnapshot) error
	LatestSnapshot(ctx context.Context, companyID string) (*model.ValuationSnapshot, error)
	SnapshotAsOf(ctx context.Context, companyID string, at time.Time) (*model.ValuationSnapshot, error)
	ListSnapshots(ctx context.Context, companyID string, limit int) ([]model.ValuationSnapshot, error)
	ListCompanies(ctx context.Context) ([]string, error)

	// Drift reports
	SaveDriftReport(ctx context.Context, report *model.DriftReport) error
	ListDriftReports(ctx context.Context, companyID string, limit int) ([]model.DriftReport, error)

	// Signals
	AppendSignals(ctx context.Context, signals []model.Signal) error
	GetSignal(ctx context.Context, id string) (*model.Signal, error)
	ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error)
	UpdateSignalStatus(ctx context.Context, id string, to model.ResolutionStatus) (*model.Signal, error)

	// Weight overrides
	GetWeights(ctx context.Context, scope string) (scoring.Weights, error)
	SetWeights(ctx context.Context, scope string, w scoring.Weights) error

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// prepareSnapshot assigns an ID and timestamp to a new snapshot and encodes it.
func prepareSnapshot(snap *model.ValuationSnapshot) ([]byte, error) {
	if snap.CompanyID == "" {
		return nil, eris.New("store: snapshot has no company id")
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(snap)
	return b, eris.Wrap(err, "store: marshal snapshot")
}

// evMid is the indexed mid valuation column; nil stores NULL for a
// snapshot taken without a valuation.
func evMid(snap *model.ValuationSnapshot) *string {
	v := snap.CurrentValue()
	if !v.Valid {
		return nil
	}
	out := v.Decimal.StringFixed(2)
	return &out
}

func prepareReport(r *model.DriftReport) ([]byte, error) {
	if r.CompanyID == "" {
		return nil, eris.New("store: drift report has no company id")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(r)
	return b, eris.Wrap(err, "store: marshal drift report")
}

func prepareSignal(s *model.Signal) ([]byte, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.ResolutionStatus == "" {
		s.ResolutionStatus = model.StatusOpen
	}
	if err := s.Validate(); err != nil {
		return nil, eris.Wrap(err, "store: append signal")
	}
	b, err := json.Marshal(s)
	return b, eris.Wrap(err, "store: marshal signal")
}

func decodeSnapshot(b []byte) (*model.ValuationSnapshot, error) {
	var snap model.ValuationSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal snapshot")
	}
	return &snap, nil
}

func decodeSignal(b []byte, status string) (*model.Signal, error) {
	var s model.Signal
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal signal")
	}
	// The status column is authoritative; the payload keeps the state at
	// creation time.
	s.ResolutionStatus = model.ResolutionStatus(status)
	return &s, nil
}

func validateWeights(scope string, w scoring.Weights) error {
	if scope == "" {
		return eris.New("store: weight scope is required")
	}
	return w.Validate()
}

func statusStrings(statuses []model.ResolutionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func dlqInput(e resilience.DLQEntry) any {
	if len(e.Input) == 0 {
		return nil
	}
	return []byte(e.Input)
}

func decodeReport(b []byte) (model.DriftReport, error) {
	var r model.DriftReport
	err := json.Unmarshal(b, &r)
	return r, eris.Wrap(err, "store: unmarshal drift report")
}
