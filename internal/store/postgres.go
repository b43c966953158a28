package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-engine/internal/db"
	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/signals"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.ConnConfig.RuntimeParams["application_name"] = "readiness"

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool exposes the pool to the benchmark source, which shares the database.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS valuation_snapshots (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	reason     TEXT NOT NULL,
	bri_score  DOUBLE PRECISION,
	ev_mid     NUMERIC(18,2),
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_company_created ON valuation_snapshots(company_id, created_at DESC);

CREATE TABLE IF NOT EXISTS drift_reports (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL,
	period_start TIMESTAMPTZ NOT NULL,
	period_end   TIMESTAMPTZ NOT NULL,
	direction    TEXT NOT NULL,
	drift_score  DOUBLE PRECISION NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, period_start)
);

CREATE TABLE IF NOT EXISTS signals (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL DEFAULT '',
	event_type        TEXT NOT NULL,
	severity          TEXT NOT NULL,
	resolution_status TEXT NOT NULL DEFAULT 'OPEN',
	payload           JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_signals_company_created ON signals(company_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(resolution_status);

CREATE TABLE IF NOT EXISTS weight_overrides (
	scope      TEXT NOT NULL,
	category   TEXT NOT NULL,
	weight     DOUBLE PRECISION NOT NULL CHECK (weight >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scope, category)
);

CREATE TABLE IF NOT EXISTS industry_benchmarks (
	naics         TEXT NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	multiple_low  NUMERIC(8,4) NOT NULL,
	multiple_high NUMERIC(8,4) NOT NULL,
	avg_margin    NUMERIC(8,4) NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT '',
	as_of         DATE NOT NULL,
	PRIMARY KEY (naics, as_of)
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	operation      TEXT NOT NULL,
	input          JSONB,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INT NOT NULL DEFAULT 0,
	max_retries    INT NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Snapshots

func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap *model.ValuationSnapshot) error {
	payload, err := prepareSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO valuation_snapshots (id, company_id, reason, bri_score, ev_mid, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.CompanyID, string(snap.Reason), snap.BRIScore, evMid(snap), payload, snap.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append snapshot for %s", snap.CompanyID)
}

// ImportSnapshots bulk-copies existing snapshots, keeping their IDs and
// timestamps. Used to promote a local SQLite history into Postgres.
func (s *PostgresStore) ImportSnapshots(ctx context.Context, snaps []model.ValuationSnapshot) (int64, error) {
	rows := make([][]any, 0, len(snaps))
	for i := range snaps {
		payload, err := prepareSnapshot(&snaps[i])
		if err != nil {
			return 0, err
		}
		sn := snaps[i]
		rows = append(rows, []any{sn.ID, sn.CompanyID, string(sn.Reason), sn.BRIScore, evMid(&sn), payload, sn.CreatedAt})
	}
	return db.CopyFrom(ctx, s.pool, "valuation_snapshots",
		[]string{"id", "company_id", "reason", "bri_score", "ev_mid", "payload", "created_at"}, rows)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, companyID string) (*model.ValuationSnapshot, error) {
	return s.queryOneSnapshot(ctx, companyID,
		`SELECT payload FROM valuation_snapshots WHERE company_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT 1`, companyID)
}

func (s *PostgresStore) SnapshotAsOf(ctx context.Context, companyID string, at time.Time) (*model.ValuationSnapshot, error) {
	return s.queryOneSnapshot(ctx, companyID,
		`SELECT payload FROM valuation_snapshots WHERE company_id = $1 AND created_at <= $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`, companyID, at)
}

func (s *PostgresStore) queryOneSnapshot(ctx context.Context, companyID, query string, args ...any) (*model.ValuationSnapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot for %s", companyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot for %s", companyID)
	}
	return decodeSnapshot(payload)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, companyID string, limit int) ([]model.ValuationSnapshot, error) {
	query := `SELECT payload FROM valuation_snapshots WHERE company_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{companyID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list snapshots for %s", companyID)
	}
	defer rows.Close()

	var out []model.ValuationSnapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT company_id FROM valuation_snapshots ORDER BY company_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

// Drift reports

func (s *PostgresStore) SaveDriftReport(ctx context.Context, r *model.DriftReport) error {
	payload, err := prepareReport(r)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO drift_reports (id, company_id, period_start, period_end, direction, drift_score, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (company_id, period_start) DO NOTHING`,
		r.ID, r.CompanyID, r.PeriodStart, r.PeriodEnd, string(r.Direction), r.DriftScore, payload, r.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save drift report for %s", r.CompanyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicateReport, "%s from %s", r.CompanyID, r.PeriodStart.Format(time.DateOnly))
	}
	return nil
}

func (s *PostgresStore) ListDriftReports(ctx context.Context, companyID string, limit int) ([]model.DriftReport, error) {
	query := `SELECT payload FROM drift_reports WHERE company_id = $1 ORDER BY period_start DESC`
	args := []any{companyID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list drift reports for %s", companyID)
	}
	defer rows.Close()

	var out []model.DriftReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan drift report")
		}
		r, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list drift reports iterate")
}

// Signals

var signalColumns = []string{"id", "company_id", "event_type", "severity", "resolution_status", "payload", "created_at", "updated_at"}

// AppendSignals is idempotent on signal ID: re-ingesting a signal never
// resets its resolution status.
func (s *PostgresStore) AppendSignals(ctx context.Context, sigs []model.Signal) error {
	rows := make([][]any, 0, len(sigs))
	now := time.Now().UTC()
	for i := range sigs {
		payload, err := prepareSignal(&sigs[i])
		if err != nil {
			return err
		}
		sg := sigs[i]
		rows = append(rows, []any{sg.ID, sg.CompanyID, sg.EventType, string(sg.Severity), string(sg.ResolutionStatus), payload, sg.CreatedAt, now})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "signals",
		Columns:      signalColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{},
	}, rows)
	return eris.Wrap(err, "postgres: append signals")
}

func (s *PostgresStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	return getSignal(ctx, s.pool, id, "")
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getSignal(ctx context.Context, q rowQuerier, id, lock string) (*model.Signal, error) {
	var payload []byte
	var status string
	err := q.QueryRow(ctx, `SELECT payload, resolution_status FROM signals WHERE id = $1`+lock, id).Scan(&payload, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "signal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get signal %s", id)
	}
	return decodeSignal(payload, status)
}

func (s *PostgresStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query := `SELECT payload, resolution_status FROM signals WHERE true`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CompanyID != "" {
		query += ` AND company_id = ` + arg(filter.CompanyID)
	}
	if len(filter.Statuses) > 0 {
		query += ` AND resolution_status = ANY(` + arg(statusStrings(filter.Statuses)) + `)`
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + arg(filter.Since)
	}
	if !filter.Until.IsZero() {
		query += ` AND created_at < ` + arg(filter.Until)
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var payload []byte
		var status string
		if err := rows.Scan(&payload, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		sig, err := decodeSignal(payload, status)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list signals iterate")
}

func (s *PostgresStore) UpdateSignalStatus(ctx context.Context, id string, to model.ResolutionStatus) (*model.Signal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: update signal: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cur, err := getSignal(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	next, err := signals.Transition(*cur, to)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE signals SET resolution_status = $1, updated_at = $2 WHERE id = $3`,
		string(next.ResolutionStatus), time.Now().UTC(), id,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: update signal %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: update signal: commit tx")
	}
	return &next, nil
}

// Weight overrides

func (s *PostgresStore) GetWeights(ctx context.Context, scope string) (scoring.Weights, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, weight FROM weight_overrides WHERE scope = $1`, scope)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get weights %s", scope)
	}
	defer rows.Close()

	w := scoring.Weights{}
	for rows.Next() {
		var category string
		var weight float64
		if err := rows.Scan(&category, &weight); err != nil {
			return nil, eris.Wrap(err, "postgres: scan weight")
		}
		c, err := model.ParseCategory(category)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: weights %s", scope)
		}
		w[c] = weight
	}
	return w, eris.Wrap(rows.Err(), "postgres: get weights iterate")
}

// SetWeights replaces every weight in scope. An empty set clears the override.
func (s *PostgresStore) SetWeights(ctx context.Context, scope string, w scoring.Weights) error {
	if err := validateWeights(scope, w); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: set weights: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM weight_overrides WHERE scope = $1`, scope); err != nil {
		return eris.Wrapf(err, "postgres: clear weights %s", scope)
	}
	now := time.Now().UTC()
	for _, c := range model.Categories {
		v, ok := w[c]
		if !ok {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO weight_overrides (scope, category, weight, updated_at) VALUES ($1, $2, $3, $4)`,
			scope, string(c), v, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert weight %s/%s", scope, c)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: set weights: commit tx")
}

// Dead letter queue

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, company_id, operation, input, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $5, error_type = $6, retry_count = $7, next_retry_at = $9, last_failed_at = $11`,
		entry.ID, entry.CompanyID, entry.Operation, dlqInput(entry), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, company_id, operation, input, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	var args []any
	if filter.ErrorType != "" {
		args = append(args, filter.ErrorType)
		query += fmt.Sprintf(` AND error_type = $%d`, len(args))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		query += fmt.Sprintf(` AND operation = $%d`, len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY next_retry_at ASC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var input []byte
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Operation, &input, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		e.Input = input
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "dlq entry %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}
