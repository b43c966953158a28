package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/readiness-engine/internal/model"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/scoring"
	"github.com/sells-group/readiness-engine/internal/signals"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs the CLI
// when no Postgres URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as fixed-width UTC text so string comparison is
// chronological.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	return t, eris.Wrapf(err, "sqlite: parse timestamp %q", s)
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS valuation_snapshots (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	reason     TEXT NOT NULL,
	bri_score  REAL,
	ev_mid     TEXT,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_company_created ON valuation_snapshots(company_id, created_at);

CREATE TABLE IF NOT EXISTS drift_reports (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL,
	period_start TEXT NOT NULL,
	period_end   TEXT NOT NULL,
	direction    TEXT NOT NULL,
	drift_score  REAL NOT NULL,
	payload      TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE (company_id, period_start)
);

CREATE TABLE IF NOT EXISTS signals (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL DEFAULT '',
	event_type        TEXT NOT NULL,
	severity          TEXT NOT NULL,
	resolution_status TEXT NOT NULL DEFAULT 'OPEN',
	payload           TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_company_created ON signals(company_id, created_at);

CREATE TABLE IF NOT EXISTS weight_overrides (
	scope      TEXT NOT NULL,
	category   TEXT NOT NULL,
	weight     REAL NOT NULL CHECK (weight >= 0),
	updated_at TEXT NOT NULL,
	PRIMARY KEY (scope, category)
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	operation      TEXT NOT NULL,
	input          TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	last_failed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Snapshots

func (s *SQLiteStore) AppendSnapshot(ctx context.Context, snap *model.ValuationSnapshot) error {
	payload, err := prepareSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuation_snapshots (id, company_id, reason, bri_score, ev_mid, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.CompanyID, string(snap.Reason), snap.BRIScore, evMid(snap), string(payload), ts(snap.CreatedAt),
	)
	return eris.Wrapf(err, "sqlite: append snapshot for %s", snap.CompanyID)
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, companyID string) (*model.ValuationSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM valuation_snapshots WHERE company_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, companyID)
	return scanSnapshot(row, companyID)
}

func (s *SQLiteStore) SnapshotAsOf(ctx context.Context, companyID string, at time.Time) (*model.ValuationSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM valuation_snapshots WHERE company_id = ? AND created_at <= ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, companyID, ts(at))
	return scanSnapshot(row, companyID)
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, companyID string, limit int) ([]model.ValuationSnapshot, error) {
	query := `SELECT payload FROM valuation_snapshots WHERE company_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{companyID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list snapshots for %s", companyID)
	}
	defer rows.Close()

	var out []model.ValuationSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows, companyID)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT company_id FROM valuation_snapshots ORDER BY company_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

// Drift reports

func (s *SQLiteStore) SaveDriftReport(ctx context.Context, r *model.DriftReport) error {
	payload, err := prepareReport(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO drift_reports (id, company_id, period_start, period_end, direction, drift_score, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, period_start) DO NOTHING`,
		r.ID, r.CompanyID, ts(r.PeriodStart), ts(r.PeriodEnd), string(r.Direction), r.DriftScore, string(payload), ts(r.CreatedAt),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save drift report for %s", r.CompanyID)
	}
	if err := checkRowsAffected(res, "drift report", r.CompanyID); err != nil {
		return eris.Wrapf(ErrDuplicateReport, "%s from %s", r.CompanyID, r.PeriodStart.Format(time.DateOnly))
	}
	return nil
}

func (s *SQLiteStore) ListDriftReports(ctx context.Context, companyID string, limit int) ([]model.DriftReport, error) {
	query := `SELECT payload FROM drift_reports WHERE company_id = ? ORDER BY period_start DESC`
	args := []any{companyID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list drift reports for %s", companyID)
	}
	defer rows.Close()

	var out []model.DriftReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan drift report")
		}
		r, err := decodeReport([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list drift reports iterate")
}

// Signals

func (s *SQLiteStore) AppendSignals(ctx context.Context, sigs []model.Signal) error {
	if len(sigs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: append signals: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signals (id, company_id, event_type, severity, resolution_status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare signal insert")
	}
	defer stmt.Close()

	now := ts(time.Now())
	for i := range sigs {
		payload, err := prepareSignal(&sigs[i])
		if err != nil {
			return err
		}
		sg := sigs[i]
		if _, err := stmt.ExecContext(ctx, sg.ID, sg.CompanyID, sg.EventType, string(sg.Severity),
			string(sg.ResolutionStatus), string(payload), ts(sg.CreatedAt), now); err != nil {
			return eris.Wrapf(err, "sqlite: insert signal %s", sg.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: append signals: commit tx")
}

func (s *SQLiteStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	return scanSignal(s.db.QueryRowContext(ctx, `SELECT payload, resolution_status FROM signals WHERE id = ?`, id), id)
}

func (s *SQLiteStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query := `SELECT payload, resolution_status FROM signals WHERE 1 = 1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if len(filter.Statuses) > 0 {
		query += ` AND resolution_status IN (?` + strings.Repeat(", ?", len(filter.Statuses)-1) + `)`
		for _, st := range statusStrings(filter.Statuses) {
			args = append(args, st)
		}
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, ts(filter.Since))
	}
	if !filter.Until.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, ts(filter.Until))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list signals iterate")
}

func (s *SQLiteStore) UpdateSignalStatus(ctx context.Context, id string, to model.ResolutionStatus) (*model.Signal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update signal: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := scanSignal(tx.QueryRowContext(ctx, `SELECT payload, resolution_status FROM signals WHERE id = ?`, id), id)
	if err != nil {
		return nil, err
	}
	next, err := signals.Transition(*cur, to)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE signals SET resolution_status = ?, updated_at = ? WHERE id = ? AND resolution_status = ?`,
		string(next.ResolutionStatus), ts(time.Now()), id, string(cur.ResolutionStatus))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update signal %s", id)
	}
	if err := checkRowsAffected(res, "signal", id); err != nil {
		return nil, err
	}
	return &next, eris.Wrap(tx.Commit(), "sqlite: update signal: commit tx")
}

// Weight overrides

func (s *SQLiteStore) GetWeights(ctx context.Context, scope string) (scoring.Weights, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, weight FROM weight_overrides WHERE scope = ?`, scope)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get weights %s", scope)
	}
	defer rows.Close()

	w := scoring.Weights{}
	for rows.Next() {
		var category string
		var weight float64
		if err := rows.Scan(&category, &weight); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan weight")
		}
		c, err := model.ParseCategory(category)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: weights %s", scope)
		}
		w[c] = weight
	}
	return w, eris.Wrap(rows.Err(), "sqlite: get weights iterate")
}

func (s *SQLiteStore) SetWeights(ctx context.Context, scope string, w scoring.Weights) error {
	if err := validateWeights(scope, w); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: set weights: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM weight_overrides WHERE scope = ?`, scope); err != nil {
		return eris.Wrapf(err, "sqlite: clear weights %s", scope)
	}
	now := ts(time.Now())
	for _, c := range model.Categories {
		v, ok := w[c]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO weight_overrides (scope, category, weight, updated_at) VALUES (?, ?, ?, ?)`,
			scope, string(c), v, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert weight %s/%s", scope, c)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: set weights: commit tx")
}

// Dead letter queue

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	var input any
	if len(entry.Input) > 0 {
		input = string(entry.Input)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, company_id, operation, input, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.CompanyID, entry.Operation, input, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, ts(entry.NextRetryAt), ts(entry.CreatedAt), ts(entry.LastFailedAt),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, company_id, operation, input, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{ts(time.Now())}
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.Operation != "" {
		query += ` AND operation = ?`
		args = append(args, filter.Operation)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var input sql.NullString
		var next, created, failed string
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Operation, &input, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &next, &created, &failed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if input.Valid {
			e.Input = []byte(input.String)
		}
		if e.NextRetryAt, err = parseTS(next); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTS(created); err != nil {
			return nil, err
		}
		if e.LastFailedAt, err = parseTS(failed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		ts(nextRetryAt), lastErr, ts(time.Now()), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable, companyID string) (*model.ValuationSnapshot, error) {
	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot for %s", companyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}
	return decodeSnapshot([]byte(payload))
}

func scanSignal(row scannable, id string) (*model.Signal, error) {
	var payload, status string
	err := row.Scan(&payload, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "signal %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan signal")
	}
	return decodeSignal([]byte(payload), status)
}
