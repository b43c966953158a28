package benchmark

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/db"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/valuation"
)

// PostgresSource reads versioned benchmarks from the industry_benchmarks
// table. Calls go through a circuit breaker so a struggling database is not
// hit once per company during a batch run.
type PostgresSource struct {
	pool    db.Pool
	breaker *resilience.CircuitBreaker
}

// NewPostgresSource returns nil when pool is nil.
func NewPostgresSource(pool db.Pool, breaker *resilience.CircuitBreaker) *PostgresSource {
	if pool == nil {
		return nil
	}
	if breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.Name = "benchmarks"
		breaker = resilience.NewCircuitBreaker(cfg)
	}
	return &PostgresSource{pool: pool, breaker: breaker}
}

const benchmarkColumns = `naics, label, multiple_low::text, multiple_high::text, avg_margin::text, source, as_of`

// Lookup returns the newest benchmark for the most specific code level
// that has one.
func (s *PostgresSource) Lookup(ctx context.Context, naics string) (valuation.IndustryBenchmark, error) {
	levels, err := Levels(naics)
	if err != nil {
		return valuation.IndustryBenchmark{}, err
	}

	for _, code := range levels {
		b, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*valuation.IndustryBenchmark, error) {
			return s.latest(ctx, code)
		})
		if err != nil {
			return valuation.IndustryBenchmark{}, eris.Wrapf(err, "benchmark: lookup naics %s", code)
		}
		if b != nil {
			zap.L().Debug("benchmark: resolved",
				zap.String("naics", naics),
				zap.String("naics_used", code),
				zap.Time("as_of", b.AsOf),
			)
			return *b, nil
		}
	}
	return valuation.IndustryBenchmark{}, eris.Wrapf(ErrNotFound, "naics %s", naics)
}

func (s *PostgresSource) latest(ctx context.Context, code string) (*valuation.IndustryBenchmark, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+benchmarkColumns+` FROM industry_benchmarks WHERE naics = $1 ORDER BY as_of DESC LIMIT 1`, code)
	b, err := scanBenchmark(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// History returns every stored version for the most specific level that has
// data, oldest first.
func (s *PostgresSource) History(ctx context.Context, naics string) (*valuation.BenchmarkHistory, error) {
	levels, err := Levels(naics)
	if err != nil {
		return nil, err
	}

	for _, code := range levels {
		versions, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]valuation.IndustryBenchmark, error) {
			return s.versions(ctx, code)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "benchmark: history naics %s", code)
		}
		if len(versions) > 0 {
			return valuation.NewBenchmarkHistory(versions...)
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "naics %s", naics)
}

func (s *PostgresSource) versions(ctx context.Context, code string) ([]valuation.IndustryBenchmark, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+benchmarkColumns+` FROM industry_benchmarks WHERE naics = $1 ORDER BY as_of`, code)
	if err != nil {
		return nil, eris.Wrap(err, "query industry_benchmarks")
	}
	defer rows.Close()

	var out []valuation.IndustryBenchmark
	for rows.Next() {
		b, err := scanBenchmark(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "iterate industry_benchmarks")
}

func scanBenchmark(row pgx.Row) (valuation.IndustryBenchmark, error) {
	var b valuation.IndustryBenchmark
	var low, high, margin string
	if err := row.Scan(&b.NAICS, &b.Label, &low, &high, &margin, &b.Source, &b.AsOf); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, err
		}
		return b, eris.Wrap(err, "scan industry_benchmarks")
	}

	var err error
	if b.Multiples.Low, err = decimal.NewFromString(low); err != nil {
		return b, eris.Wrapf(err, "benchmark: naics %s multiple_low", b.NAICS)
	}
	if b.Multiples.High, err = decimal.NewFromString(high); err != nil {
		return b, eris.Wrapf(err, "benchmark: naics %s multiple_high", b.NAICS)
	}
	if b.AvgMargin, err = decimal.NewFromString(margin); err != nil {
		return b, eris.Wrapf(err, "benchmark: naics %s avg_margin", b.NAICS)
	}
	return b, nil
}

// Load upserts benchmark observations keyed by (naics, as_of). Loading a
// newer as_of adds a version; reloading the same as_of corrects it.
func Load(ctx context.Context, pool db.Pool, benchmarks []valuation.IndustryBenchmark) (int64, error) {
	rows := make([][]any, 0, len(benchmarks))
	for _, b := range benchmarks {
		if _, err := Levels(b.NAICS); err != nil {
			return 0, err
		}
		if err := b.Multiples.Validate(); err != nil {
			return 0, eris.Wrapf(err, "benchmark: naics %s", b.NAICS)
		}
		asOf := b.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		rows = append(rows, []any{
			b.NAICS, b.Label,
			b.Multiples.Low.InexactFloat64(), b.Multiples.High.InexactFloat64(), b.AvgMargin.InexactFloat64(),
			b.Source, asOf.Truncate(24 * time.Hour),
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "industry_benchmarks",
		Columns:      []string{"naics", "label", "multiple_low", "multiple_high", "avg_margin", "source", "as_of"},
		ConflictKeys: []string{"naics", "as_of"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "benchmark: load")
	}
	zap.L().Info("benchmark: loaded", zap.Int("observations", len(rows)), zap.Int64("rows_affected", n))
	return n, nil
}
