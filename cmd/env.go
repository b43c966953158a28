package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/benchmark"
	"github.com/sells-group/readiness-engine/internal/config"
	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/resilience"
	"github.com/sells-group/readiness-engine/internal/store"
)

// appEnv holds the store and engine shared by every command.
type appEnv struct {
	Store  store.Store
	Engine *engine.Engine
	// Postgres is set only for the postgres driver.
	Postgres *store.PostgresStore
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode and builds the environment. Callers should
// defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return buildEnv(ctx, cfg)
}

func buildEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := openStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}
	if pg, ok := st.(*store.PostgresStore); ok {
		env.Postgres = pg
	}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	weights, err := c.Engine.Weights()
	if err != nil {
		env.Close()
		return nil, err
	}
	source, err := benchmarkSource(c, env.Postgres)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Engine = engine.New(st, source, engine.Options{
		GlobalWeights:     weights,
		MaxDisplaySignals: c.Engine.MaxDisplaySignals,
		BatchConcurrency:  c.Engine.BatchConcurrency,
		DLQMaxRetries:     c.Engine.DLQMaxRetries,
		Retry:             resilience.FromRetryConfig(c.Engine.Retry.MaxAttempts, c.Engine.Retry.InitialBackoffMs, c.Engine.Retry.MaxBackoffMs),
	})
	return env, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		path := sc.SQLitePath
		if path == "" {
			path = "readiness.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.Pool.MaxConns,
			MinConns: sc.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// benchmarkSource chains the versioned Postgres table (behind a circuit
// breaker), an optional benchmark file and the built-in table, in that
// order.
func benchmarkSource(c *config.Config, pg *store.PostgresStore) (benchmark.Source, error) {
	var chain benchmark.Chain
	if pg != nil {
		cbCfg := resilience.FromCircuitConfig(c.Engine.Circuit.FailureThreshold, c.Engine.Circuit.ResetTimeoutSecs)
		cbCfg.Name = "benchmarks"
		chain = append(chain, benchmark.NewPostgresSource(pg.Pool(), resilience.NewCircuitBreaker(cbCfg)))
	}
	if c.Engine.BenchmarkFile != "" {
		rows, table, err := benchmark.LoadTable(c.Engine.BenchmarkFile)
		if err != nil {
			return nil, err
		}
		zap.L().Info("loaded benchmark file",
			zap.String("path", c.Engine.BenchmarkFile),
			zap.Int("benchmarks", len(rows)),
		)
		chain = append(chain, table)
	}
	return append(chain, benchmark.DefaultTable()), nil
}
