package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/benchmark"
	"github.com/sells-group/readiness-engine/internal/store"
)

var (
	migrateImportSQLite string
	migrateBenchmarks   string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres migrations and optionally import snapshots and benchmarks",
	Long: `Applies the Postgres schema. With --import-sqlite, copies every snapshot
from a local SQLite store into Postgres (existing snapshot IDs are skipped).
With --benchmarks, loads a benchmark file as a new version of the
industry_benchmarks table.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		if err := pg.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate postgres")
		}
		zap.L().Info("postgres migrations applied")

		if migrateImportSQLite != "" {
			n, err := importSQLite(ctx, migrateImportSQLite, pg)
			if err != nil {
				return err
			}
			zap.L().Info("imported sqlite snapshots",
				zap.String("path", migrateImportSQLite),
				zap.Int64("snapshots", n),
			)
		}

		if migrateBenchmarks != "" {
			rows, _, err := benchmark.LoadTable(migrateBenchmarks)
			if err != nil {
				return err
			}
			n, err := benchmark.Load(ctx, pg.Pool(), rows)
			if err != nil {
				return err
			}
			zap.L().Info("loaded benchmarks",
				zap.String("path", migrateBenchmarks),
				zap.Int64("rows", n),
			)
		}
		return nil
	},
}

// importSQLite copies all snapshots from the SQLite store at path into dst.
func importSQLite(ctx context.Context, path string, dst *store.PostgresStore) (int64, error) {
	src, err := store.NewSQLite(path)
	if err != nil {
		return 0, err
	}
	defer src.Close() //nolint:errcheck

	ids, err := src.ListCompanies(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		snaps, err := src.ListSnapshots(ctx, id, 0)
		if err != nil {
			return total, eris.Wrapf(err, "read snapshots for %s", id)
		}
		n, err := dst.ImportSnapshots(ctx, snaps)
		if err != nil {
			return total, eris.Wrapf(err, "import snapshots for %s", id)
		}
		total += n
	}
	return total, nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateImportSQLite, "import-sqlite", "", "SQLite store to copy snapshots from")
	migrateCmd.Flags().StringVar(&migrateBenchmarks, "benchmarks", "", "benchmark YAML/JSON file to load")
	rootCmd.AddCommand(migrateCmd)
}
