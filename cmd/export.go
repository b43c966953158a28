package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/export"
	"github.com/sells-group/readiness-engine/internal/store"
)

var (
	exportCompany string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a company's snapshots, drift reports and signals to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		snaps, err := env.Store.ListSnapshots(ctx, exportCompany, 0)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			return eris.Wrapf(store.ErrNotFound, "no snapshots for %s", exportCompany)
		}
		reports, err := env.Store.ListDriftReports(ctx, exportCompany, 0)
		if err != nil {
			return err
		}
		sigs, err := env.Store.ListSignals(ctx, store.SignalFilter{CompanyID: exportCompany, Limit: 1000})
		if err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = fmt.Sprintf("%s.xlsx", exportCompany)
		}
		if err := export.WriteFile(path, export.Data{Snapshots: snaps, Reports: reports, Signals: sigs}); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("path", path),
			zap.Int("snapshots", len(snaps)),
			zap.Int("drift_reports", len(reports)),
			zap.Int("signals", len(sigs)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCompany, "company", "", "company ID (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <company>.xlsx)")
	_ = exportCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(exportCmd)
}
