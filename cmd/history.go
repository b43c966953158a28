package main

import (
	"github.com/spf13/cobra"
)

var (
	historyCompany string
	historyLimit   int
	historyFormat  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a company's snapshot and drift report history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(historyFormat); err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		snaps, err := env.Store.ListSnapshots(ctx, historyCompany, historyLimit)
		if err != nil {
			return err
		}
		reports, err := env.Store.ListDriftReports(ctx, historyCompany, historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyFormat == formatJSON {
			return writeJSON(out, map[string]any{
				"snapshots":     snaps,
				"drift_reports": reports,
			})
		}
		formatSnapshots(out, snaps)
		_, _ = out.Write([]byte("\n"))
		formatDriftReports(out, reports)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyCompany, "company", "", "company ID (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 12, "max rows of each kind")
	historyCmd.Flags().StringVar(&historyFormat, "format", formatTable, "output format: table or json")
	_ = historyCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(historyCmd)
}
