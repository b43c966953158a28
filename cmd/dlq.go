package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dlqLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay the assessment dead-letter queue",
}

var dlqCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of dead-lettered assessments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.CountDLQ(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run due transient failures",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.ReplayDeadLetters(ctx, dlqLimit)
		if err != nil {
			return err
		}
		zap.L().Info("dlq replay complete",
			zap.Int("replayed", res.Replayed),
			zap.Int("failed", res.Failed),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d replayed, %d failed\n", res.Replayed, res.Failed)
		return nil
	},
}

func init() {
	dlqReplayCmd.Flags().IntVar(&dlqLimit, "limit", 100, "max entries to replay")
	dlqCmd.AddCommand(dlqCountCmd, dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}
