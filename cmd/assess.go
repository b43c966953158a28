package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/engine"
	"github.com/sells-group/readiness-engine/internal/input"
	"github.com/sells-group/readiness-engine/internal/model"
)

var (
	assessFile   string
	assessReason string
	assessFormat string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score, value and rank tasks for companies in a fixture file",
	Long:  "Reads one company or a companies list (YAML or JSON), appends a valuation snapshot per company and prints the result. Failed companies go to the dead-letter queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(assessFormat); err != nil {
			return err
		}
		reason, err := model.ParseSnapshotReason(assessReason)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		companies, err := input.LoadFile(assessFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		return runAssess(ctx, env.Engine, companies, reason, assessFormat, cmd.OutOrStdout())
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessFile, "file", "", "company fixture, YAML or JSON (required)")
	assessCmd.Flags().StringVar(&assessReason, "reason", string(model.ReasonAssessmentCompleted), "snapshot reason")
	assessCmd.Flags().StringVar(&assessFormat, "format", formatTable, "output format: table or json")
	_ = assessCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(assessCmd)
}

func runAssess(ctx context.Context, eng *engine.Engine, companies []input.Company, reason model.SnapshotReason, format string, out io.Writer) error {
	if !reason.Valid() {
		return eris.Wrapf(model.ErrUnknownReason, "assess: %q", reason)
	}

	if len(companies) == 1 {
		a, err := eng.Assess(ctx, companies[0], reason)
		if err != nil {
			return eris.Wrap(err, "assess")
		}
		if format == formatJSON {
			return writeJSON(out, a)
		}
		formatAssessment(out, a)
		return nil
	}

	res, err := eng.AssessBatch(ctx, companies, reason)
	if err != nil {
		return eris.Wrap(err, "assess batch")
	}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("failed", res.Failed),
	)
	if format == formatJSON {
		return writeJSON(out, res)
	}
	for _, a := range res.Assessments {
		if a == nil {
			continue
		}
		formatAssessment(out, a)
		_, _ = fmt.Fprintln(out)
	}
	_, _ = fmt.Fprintf(out, "%d succeeded, %d failed\n", res.Succeeded, res.Failed)
	return nil
}
