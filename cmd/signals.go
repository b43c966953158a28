package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/readiness-engine/internal/model"
)

var (
	signalsCompany string
	signalsFormat  string
	signalID       string
	signalStatus   string
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Show and manage risk signals",
}

var signalsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a company's ranked signal groups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(signalsFormat); err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		d, err := env.Engine.SignalsDisplay(ctx, signalsCompany)
		if err != nil {
			return err
		}
		if signalsFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), d)
		}
		formatSignals(cmd.OutOrStdout(), d)
		return nil
	},
}

var signalsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Move a signal to a new resolution status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := model.ParseResolutionStatus(signalStatus)
		if err != nil {
			return eris.Wrap(err, "--status")
		}
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		sig, err := env.Engine.UpdateSignalStatus(ctx, signalID, status)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), sig)
	},
}

func init() {
	signalsShowCmd.Flags().StringVar(&signalsCompany, "company", "", "company ID (required)")
	signalsShowCmd.Flags().StringVar(&signalsFormat, "format", formatTable, "output format: table or json")
	_ = signalsShowCmd.MarkFlagRequired("company")

	signalsUpdateCmd.Flags().StringVar(&signalID, "id", "", "signal ID (required)")
	signalsUpdateCmd.Flags().StringVar(&signalStatus, "status", "", "OPEN, ACKNOWLEDGED, DISMISSED or RESOLVED (required)")
	_ = signalsUpdateCmd.MarkFlagRequired("id")
	_ = signalsUpdateCmd.MarkFlagRequired("status")

	signalsCmd.AddCommand(signalsShowCmd, signalsUpdateCmd)
	rootCmd.AddCommand(signalsCmd)
}
