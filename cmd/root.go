package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Buyer readiness scoring, valuation and drift tracking",
	Long:  "Scores a company's buyer readiness, values it against industry multiples, decomposes the value gap, ranks improvement tasks and tracks monthly drift.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
