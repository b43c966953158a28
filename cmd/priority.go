package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/readiness-engine/internal/input"
	"github.com/sells-group/readiness-engine/internal/priority"
)

var (
	priorityFile   string
	priorityFormat string
)

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Rank a task list on the impact/difficulty matrix",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(priorityFormat); err != nil {
			return err
		}
		tasks, err := input.LoadTasks(priorityFile)
		if err != nil {
			return err
		}
		ranked, err := priority.SortTasks(tasks)
		if err != nil {
			return eris.Wrap(err, "rank tasks")
		}
		if priorityFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), ranked)
		}
		formatTasks(cmd.OutOrStdout(), ranked)
		return nil
	},
}

func init() {
	priorityCmd.Flags().StringVar(&priorityFile, "file", "", "task list with a top-level tasks key, YAML or JSON (required)")
	priorityCmd.Flags().StringVar(&priorityFormat, "format", formatTable, "output format: table or json")
	_ = priorityCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(priorityCmd)
}
