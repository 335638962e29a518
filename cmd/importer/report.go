package main

import (
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print facility counts by province and kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := loadStack(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer stack.Close()

		report, err := stack.Reports.Build(cmd.Context(), nil)
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
