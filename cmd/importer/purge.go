package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every imported facility",
	Long: `Purge deletes every facility the import manages, and its search document.
Facilities entered by hand are kept.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	if !confirmDestructiveAction(cmd.InOrStdin(), cmd.ErrOrStderr(), "Purge deletes every imported facility") {
		return fmt.Errorf("purge not confirmed")
	}

	stack, err := loadStack(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer stack.Close()

	deleted, err := stack.Facilities.PurgeManaged(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d imported facilities\n", deleted)
	return nil
}
