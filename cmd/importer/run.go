package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/caremarket/backend/internal/application/services"
)

var (
	resetImport  bool
	dryRunImport bool
	regionMode   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full facility import",
	Long: `Run queries the directory one (category, region) segment at a time,
normalizes and validates every element and creates or updates managed facilities.
Facilities entered by hand are never modified.

Examples:
  # Regular import
  importer run

  # See what an import would change without writing
  importer run --dry-run

  # Delete every imported facility first, then import (asks for confirmation)
  importer run --reset

  # City circles instead of whole provinces
  importer run --regions cities`,
	RunE: runImport,
}

func init() {
	runCmd.Flags().BoolVar(&resetImport, "reset", false, "Delete every imported facility before the import")
	runCmd.Flags().BoolVar(&dryRunImport, "dry-run", false, "Reconcile against a scratch copy and write nothing")
	runCmd.Flags().StringVar(&regionMode, "regions", "", "Region catalog: provinces or cities (default from IMPORT_REGION_MODE)")

	rootCmd.AddCommand(runCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if resetImport && !dryRunImport {
		if !confirmDestructiveAction(cmd.InOrStdin(), cmd.ErrOrStderr(), "Reset deletes every imported facility") {
			return fmt.Errorf("reset not confirmed")
		}
	}

	stack, err := loadStack(ctx, regionMode)
	if err != nil {
		return err
	}
	defer stack.Close()

	stats, runErr := stack.Imports.Run(ctx, services.RunOptions{Reset: resetImport, DryRun: dryRunImport})
	if stats == nil {
		return runErr
	}

	snap := stats.Snapshot()
	if runErr != nil {
		log.Error().Err(runErr).Str("run_id", snap.RunID).Msg("Facility import aborted")
	}

	// An interrupted run still gets its report
	report, err := stack.Reports.Build(context.WithoutCancel(ctx), &snap)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := report.Render(cmd.OutOrStdout()); err != nil {
		return err
	}
	return runErr
}
