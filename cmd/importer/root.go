package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/caremarket/backend/internal/bootstrap"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
	"github.com/zatekoja/caremarket/backend/pkg/config"
)

var yesConfirm bool

// telemetryShutdown flushes the OTLP exporters started by loadStack
var telemetryShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Facility directory import",
	Long: `importer pulls healthcare facilities from the public map directory,
reconciles them against the facility store and reports the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTelemetry()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
}

// loadStack loads configuration, sets up logging and wires the import
func loadStack(ctx context.Context, regionMode string) (*bootstrap.ImportStack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	observability.InitLogger("facility-importer", cfg.Env, cfg.LogLevel)
	startTelemetry(ctx, cfg)

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	stack, err := bootstrap.NewImportStack(ctx, cfg, bootstrap.Options{RegionMode: regionMode, Metrics: metrics})
	if err != nil {
		return nil, err
	}
	return stack, nil
}

func startTelemetry(ctx context.Context, cfg *config.Config) {
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint == "" || telemetryShutdown != nil {
		return
	}
	shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		return
	}
	telemetryShutdown = shutdown
	log.Info().Msg("OpenTelemetry initialized successfully")
}

// shutdownTelemetry flushes and stops the exporters once; later calls are no-ops
func shutdownTelemetry() error {
	if telemetryShutdown == nil {
		return nil
	}
	shutdown := telemetryShutdown
	telemetryShutdown = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down OpenTelemetry: %w", err)
	}
	return nil
}

// confirmDestructiveAction prompts for confirmation unless --yes was given
func confirmDestructiveAction(in io.Reader, out io.Writer, action string) bool {
	if yesConfirm {
		fmt.Fprintln(out, "Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprintf(out, "%s. Type 'yes' to confirm: ", action)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
