package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		// post-run hooks are skipped when a command fails
		if err := shutdownTelemetry(); err != nil {
			log.Warn().Err(err).Msg("Error shutting down OpenTelemetry")
		}
		stop()
		os.Exit(1)
	}
}
