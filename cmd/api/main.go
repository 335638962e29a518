package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/caremarket/backend/internal/api/handlers"
	"github.com/zatekoja/caremarket/backend/internal/api/routes"
	"github.com/zatekoja/caremarket/backend/internal/bootstrap"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
	"github.com/zatekoja/caremarket/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("facility-api", cfg.Env, cfg.LogLevel)

	// Runs started over HTTP live on this context and stop on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	stack, err := bootstrap.NewImportStack(ctx, cfg, bootstrap.Options{Metrics: metrics})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire facility import")
	}
	defer stack.Close()

	var idempotency handlers.IdempotencyStore
	if stack.Cache != nil {
		idempotency = stack.Cache
	}

	importHandler := handlers.NewFacilityImportHandler(ctx, stack.Imports, stack.Reports, idempotency, 24*time.Hour)
	handler := routes.NewRouter(importHandler, metrics).SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// A running import stops after its current element and releases the run lock
	cancel()
	waitForImport(shutdownCtx, stack)

	log.Info().Msg("Server stopped")
}

func waitForImport(ctx context.Context, stack *bootstrap.ImportStack) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, running, _ := stack.Imports.Latest(); !running {
			return
		}
		select {
		case <-ctx.Done():
			log.Warn().Msg("Facility import still running at shutdown")
			return
		case <-ticker.C:
		}
	}
}
