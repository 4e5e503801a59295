package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribelab/transcribe-client/internal/api"
	"github.com/scribelab/transcribe-client/internal/config"
	"github.com/scribelab/transcribe-client/internal/observability"
	"github.com/scribelab/transcribe-client/internal/persist"
	"github.com/scribelab/transcribe-client/internal/reconcile"
	"github.com/scribelab/transcribe-client/internal/resilience"
	"github.com/scribelab/transcribe-client/internal/session"
	"github.com/scribelab/transcribe-client/internal/socket"
	"github.com/scribelab/transcribe-client/internal/stream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("backend_ws", cfg.BackendWSURL+cfg.BackendWSPath).
		Str("backend_http", cfg.BackendHTTPURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Transcription client starting")

	// Open the durable session store
	gateway, err := persist.Open(cfg.SessionDBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.SessionDBPath).Msg("Failed to open session database")
	}
	defer gateway.Close()

	// Realtime connection to the transcription backend
	sockOpts := socket.Options{
		MaxAttempts:      cfg.ReconnectMaxAttempts,
		Backoff:          cfg.ReconnectBackoff(),
		MaxBackoff:       cfg.ReconnectMaxBackoff(),
		WaitPollInterval: cfg.WaitPollInterval(),
		WaitPollBudget:   cfg.WaitPollBudget,
	}
	supervisor := socket.NewSupervisor(cfg.BackendWSURL+cfg.BackendWSPath, sockOpts, observability.WithComponent("socket"))

	// Batch re-transcription client
	retryCfg := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoffMs) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
	batcher := reconcile.NewClient(cfg.BackendHTTPURL+cfg.BatchPath, cfg.LiveSpeaker, retryCfg, observability.WithComponent("reconcile"))

	ctrl := session.NewController(session.Options{
		SessionID:        cfg.SessionID,
		LiveSpeaker:      cfg.LiveSpeaker,
		SilenceThreshold: cfg.SilenceThresholdSec,
		Terminals:        cfg.TerminalPunctuation,
		SaveInterval:     cfg.SaveInterval(),
	}, supervisor, batcher, gateway, logger)
	defer ctrl.Shutdown()

	supervisor.OnMessage(ctrl.HandleFragment)

	// Pick up where the last run left off
	if restored, err := ctrl.RestoreFromSnapshot(); err != nil {
		logger.Warn().Err(err).Msg("Snapshot restore failed; starting empty")
	} else if restored {
		logger.Info().Int("lines", ctrl.Store().Len()).Msg("Previous session restored")
	}

	streams := stream.NewClient(cfg.BackendHTTPURL, observability.WithComponent("stream"))

	// Create HTTP server
	mux := http.NewServeMux()

	// Control API
	api.NewServer(ctrl, streams, observability.WithComponent("api")).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness: the local database must answer; the backend must be reachable
	checks := map[string]observability.HealthCheckFunc{
		"session_db": func(ctx context.Context) (bool, error) {
			if err := gateway.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
		"backend": func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet,
				strings.TrimRight(cfg.BackendHTTPURL, "/")+"/health", nil)
			if err != nil {
				return false, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return false, err
			}
			resp.Body.Close()
			return resp.StatusCode < 500, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. Write timeout is generous because the
	// view endpoints hold the response open while relaying backend streams.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/api", cfg.Port)).
			Msg("Control API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	// Stop the recording first so the final snapshot is flushed
	ctrl.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Client exited gracefully")
}
