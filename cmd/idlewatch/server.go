package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"idlewatch/internal/activity"
	"idlewatch/internal/api"
	"idlewatch/internal/config"
	"idlewatch/internal/idle"
	"idlewatch/internal/metrics"
	"idlewatch/internal/storage"
	"idlewatch/internal/storage/bolt"
	"idlewatch/internal/storage/redis"
	"idlewatch/internal/tracker"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the IdleWatch daemon",
	Long:  `Start the idle tracking daemon with the HTTP API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting IdleWatch")

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Aggregation layer over the day store
	aggregator := activity.New(store.Days(), logger)

	// Idle state source on the system bus
	pollInterval := time.Duration(cfg.Tracking.DetectionIntervalSeconds) * time.Second
	watcher, err := idle.NewWatcher(pollInterval, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to login manager: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close idle watcher")
		}
	}()

	trackerConfig := tracker.Config{
		MinSessionDuration: parseDuration(cfg.Tracking.MinSessionDuration, tracker.DefaultMinSessionDuration),
		VerifyInterval:     parseDuration(cfg.Tracking.VerifyInterval, tracker.DefaultVerifyInterval),
	}
	idleTracker := tracker.New(aggregator, watcher, trackerConfig, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Idle watcher stopped")
		}
	}()

	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		if err := idleTracker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Tracker stopped")
		}
	}()

	logger.Info().
		Dur("min_session_duration", trackerConfig.MinSessionDuration).
		Dur("verify_interval", trackerConfig.VerifyInterval).
		Msg("Idle tracker started")

	// Initialize API server
	apiServer := api.NewServer(api.Config{
		BindAddress: cfg.Server.BindAddress,
		Port:        cfg.Server.APIPort,
	}, aggregator, logger)

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- apiServer.Start()
	}()

	// Initialize metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Msg("IdleWatch startup complete")
	logger.Info().Msgf("API: http://%s:%d/api", cfg.Server.BindAddress, cfg.Server.APIPort)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Wait for shutdown signal or API server failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping")
	case err := <-apiErr:
		if err != nil {
			logger.Error().Err(err).Msg("API server failed")
		}
	}

	// Stop the tracker first so an open idle interval gets recorded
	cancel()
	select {
	case <-trackerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("Timed out waiting for tracker shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("IdleWatch stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be bolt or redis)", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// parseDuration parses a duration string, falling back to a default
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
