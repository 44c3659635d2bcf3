package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/ws-audio-capture/internal/capture"
	"github.com/skypro1111/ws-audio-capture/internal/config"
	"github.com/skypro1111/ws-audio-capture/internal/metrics"
	"github.com/skypro1111/ws-audio-capture/internal/server"
)

const (
	serviceName    = "ws-audio-capture"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.LoadFromArgs(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	logger := initLogger(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
	)

	logger.Info("Configuration loaded",
		slog.String("listen_address", cfg.Server.ListenAddress()),
		slog.String("path", cfg.Server.Path),
		slog.Int("max_sessions", cfg.Server.MaxSessions),
		slog.String("format", cfg.Audio.Format().String()),
		slog.Duration("flush_interval", cfg.Audio.GetFlushIntervalDuration()),
		slog.String("output_dir", cfg.Audio.OutputDir),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dedicated registry so /metrics only exposes what this process registers
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	sink, err := capture.NewFileSink(cfg.Audio.OutputDir)
	if err != nil {
		return err
	}

	manager, err := capture.NewManager(logger, capture.Config{
		Format:        cfg.Audio.Format(),
		FlushInterval: cfg.Audio.GetFlushIntervalDuration(),
		WriteTimeout:  cfg.Audio.GetWriteTimeoutDuration(),
		MaxSessions:   cfg.Server.MaxSessions,
	}, sink, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create capture manager: %w", err)
	}

	httpServer := server.NewHTTPServer(cfg, logger, manager, sink, appMetrics, registry)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.ListenAndServe()
	})

	g.Go(func() error {
		<-gctx.Done()

		if ctx.Err() != nil {
			logger.Info("Received shutdown signal")
		}
		logger.Info("Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeoutDuration())
		defer cancel()

		// Connections are closed before the manager so each session ends through its own final flush
		var shutdownErr error
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping capture server", slog.String("error", err.Error()))
			shutdownErr = err
		}

		if err := manager.Stop(shutdownCtx); err != nil {
			logger.Error("Error flushing capture sessions", slog.String("error", err.Error()))
			shutdownErr = errors.Join(shutdownErr, err)
		}

		return shutdownErr
	})

	err = g.Wait()

	logger.Info("Service stopped")
	return err
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
