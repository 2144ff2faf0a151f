// Package main implements the entry point for msgbroker, an in-process
// message broker speaking a small binary wire protocol over TCP, unix
// sockets, or WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/msgbroker/broker"
	"github.com/c360/msgbroker/broker/eventexport"
	"github.com/c360/msgbroker/broker/healthhttp"
	"github.com/c360/msgbroker/broker/wstransport"
	"github.com/c360/msgbroker/config"
	"github.com/c360/msgbroker/health"
	"github.com/c360/msgbroker/metric"
	"golang.org/x/sync/errgroup"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "msgbroker"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("msgbroker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, cliCfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting msgbroker", "version", Version, "build_time", BuildTime, "config", cfg.String())

	return runBroker(context.Background(), cfg, logger)
}

// initializeCLI parses and validates flags, printing version/help and
// signalling an early, error-free exit where appropriate.
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s (%s)\n", appName, Version, BuildTime)
		return nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}
	return cliCfg, false, nil
}

// applyCLIOverrides layers explicitly-set flags over the file+env
// config; flags win since they're the most specific input.
func applyCLIOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.Listen != "" {
		cfg.Listen = cliCfg.Listen
	}
	if cliCfg.Network != "" {
		cfg.Network = cliCfg.Network
	}
	if cliCfg.LogLevel != "info" {
		cfg.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "json" {
		cfg.LogFormat = cliCfg.LogFormat
	}
	if cliCfg.ShutdownTimeout != 30*time.Second {
		cfg.ShutdownTimeout = cliCfg.ShutdownTimeout
	}
	if cliCfg.HealthAddr != "" {
		cfg.HealthAddr = cliCfg.HealthAddr
	}
	if cliCfg.MetricsAddr != "" {
		cfg.MetricsAddr = cliCfg.MetricsAddr
	}
}

// runBroker wires the broker core to its ambient services (metrics,
// health, optional event export) and drives them all until a shutdown
// signal arrives, then tears them down within cfg.ShutdownTimeout.
func runBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("broker", "listening")

	exporter, err := eventexport.New(eventexport.Config{
		URLs:          cfg.EventExport.URLs,
		Subject:       cfg.EventExport.Subject,
		SnapshotEvery: cfg.EventExport.SnapshotEvery,
	}, metricsRegistry.CoreMetrics(), logger.With("component", "eventexport"))
	if err != nil {
		return fmt.Errorf("create event exporter: %w", err)
	}
	defer exporter.Close()

	b := broker.New(broker.Config{
		Network: cfg.Network,
		Address: cfg.Listen,
		OnAcceptError: func(err error) {
			logger.Warn("broker accept error", "error", err)
		},
	}, logger.With("component", "broker"), metricsRegistry.CoreMetrics())
	b.SetMonEventSink(exporter.PublishMonEvent)

	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(signalCtx)

	var wsListener *wstransport.Listener
	if cfg.Network == "ws" {
		wsListener = wstransport.NewListener(cfg.Listen, "/ws")
		group.Go(wsListener.Serve)
		group.Go(func() error { return b.Serve(gctx, wsListener) })
	} else {
		group.Go(func() error { return b.Run(gctx) })
	}

	var metricsServer *metric.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metric.NewServer(cfg.MetricsAddr, "/metrics", metricsRegistry)
		group.Go(metricsServer.Start)
	}

	var healthServer *healthhttp.Server
	if cfg.HealthAddr != "" {
		healthServer = healthhttp.NewServer(cfg.HealthAddr, appName, monitor)
		group.Go(healthServer.Start)
	}

	if exporter != nil {
		group.Go(func() error {
			exporter.Run(gctx)
			return nil
		})
	}

	logger.Info("msgbroker started",
		"network", cfg.Network, "listen", cfg.Listen,
		"health_addr", cfg.HealthAddr, "metrics_addr", cfg.MetricsAddr)

	<-signalCtx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	return shutdownAll(shutdownCtx, group, metricsServer, healthServer, wsListener)
}

// shutdownAll stops every ambient HTTP server, then waits (bounded by
// ctx) for the broker's own goroutines to unwind via errgroup.Wait.
func shutdownAll(ctx context.Context, group *errgroup.Group, metricsServer *metric.Server, healthServer *healthhttp.Server, wsListener *wstransport.Listener) error {
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			slog.Warn("metrics server stop", "error", err)
		}
	}
	if healthServer != nil {
		if err := healthServer.Stop(); err != nil {
			slog.Warn("health server stop", "error", err)
		}
	}
	if wsListener != nil {
		if err := wsListener.Close(); err != nil {
			slog.Warn("websocket listener stop", "error", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("graceful shutdown timed out: %w", ctx.Err())
	}
}
