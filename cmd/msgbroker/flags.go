package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	Listen          string
	Network         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	HealthAddr      string
	MetricsAddr     string
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("MSGBROKER_CONFIG", ""),
		"Path to JSON or YAML config file (env: MSGBROKER_CONFIG)")

	flag.StringVar(&cfg.Listen, "listen",
		getEnv("MSGBROKER_LISTEN", ""),
		"Listen address or unix socket path (env: MSGBROKER_LISTEN)")

	flag.StringVar(&cfg.Network, "network",
		getEnv("MSGBROKER_NETWORK", ""),
		"Listener network: tcp, unix, or ws (env: MSGBROKER_NETWORK)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MSGBROKER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: MSGBROKER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MSGBROKER_LOG_FORMAT", "json"),
		"Log format: json, text (env: MSGBROKER_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MSGBROKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: MSGBROKER_SHUTDOWN_TIMEOUT)")

	flag.StringVar(&cfg.HealthAddr, "health-addr",
		getEnv("MSGBROKER_HEALTH_ADDR", ""),
		"Health HTTP listen address, empty to disable (env: MSGBROKER_HEALTH_ADDR)")

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("MSGBROKER_METRICS_ADDR", ""),
		"Prometheus HTTP listen address, empty to disable (env: MSGBROKER_METRICS_ADDR)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	validNetworks := []string{"tcp", "unix", "ws"}
	if cfg.Network != "" && !contains(validNetworks, cfg.Network) {
		return fmt.Errorf("invalid network: %s", cfg.Network)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - in-process message broker

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a config file
  %s --config=/etc/msgbroker/broker.yaml

  # Run a TCP listener with debug logging
  %s --network=tcp --listen=0.0.0.0:7330 --log-level=debug --log-format=text

  # Validate configuration only
  %s --config=broker.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
