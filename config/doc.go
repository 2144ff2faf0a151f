// Package config loads and validates broker configuration.
//
// Config holds the fixed set of fields the broker needs: the listen
// address/socket path, log level and format, graceful-shutdown timeout,
// optional health/metrics HTTP addresses, and the optional event-export
// sink. Load reads a JSON or YAML file on top of Default(), then applies
// MSGBROKER_* environment variable overrides.
//
//	cfg, err := config.Load("configs/broker.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// SafeConfig wraps a Config behind a RWMutex with deep-copy Get/Update,
// for the rare case a long-running process wants to swap configuration
// without a restart.
//
// # Environment Variable Overrides
//
//	MSGBROKER_LISTEN, MSGBROKER_NETWORK, MSGBROKER_LOG_LEVEL,
//	MSGBROKER_LOG_FORMAT, MSGBROKER_HEALTH_ADDR, MSGBROKER_METRICS_ADDR,
//	MSGBROKER_SHUTDOWN_TIMEOUT, MSGBROKER_EVENT_EXPORT_URLS,
//	MSGBROKER_EVENT_EXPORT_SUBJECT
//
// # Security
//
// File loading goes through safeReadFile: a 10MB size cap, a 100-level
// JSON nesting cap, a .json/.json5/.yaml/.yml extension check, and a
// path-traversal check: relative paths must resolve inside the working
// directory, while absolute paths are accepted wherever they point.
package config
