// Package metric provides Prometheus-based metrics collection and an
// HTTP exposition server for the broker.
//
// Broker (core.go) holds the fixed set of broker-level counters and
// gauges and implements broker.Metrics directly, so the router records
// metrics without importing the Prometheus client. MetricsRegistry
// (registry.go) owns the underlying prometheus.Registry and lets
// callers register additional service-specific collectors alongside
// the core set. Server (handler.go) exposes /metrics over plain HTTP;
// liveness lives separately in broker/healthhttp.
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go server.Start()
//	defer server.Stop()
//
//	b := broker.New(cfg, log, registry.CoreMetrics())
package metric
