// Package eventexport publishes channel-lifecycle events and periodic
// metric snapshots to NATS for external monitoring. It is deliberately
// lean: no circuit breaker, no JetStream, no reconnect bookkeeping of
// its own. Event export sits off the broker's hot path entirely, so a
// publish failure is logged and dropped rather than retried, and
// nats.go's own reconnect loop (enabled via nats.Option) is all the
// resilience this needs.
package eventexport

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	brokerErrors "github.com/c360/msgbroker/errors"
	"github.com/c360/msgbroker/metric"
	"github.com/nats-io/nats.go"
)

// Config is eventexport's view of config.EventExportConfig: URLs to
// dial, the subject to publish under, and how often to emit a metrics
// snapshot. Exporting is disabled when URLs is empty.
type Config struct {
	URLs          []string
	Subject       string
	SnapshotEvery time.Duration
}

// Enabled reports whether cfg names at least one NATS URL.
func (cfg Config) Enabled() bool {
	return len(cfg.URLs) > 0
}

// monEvent is the JSON document published for a channel
// register/unregister transition, mirroring the payload shape
// broker/router.go's emitMonitorEvent builds for wire-level mon peers.
type monEvent struct {
	Event     string    `json:"event"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// snapshotEvent wraps a metric.Snapshot with a timestamp for the
// periodic publish.
type snapshotEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Metrics   metric.Snapshot `json:"metrics"`
}

// Exporter publishes broker lifecycle events and metric snapshots to a
// NATS subject. A nil *Exporter (returned by New when cfg is disabled)
// is safe to call every method on; they're all no-ops.
type Exporter struct {
	cfg    Config
	log    *slog.Logger
	conn   *nats.Conn
	broker *metric.Broker

	eventSubject    string
	snapshotSubject string
}

// New dials cfg.URLs and returns an Exporter, or (nil, nil) if cfg is
// disabled — callers can treat the nil case exactly like an enabled
// one since every method tolerates a nil receiver.
func New(cfg Config, broker *metric.Broker, log *slog.Logger) (*Exporter, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "msgbroker.events"
	}

	conn, err := nats.Connect(
		joinURLs(cfg.URLs),
		nats.Name("msgbroker-eventexport"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("eventexport: disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("eventexport: reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, brokerErrors.WrapTransient(err, "eventexport", "New", "connect to NATS")
	}

	return &Exporter{
		cfg:             cfg,
		log:             log,
		conn:            conn,
		broker:          broker,
		eventSubject:    subject + ".mon",
		snapshotSubject: subject + ".snapshot",
	}, nil
}

// PublishMonEvent publishes one channel-lifecycle transition. Intended
// to be wired as a broker.Broker.SetMonEventSink callback; failures are
// logged, never returned, since event export must never affect routing.
func (e *Exporter) PublishMonEvent(event, channel string) {
	if e == nil {
		return
	}
	payload, err := json.Marshal(monEvent{Event: event, Channel: channel, Timestamp: time.Now()})
	if err != nil {
		e.log.Warn("eventexport: marshal mon event", "error", err)
		return
	}
	if err := e.conn.Publish(e.eventSubject, payload); err != nil {
		e.log.Warn("eventexport: publish mon event", "error", err, "channel", channel)
	}
}

// Run publishes a metrics snapshot every cfg.SnapshotEvery until ctx is
// cancelled. A zero SnapshotEvery disables periodic snapshots entirely.
func (e *Exporter) Run(ctx context.Context) {
	if e == nil || e.cfg.SnapshotEvery <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.SnapshotEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.publishSnapshot()
		}
	}
}

func (e *Exporter) publishSnapshot() {
	payload, err := json.Marshal(snapshotEvent{Timestamp: time.Now(), Metrics: e.broker.Snapshot()})
	if err != nil {
		e.log.Warn("eventexport: marshal snapshot", "error", err)
		return
	}
	if err := e.conn.Publish(e.snapshotSubject, payload); err != nil {
		e.log.Warn("eventexport: publish snapshot", "error", err)
	}
}

// Close closes the NATS connection without draining it.
func (e *Exporter) Close() {
	if e == nil || e.conn == nil {
		return
	}
	e.conn.Close()
}

func joinURLs(urls []string) string {
	out := urls[0]
	for _, u := range urls[1:] {
		out += "," + u
	}
	return out
}
