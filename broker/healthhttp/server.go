// Package healthhttp exposes the broker's liveness status over plain
// HTTP, separately from metric.Server's Prometheus exposition.
package healthhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/c360/msgbroker/errors"
	"github.com/c360/msgbroker/health"
)

// Server serves GET /healthz with the aggregate health.Monitor status.
type Server struct {
	addr    string
	monitor *health.Monitor
	system  string

	mu     sync.Mutex
	server *http.Server
}

// NewServer builds a healthhttp.Server bound to addr (a net.Listen-shaped
// address, e.g. ":8080"), reporting the aggregate of monitor's tracked
// components under systemName.
func NewServer(addr, systemName string, monitor *health.Monitor) *Server {
	if addr == "" {
		addr = ":8080"
	}
	return &Server{addr: addr, monitor: monitor, system: systemName}
}

// Start runs the HTTP server until Stop is called or it fails to bind.
// Intended to be run in its own goroutine, supervised the way
// broker.Broker.Run supervises acceptLoop/routeLoop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server already running"),
			"healthhttp.Server", "Start", "cannot start a server twice")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.server = &http.Server{Addr: s.addr, Handler: mux}
	srv := s.server
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "healthhttp.Server", "Start",
			fmt.Sprintf("failed to start server on %s", s.addr))
	}
	return nil
}

// Stop closes the listening socket and any active connections
// immediately (http.Server.Close, not a graceful Shutdown).
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	if err != nil {
		return errors.WrapTransient(err, "healthhttp.Server", "Stop", "failed to stop HTTP server")
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status := s.monitor.AggregateHealth(s.system)

	w.Header().Set("Content-Type", "application/json")
	if !status.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
