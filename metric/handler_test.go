package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_DefaultsAddrAndPath(t *testing.T) {
	s := NewServer("", "", NewMetricsRegistry())
	assert.Equal(t, ":9090", s.addr)
	assert.Equal(t, "/metrics", s.path)
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/metrics", NewMetricsRegistry())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond) // let Start bind before Stop races it

	require.NoError(t, s.Stop())
	require.NoError(t, <-errCh)
}

func TestServer_Stop_WithoutStartIsNoop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/metrics", NewMetricsRegistry())
	require.NoError(t, s.Stop())
}

func TestServer_Start_RejectsDoubleStart(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/metrics", NewMetricsRegistry())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	err := s.Start()
	require.Error(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, <-errCh)
}

func TestServer_Start_RejectsNilRegistry(t *testing.T) {
	s := &Server{addr: "127.0.0.1:0", path: "/metrics"}
	require.Error(t, s.Start())
}

func TestServer_Address(t *testing.T) {
	s := NewServer("127.0.0.1:9090", "/metrics", NewMetricsRegistry())
	assert.Equal(t, "http://127.0.0.1:9090/metrics", s.Address())
}

func TestServer_ServesPrometheusFormat(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().ChannelRegistered()

	// Exercises the same promhttp.HandlerFor wiring Start uses, without
	// binding a real listener.
	handler := promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "channels_live")
}
