package wstransport

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Listener implements net.Listener over an HTTP server that upgrades
// every request on Path to a WebSocket connection and hands it to
// Accept, so broker.Broker.Serve can drive it exactly like a TCP or unix
// listener without any WebSocket-specific code in the broker core.
type Listener struct {
	addr     string
	path     string
	upgrader websocket.Upgrader

	httpServer *http.Server
	conns      chan net.Conn
	closeOnce  sync.Once
	closed     chan struct{}
}

// NewListener builds a Listener bound to addr, upgrading requests to
// path (e.g. "/ws"). Call Serve in its own goroutine before Accept will
// yield connections.
func NewListener(addr, path string) *Listener {
	if path == "" {
		path = "/ws"
	}
	l := &Listener{
		addr:   addr,
		path:   path,
		conns:  make(chan net.Conn, 16),
		closed: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handleUpgrade)
	l.httpServer = &http.Server{Addr: addr, Handler: mux}
	return l
}

// Serve runs the underlying HTTP server until Close is called. It
// blocks, like net.Listener-backed serving loops, so callers run it in
// its own goroutine.
func (l *Listener) Serve() error {
	err := l.httpServer.ListenAndServe()
	if err != nil && errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case l.conns <- NewConn(ws):
	case <-l.closed:
		ws.Close()
	}
}

// Accept implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

// Close implements net.Listener.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return l.httpServer.Close()
}

// Addr implements net.Listener.
func (l *Listener) Addr() net.Addr {
	return wsAddr(l.addr)
}

type wsAddr string

func (a wsAddr) Network() string { return "ws" }
func (a wsAddr) String() string  { return string(a) }
