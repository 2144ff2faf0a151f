package broker

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	brokerErrors "github.com/c360/msgbroker/errors"
	"github.com/c360/msgbroker/pkg/retry"
	"github.com/c360/msgbroker/wire"
	"golang.org/x/sync/errgroup"
)

// Config configures a Broker's listening endpoint.
type Config struct {
	// Network is "tcp" or "unix".
	Network string
	// Address is a "host:port" for tcp, or a filesystem path for unix.
	Address string
	// OnAcceptError receives listen/accept-level errors the broker
	// cannot resolve itself. May be nil.
	OnAcceptError acceptErrorHandler
}

// Broker owns the listening socket and the single routing goroutine
// that is the only writer of Registry/TaskQueues state.
type Broker struct {
	cfg    Config
	log    *slog.Logger
	router *Router

	listener net.Listener

	inbound     chan inboundMsg
	disconnects chan Peer

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// inboundMsg is one decoded frame waiting to be routed. Decoding
// happens on the per-peer read goroutine (I/O is the only suspension
// point); routing itself only ever runs on routeLoop's single
// goroutine.
type inboundMsg struct {
	from  *conn
	msg   wire.Message
	frame []byte
}

// New builds a Broker. metrics must be non-nil.
func New(cfg Config, log *slog.Logger, metrics Metrics) *Broker {
	return &Broker{
		cfg:         cfg,
		log:         log,
		router:      NewRouter(log, metrics),
		inbound:     make(chan inboundMsg, 1024),
		disconnects: make(chan Peer, 64),
		conns:       make(map[*conn]struct{}),
	}
}

// SetMonEventSink installs an observer called for every channel
// register/unregister event, independent of any wire-level mon peer —
// this is how an optional broker/eventexport publisher taps channel
// lifecycle without the broker core importing a NATS client. Call
// before Run/Serve.
func (b *Broker) SetMonEventSink(sink func(event, channel string)) {
	b.router.SetMonEventSink(sink)
}

// Run listens, accepts connections, and routes inbound frames until
// ctx is cancelled. It returns once the listener and every connection
// goroutine have wound down.
func (b *Broker) Run(ctx context.Context) error {
	if err := b.listen(ctx); err != nil {
		return err
	}
	return b.Serve(ctx, b.listener)
}

// Serve drives accept/route loops over an already-bound net.Listener,
// bypassing Config-based dialing. This is how non-tcp/unix transports
// (e.g. broker/wstransport.Listener) plug into the same broker core:
// the core never knows the listener isn't a raw socket.
func (b *Broker) Serve(ctx context.Context, ln net.Listener) error {
	b.listener = ln
	defer b.listener.Close()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return b.acceptLoop(gctx) })
	group.Go(func() error { b.routeLoop(gctx); return nil })

	<-gctx.Done()
	b.listener.Close()
	b.closeAllConns()

	return group.Wait()
}

// listen binds the configured address, retrying through a stale unix
// socket path: if the address is already in use and it's a filesystem
// path, unlink it and retry after a short delay.
func (b *Broker) listen(ctx context.Context) error {
	unlinked := false
	attempt := func() error {
		ln, err := net.Listen(b.cfg.Network, b.cfg.Address)
		if err == nil {
			b.listener = ln
			return nil
		}
		if b.cfg.Network == "unix" && isAddrInUse(err) && !unlinked {
			unlinked = true
			_ = os.Remove(b.cfg.Address)
			return brokerErrors.WrapTransient(err, "broker", "Listen", "unlink stale unix socket, retrying")
		}
		return retry.NonRetryable(brokerErrors.WrapFatal(err, "broker", "Listen", "bind listening socket"))
	}

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2,
		AddJitter:    true,
	}, attempt)
	if err != nil && b.cfg.OnAcceptError != nil {
		b.cfg.OnAcceptError(err)
	}
	return err
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

func (b *Broker) acceptLoop(ctx context.Context) error {
	for {
		nc, err := b.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if b.cfg.OnAcceptError != nil {
				b.cfg.OnAcceptError(wrapAcceptError(err))
			}
			continue
		}
		c := newConn(nc)
		b.mu.Lock()
		b.conns[c] = struct{}{}
		b.mu.Unlock()

		go c.writeLoop(b.disconnects)
		go c.readLoop(b.log, b.enqueue, b.disconnects)
	}
}

// enqueue hands one decoded inbound frame to the routing goroutine.
// Called from a per-peer read goroutine, never from routeLoop itself.
func (b *Broker) enqueue(from Peer, msg wire.Message, frame []byte) {
	c, _ := from.(*conn)
	b.inbound <- inboundMsg{from: c, msg: msg, frame: frame}
}

func (b *Broker) routeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case im := <-b.inbound:
			b.router.Route(im.from, im.msg, im.frame)
		case peer := <-b.disconnects:
			b.router.HandleDisconnect(peer)
			if c, ok := peer.(*conn); ok {
				b.mu.Lock()
				delete(b.conns, c)
				b.mu.Unlock()
			}
		}
	}
}

func (b *Broker) closeAllConns() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		c.Close()
	}
}
