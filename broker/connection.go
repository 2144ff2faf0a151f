package broker

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	brokerErrors "github.com/c360/msgbroker/errors"
	"github.com/c360/msgbroker/frame"
	"github.com/c360/msgbroker/wire"
)

// readBufferSize is the chunk size handed to Reassembler.Feed per read.
const readBufferSize = 32 * 1024

// sendMailboxDepth bounds the per-peer outbound queue. A peer that
// cannot keep up has its write goroutine fall behind the transport's
// own backpressure, which the mailbox only bridges: it absorbs the gap
// between the single routing goroutine and that transport-level
// backpressure.
const sendMailboxDepth = 256

// conn is the Connection Lifecycle's per-peer state: the socket, its
// Reassembler, and an outbound mailbox drained by a dedicated writer
// goroutine so Peer.Send never blocks the routing goroutine on a slow
// reader.
type conn struct {
	nc   net.Conn
	name string // set once by Router.handleRegister via setName; empty until registered

	mailbox chan []byte
	done    chan struct{}
	closeOnce sync.Once
}

func newConn(nc net.Conn) *conn {
	return &conn{
		nc:      nc,
		mailbox: make(chan []byte, sendMailboxDepth),
		done:    make(chan struct{}),
	}
}

// Send implements Peer. A full mailbox means the peer is not draining
// fast enough; the frame is dropped rather than blocking every other
// peer's routing. Delivery past a slow or unresponsive subscriber is
// never guaranteed, only that other peers stay unaffected.
func (c *conn) Send(f []byte) {
	select {
	case c.mailbox <- f:
	case <-c.done:
	default:
	}
}

func (c *conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.nc.Close()
	})
}

func (c *conn) Name() string { return c.name }

func (c *conn) setName(name string) { c.name = name }

// writeLoop drains c.mailbox to the socket until Close is called or a
// write fails, at which point it reports the failure back through
// disconnects so the router can cascade the teardown without the
// writer ever touching Registry/TaskQueues itself.
func (c *conn) writeLoop(disconnects chan<- Peer) {
	for {
		select {
		case f := <-c.mailbox:
			if _, err := c.nc.Write(f); err != nil {
				c.Close()
				// c.done is closed by now, so it cannot be a select
				// alternative without racing the send.
				select {
				case disconnects <- c:
				default:
				}
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop feeds bytes from the socket through a Reassembler and
// routes each complete frame, until the socket errors or closes.
func (c *conn) readLoop(log *slog.Logger, route func(Peer, wire.Message, []byte), disconnects chan<- Peer) {
	reassembler := frame.New()
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			frames, ferr := reassembler.Feed(buf[:n])
			for _, fr := range frames {
				msg, derr := wire.Decode(fr)
				if derr != nil {
					log.Warn("dropping malformed frame", "peer", c.name, "error", derr)
					continue
				}
				route(c, msg, fr)
			}
			if ferr != nil {
				log.Warn("closing peer on malformed frame", "peer", c.name, "error", ferr)
				break
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Debug("peer read error", "peer", c.name, "error", err)
			}
			break
		}
	}
	reassembler.Reset()
	c.Close()
	// c.done is closed by now, so it cannot be a select alternative
	// without racing the send.
	select {
	case disconnects <- c:
	default:
	}
}

// acceptErrorHandler is invoked with listen/accept-level errors that
// cannot be resolved locally, surfacing them to the caller. nil means
// "log only".
type acceptErrorHandler func(error)

// wrapAcceptError classifies an Accept failure using the shared errors
// package so callers can decide retry vs. fatal shutdown.
func wrapAcceptError(err error) error {
	return brokerErrors.WrapTransient(err, "broker", "Accept", "accept incoming connection")
}
