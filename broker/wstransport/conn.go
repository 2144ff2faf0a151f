// Package wstransport adapts WebSocket binary-message connections to the
// net.Conn-shaped byte stream broker.Broker expects, as a plain
// transport with no NATS publishing or federation concerns of its own
// — the broker core never knows it isn't a raw TCP/unix socket.
package wstransport

import (
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Conn adapts a *websocket.Conn to net.Conn by treating the WebSocket
// connection as a stream of binary messages: Write sends one binary
// message per call, Read drains the current inbound message before
// blocking for the next one.
type Conn struct {
	ws *websocket.Conn

	readBuf []byte // leftover bytes from the current inbound message
}

// NewConn wraps an already-upgraded *websocket.Conn.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Read implements net.Conn. wire.Decode/frame.Reassembler only need a
// byte stream, so message boundaries need not line up with frame
// boundaries — Read simply drains whatever the current WebSocket
// message holds, fetching a new one when empty.
func (c *Conn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.readBuf = data
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write implements net.Conn, sending p as a single binary WebSocket
// message. The broker only ever writes one already-framed wire message
// per call (see broker/connection.go's writeLoop), so this never splits
// a frame across messages.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements net.Conn.
func (c *Conn) Close() error { return c.ws.Close() }

// LocalAddr implements net.Conn.
func (c *Conn) LocalAddr() net.Addr { return c.ws.LocalAddr() }

// RemoteAddr implements net.Conn.
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
