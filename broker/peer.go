package broker

// Peer is what the registry and task queues know about a connected
// socket: enough to hand it outbound bytes and to close it. The
// Connection Lifecycle (connection.go) is the only implementation;
// registry.go and queue.go never touch a net.Conn directly. Sockets are
// owned by the Connection Lifecycle; the Channel Registry holds only a
// non-owning reference.
//
// Send is fire-and-forget: a full or closed peer silently drops the
// frame rather than blocking the caller. Real write failures are
// detected asynchronously by the peer's own writer goroutine, which
// then closes the connection and reports it back to the broker's
// single routing goroutine as a disconnect event — this is what lets
// sub fan-out close the offending peer on a write failure without
// aborting delivery to the rest, and without the router ever blocking
// on a slow socket.
type Peer interface {
	// Send enqueues frame for delivery to this peer. frame must not be
	// mutated after the call; buffers handed to the transport belong to
	// it until delivery completes.
	Send(frame []byte)
	// Close tears down the connection.
	Close()
	// Name is the peer's current channel name, or "" if unregistered;
	// used only for diagnostics.
	Name() string
}
