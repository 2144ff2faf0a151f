package broker

import (
	"errors"
	"log/slog"

	"github.com/c360/msgbroker/wire"
)

// errInvalidParameter marks a malformed internal-request payload.
var errInvalidParameter = errors.New("broker: invalid parameter")

// Router is the single classifier invoked per decoded inbound message.
// Every method here runs on the broker's one routing goroutine;
// nothing in Router, Registry, or TaskQueues needs a lock because the
// scheduling model is single-threaded cooperative.
type Router struct {
	registry *Registry
	queues   *TaskQueues
	log      *slog.Logger
	metrics  Metrics

	// onMonEvent, if set, receives every channel-lifecycle event
	// ("register"/"unregister") regardless of whether any mon-bound
	// peer is watching — this is how broker/eventexport observes
	// lifecycle events without being a wire-level monitor itself.
	onMonEvent func(event, channel string)
}

// SetMonEventSink installs an observer called for every channel
// register/unregister event. Pass nil to detach. Must only be called
// before Router.Route starts being invoked from the routing goroutine.
func (r *Router) SetMonEventSink(sink func(event, channel string)) {
	r.onMonEvent = sink
}

// Metrics is the subset of metric.Broker the router touches directly;
// narrowed to an interface here so router tests don't need the real
// Prometheus collectors.
type Metrics interface {
	FramesDecoded()
	FramesMalformed()
	ChannelRegistered()
	ChannelUnregistered()
	PushDelivered()
	PushRedelivered()
	PushAcked()
	BytesForwarded(n int)
}

// NewRouter builds a Router over a fresh registry and task queue set.
func NewRouter(log *slog.Logger, metrics Metrics) *Router {
	r := &Router{
		registry: NewRegistry(),
		log:      log,
		metrics:  metrics,
	}
	r.queues = NewTaskQueues(r.registry.Lookup)
	return r
}

// Route classifies and dispatches one decoded inbound message by kind.
// frame is the original undecoded bytes, needed for zero-copy
// forwarding of req/res.
func (r *Router) Route(from Peer, msg wire.Message, frame []byte) {
	r.metrics.FramesDecoded()
	switch msg.Kind {
	case wire.KindReq:
		r.routeReq(from, msg, frame)
	case wire.KindSReq:
		r.routeSReq(from, msg)
	case wire.KindRes:
		r.routeRes(from, msg, frame)
	case wire.KindPush:
		r.routePush(from, msg)
	case wire.KindPub:
		r.routePub(from, msg)
	case wire.KindAck:
		r.routeAck(msg)
	default:
		// sub/pull arrive only via internal request topics; a bare
		// sub/pull/mon frame from a client has no routing action
		// defined, so it is dropped.
	}
}

// routeReq handles a req: a non-empty target is forwarded untouched to
// that channel's socket, or answered with TargetChannelNonexistent if no
// such channel is live; an empty target addresses the broker's own
// channel, so topic is handled as an internal administrative request.
func (r *Router) routeReq(from Peer, msg wire.Message, frame []byte) {
	if msg.Target != "" {
		r.forward(from, msg, frame, wire.ErrTargetChannelNonexistent)
		return
	}
	r.handleSelfRequest(from, msg)
}

// routeSReq is req restricted to internal handlers.
func (r *Router) routeSReq(from Peer, msg wire.Message) {
	if _, ok := internalHandlers[msg.Topic]; !ok {
		r.replyError(from, msg, wire.ErrTopicNonexistent)
		return
	}
	r.handleSelfRequest(from, msg)
}

func (r *Router) handleSelfRequest(from Peer, msg wire.Message) {
	if handler, ok := internalHandlers[msg.Topic]; ok {
		payload, err := handler(r, from, msg)
		if err != nil {
			r.replyError(from, msg, errToCode(err))
			return
		}
		r.reply(from, msg, payload, wire.ErrNone)
		return
	}

	if ch, ok := r.registry.FindResponseTopic(msg.Target, msg.Topic); ok {
		resolved := msg
		resolved.Target = ch.Name
		r.forwardToChannel(from, resolved, ch, nil)
		return
	}
	r.replyError(from, msg, wire.ErrTopicNonexistent)
}

// routeRes forwards a res untouched if it is not addressed back to the
// broker itself; broker-originated requests are out of scope for this
// implementation (the broker never issues its own req), so a
// self-addressed res has nothing waiting for it and is dropped.
func (r *Router) routeRes(from Peer, msg wire.Message, frame []byte) {
	if msg.Target == "" {
		return
	}
	r.forward(from, msg, frame, wire.ErrNone)
}

// forward delivers frame's raw bytes unmodified to msg.Target's
// socket, or replies to from with failCode if the target is unknown.
// Forwarding the raw bytes keeps delivery zero-copy.
func (r *Router) forward(from Peer, msg wire.Message, frame []byte, failCode wire.ErrorCode) {
	ch, ok := r.registry.Channel(msg.Target)
	if !ok {
		if failCode != wire.ErrNone {
			r.replyError(from, msg, failCode)
		}
		return
	}
	r.forward1(ch.Peer, frame)
}

func (r *Router) forwardToChannel(from Peer, msg wire.Message, ch *Channel, frame []byte) {
	if frame == nil {
		enc, err := wire.Encode(msg)
		if err != nil {
			return
		}
		frame = enc
	}
	r.forward1(ch.Peer, frame)
}

func (r *Router) forward1(to Peer, frame []byte) {
	to.Send(frame)
	r.metrics.BytesForwarded(len(frame))
}

// routePush enqueues each of msg.Items as its own task on the topic's
// pull queue. Pull queues are keyed by topic alone (workers bind to a
// topic via addPullListener, not a target), so msg.Target is not used;
// each task carries msg.Source as its source.
func (r *Router) routePush(from Peer, msg wire.Message) {
	for _, item := range msg.Items {
		result := r.queues.Push(msg.Topic, msg.Source, item.Payload)
		if len(result.delivered) > 0 {
			r.metrics.PushDelivered()
		}
	}
}

// routePub fans msg out to every live (sub, topic) member.
func (r *Router) routePub(from Peer, msg wire.Message) {
	r.queues.Publish(msg.Topic, msg.Source, msg.Payload)
}

// routeAck removes msg.ID from the topic's in-flight table.
func (r *Router) routeAck(msg wire.Message) {
	r.queues.Ack(msg.Topic, msg.ID)
	r.metrics.PushAcked()
}

// HandleDisconnect cascades a peer's departure: unregister its
// channel, emit mon events, and redeliver anything stranded in flight
// to it.
func (r *Router) HandleDisconnect(peer Peer) {
	ch, ok := r.registry.UnregisterBySocket(peer)
	if !ok {
		return
	}
	r.metrics.ChannelUnregistered()
	r.queues.RemoveWorker(ch.Name)
	r.emitMonitorEvent("unregister", ch.Name)
}

func (r *Router) emitMonitorEvent(event, channel string) {
	if event == "register" {
		r.metrics.ChannelRegistered()
	}
	if r.onMonEvent != nil {
		r.onMonEvent(event, channel)
	}
	observers := r.registry.MatchingMonitors(channel)
	if len(observers) == 0 {
		return
	}
	payload, err := wire.MarshalJSONPayload(map[string]string{"event": event, "channel": channel})
	if err != nil {
		return
	}
	msg := wire.NewMon(newItemID(), payload)
	frame, err := wire.Encode(msg)
	if err != nil {
		return
	}
	for _, obs := range observers {
		obs.Send(frame)
	}
}

func (r *Router) reply(from Peer, req wire.Message, payload wire.Payload, code wire.ErrorCode) {
	res := wire.NewResponse(req.ID, req.Topic, req.Target, req.Source, payload, code)
	frame, err := wire.Encode(res)
	if err != nil {
		return
	}
	from.Send(frame)
}

func (r *Router) replyError(from Peer, req wire.Message, code wire.ErrorCode) {
	payload, _ := wire.MarshalJSONPayload(map[string]any{})
	r.reply(from, req, payload, code)
}

// errToCode maps the broker-internal Go errors a handler can return to
// their wire.ErrorCode.
func errToCode(err error) wire.ErrorCode {
	switch {
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrPeerAlreadyRegistered), errors.Is(err, ErrNameGenerationExhausted):
		return wire.ErrRegisterFail
	case errors.Is(err, ErrUnknownChannel):
		return wire.ErrTargetChannelNonexistent
	case errors.Is(err, errInvalidParameter):
		return wire.ErrInvalidParameter
	default:
		return wire.ErrInvalidParameter
	}
}
