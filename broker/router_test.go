package broker

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/c360/msgbroker/wire"
)

// countingMetrics implements Metrics and just counts calls, so router
// tests can assert on what happened without pulling in Prometheus.
type countingMetrics struct {
	framesDecoded        int
	framesMalformed      int
	channelsRegistered   int
	channelsUnregistered int
	pushDelivered        int
	pushRedelivered      int
	pushAcked            int
	bytesForwarded       int
}

func (m *countingMetrics) FramesDecoded()       { m.framesDecoded++ }
func (m *countingMetrics) FramesMalformed()     { m.framesMalformed++ }
func (m *countingMetrics) ChannelRegistered()   { m.channelsRegistered++ }
func (m *countingMetrics) ChannelUnregistered() { m.channelsUnregistered++ }
func (m *countingMetrics) PushDelivered()       { m.pushDelivered++ }
func (m *countingMetrics) PushRedelivered()     { m.pushRedelivered++ }
func (m *countingMetrics) PushAcked()           { m.pushAcked++ }
func (m *countingMetrics) BytesForwarded(n int) { m.bytesForwarded += n }

func newTestRouter() (*Router, *countingMetrics) {
	m := &countingMetrics{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(log, m), m
}

func decodeSent(t *testing.T, frame []byte) wire.Message {
	t.Helper()
	msg, err := wire.Decode(frame)
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	return msg
}

func TestRoute_Req_ForwardsZeroCopyToTarget(t *testing.T) {
	r, m := newTestRouter()
	peerB := newFakePeer("b")
	if _, err := r.registry.Register("b", peerB); err != nil {
		t.Fatal(err)
	}

	req := wire.NewRequest(1, "topic", "a", "b", wire.StringPayload("hello"))
	frame, err := wire.Encode(req)
	if err != nil {
		t.Fatal(err)
	}

	peerA := newFakePeer("a")
	r.Route(peerA, req, frame)

	if m.framesDecoded != 1 {
		t.Errorf("framesDecoded = %d, want 1", m.framesDecoded)
	}
	if len(peerB.sent) != 1 || string(peerB.sent[0]) != string(frame) {
		t.Fatalf("expected target to receive the exact original frame bytes")
	}
	if m.bytesForwarded != len(frame) {
		t.Errorf("bytesForwarded = %d, want %d", m.bytesForwarded, len(frame))
	}
	if len(peerA.sent) != 0 {
		t.Error("source should not receive anything on a successful forward")
	}
}

func TestRoute_Req_UnknownTargetRepliesTargetChannelNonexistent(t *testing.T) {
	r, _ := newTestRouter()
	req := wire.NewRequest(1, "topic", "a", "ghost", wire.StringPayload("hi"))
	frame, _ := wire.Encode(req)

	peerA := newFakePeer("a")
	r.Route(peerA, req, frame)

	if len(peerA.sent) != 1 {
		t.Fatalf("expected one reply to source, got %d", len(peerA.sent))
	}
	res := decodeSent(t, peerA.sent[0])
	if res.Error != wire.ErrTargetChannelNonexistent {
		t.Errorf("Error = %v, want ErrTargetChannelNonexistent", res.Error)
	}
}

func TestRoute_Req_SelfRequest_RegisterAssignsChannelName(t *testing.T) {
	r, m := newTestRouter()
	req := wire.NewRequest(1, "register", "", "", wire.RawPayload(nil))
	frame, _ := wire.Encode(req)

	peer := newFakePeer("")
	r.Route(peer, req, frame)

	if len(peer.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(peer.sent))
	}
	res := decodeSent(t, peer.sent[0])
	if res.Error != wire.ErrNone {
		t.Fatalf("expected success, got error %v", res.Error)
	}
	raw, err := res.Payload.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}
	if body["channelName"] == "" {
		t.Error("expected a generated channelName in the register reply")
	}
	if m.channelsRegistered != 1 {
		t.Errorf("channelsRegistered = %d, want 1", m.channelsRegistered)
	}
}

func TestRoute_SReq_UnknownTopicRepliesTopicNonexistent(t *testing.T) {
	r, _ := newTestRouter()
	req := wire.NewSReq(1, "no-such-topic", "src", wire.RawPayload(nil))
	peer := newFakePeer("src")
	r.Route(peer, req, nil)

	if len(peer.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(peer.sent))
	}
	res := decodeSent(t, peer.sent[0])
	if res.Error != wire.ErrTopicNonexistent {
		t.Errorf("Error = %v, want ErrTopicNonexistent", res.Error)
	}
}

func TestRoute_Push_DeliversAndCountsMetric(t *testing.T) {
	r, m := newTestRouter()
	worker := newFakePeer("w")
	if _, err := r.registry.Register("w", worker); err != nil {
		t.Fatal(err)
	}
	r.queues.AddPullWorker("jobs", "w")

	push := wire.NewPush(1, "jobs", "src", "jobs", []wire.Item{{Payload: wire.StringPayload("work")}})
	r.Route(worker, push, nil)

	if len(worker.sent) != 1 {
		t.Fatalf("worker got %d frames, want 1", len(worker.sent))
	}
	if m.pushDelivered != 1 {
		t.Errorf("pushDelivered = %d, want 1", m.pushDelivered)
	}
}

func TestRoute_Pub_FansOutToSubscribers(t *testing.T) {
	r, _ := newTestRouter()
	sub := newFakePeer("s")
	if _, err := r.registry.Register("s", sub); err != nil {
		t.Fatal(err)
	}
	r.queues.AddSubWorker("events", "s")

	pub := wire.NewPub(1, "events", "src", "events", wire.StringPayload("hi"))
	r.Route(sub, pub, nil)

	if len(sub.sent) != 1 {
		t.Errorf("sub got %d frames, want 1", len(sub.sent))
	}
}

func TestRoute_Ack_CountsMetric(t *testing.T) {
	r, m := newTestRouter()
	ack := wire.NewAck(42, "jobs")
	r.Route(newFakePeer("x"), ack, nil)
	if m.pushAcked != 1 {
		t.Errorf("pushAcked = %d, want 1", m.pushAcked)
	}
}

func TestHandleDisconnect_CascadesAndEmitsMonEvents(t *testing.T) {
	r, m := newTestRouter()
	var events []string
	r.SetMonEventSink(func(event, channel string) {
		events = append(events, event+":"+channel)
	})

	peer := newFakePeer("")
	req := wire.NewRequest(1, "register", "", "", wire.RawPayload(nil))
	r.Route(peer, req, nil)

	res := decodeSent(t, peer.sent[0])
	raw, _ := res.Payload.Bytes()
	var body map[string]string
	json.Unmarshal(raw, &body)
	name := body["channelName"]

	r.HandleDisconnect(peer)

	if m.channelsUnregistered != 1 {
		t.Errorf("channelsUnregistered = %d, want 1", m.channelsUnregistered)
	}
	if len(events) != 2 || events[0] != "register:"+name || events[1] != "unregister:"+name {
		t.Errorf("events = %v, want register/unregister pair for %q", events, name)
	}
}

func TestEmitMonitorEvent_FiresHookEvenWithNoMatchingMonitors(t *testing.T) {
	r, _ := newTestRouter()
	called := false
	r.SetMonEventSink(func(event, channel string) { called = true })
	r.emitMonitorEvent("register", "some-channel")
	if !called {
		t.Error("expected hook to fire even with zero wire-level monitors")
	}
}
