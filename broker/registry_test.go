package broker

import (
	"errors"
	"strconv"
	"testing"
)

// deterministicIDs returns a genID-shaped closure yielding "id-0",
// "id-1", ... in order, for registry tests that need predictable names.
func deterministicIDs() func() string {
	n := 0
	return func() string {
		s := "id-" + strconv.Itoa(n)
		n++
		return s
	}
}

func TestRegister_EmptyNameGeneratesOne(t *testing.T) {
	r := NewRegistry()
	r.genID = deterministicIDs()
	peer := newFakePeer("")

	name, err := r.Register("", peer)
	if err != nil {
		t.Fatal(err)
	}
	if name != "id-0" {
		t.Errorf("name = %q, want id-0", name)
	}
	if ch, ok := r.Channel(name); !ok || ch.Peer != peer {
		t.Error("expected channel registered under generated name")
	}
}

func TestRegister_ExactNameMustBeUnique(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("worker-1", newFakePeer("a")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Register("worker-1", newFakePeer("b"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegister_PeerCanOnlyRegisterOnce(t *testing.T) {
	r := NewRegistry()
	peer := newFakePeer("a")
	if _, err := r.Register("first", peer); err != nil {
		t.Fatal(err)
	}
	_, err := r.Register("second", peer)
	if !errors.Is(err, ErrPeerAlreadyRegistered) {
		t.Fatalf("expected ErrPeerAlreadyRegistered, got %v", err)
	}
}

func TestRegister_HashSubstitutionRetriesUntilUnique(t *testing.T) {
	r := NewRegistry()
	ids := []string{"collide", "ok"}
	i := 0
	r.genID = func() string {
		v := ids[i]
		i++
		return v
	}
	if _, err := r.Register("worker-collide", newFakePeer("a")); err != nil {
		t.Fatal(err)
	}

	i = 0
	name, err := r.Register("worker-#", newFakePeer("b"))
	if err != nil {
		t.Fatal(err)
	}
	if name != "worker-ok" {
		t.Errorf("name = %q, want worker-ok (collision should retry)", name)
	}
}

func TestRegister_NameGenerationExhausted(t *testing.T) {
	r := NewRegistry()
	r.genID = func() string { return "x" }
	if _, err := r.Register("prefix-#", newFakePeer("a")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Register("prefix-#", newFakePeer("b"))
	if !errors.Is(err, ErrNameGenerationExhausted) {
		t.Fatalf("expected ErrNameGenerationExhausted, got %v", err)
	}
}

func TestAddResponsePullSubscribe_UnknownChannel(t *testing.T) {
	r := NewRegistry()
	if _, err := r.AddResponse("nope", "topic"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("AddResponse: expected ErrUnknownChannel, got %v", err)
	}
	if _, err := r.AddPull("nope", "topic", nil); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("AddPull: expected ErrUnknownChannel, got %v", err)
	}
	if _, err := r.AddSubscribe("nope", "topic", nil); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("AddSubscribe: expected ErrUnknownChannel, got %v", err)
	}
}

func TestFindResponseTopic_PrefersTargetThenFallsBack(t *testing.T) {
	r := NewRegistry()
	peerA := newFakePeer("a")
	peerB := newFakePeer("b")
	if _, err := r.Register("chan-a", peerA); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register("chan-b", peerB); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddResponse("chan-b", "admin.topic"); err != nil {
		t.Fatal(err)
	}

	ch, ok := r.FindResponseTopic("chan-a", "admin.topic")
	if !ok {
		t.Fatal("expected fallback scan to find chan-b")
	}
	if ch.Name != "chan-b" {
		t.Errorf("ch.Name = %q, want chan-b", ch.Name)
	}

	if _, ok := r.FindResponseTopic("chan-a", "nonexistent.topic"); ok {
		t.Error("expected no match for unknown topic")
	}
}

func TestUnregisterBySocket_CascadesAndDropsMonitors(t *testing.T) {
	r := NewRegistry()
	peer := newFakePeer("chan-a")
	if _, err := r.Register("chan-a", peer); err != nil {
		t.Fatal(err)
	}
	monitor := newFakePeer("mon")
	pattern, _ := CompileImplicit("*")
	r.AddMonitor(pattern, monitor)

	ch, ok := r.UnregisterBySocket(peer)
	if !ok || ch.Name != "chan-a" {
		t.Fatalf("UnregisterBySocket: got %+v, %v", ch, ok)
	}
	if _, ok := r.Channel("chan-a"); ok {
		t.Error("channel should be gone after unregister")
	}

	// Monitor binding belongs to a different peer and must survive.
	if len(r.MatchingMonitors("chan-b")) != 1 {
		t.Error("expected unrelated monitor binding to remain")
	}

	if _, ok := r.UnregisterBySocket(peer); ok {
		t.Error("expected second unregister of the same peer to report not found")
	}
}

func TestAddMonitor_ReturnsAlreadyMatchingChannels(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("worker-1", newFakePeer("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register("worker-2", newFakePeer("b")); err != nil {
		t.Fatal(err)
	}
	pattern, _ := CompilePattern("worker-*", "glob")
	names := r.AddMonitor(pattern, newFakePeer("mon"))
	if len(names) != 2 {
		t.Errorf("got %d matching names, want 2", len(names))
	}
}

func TestLen(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatal("expected empty registry")
	}
	if _, err := r.Register("a", newFakePeer("a")); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
