package broker

import (
	"strings"

	"github.com/google/uuid"
)

// PullOptions and SubscribeOptions are opaque to the registry and task
// queues except for fields the router itself narrows on; they are
// reserved and carried verbatim.
type PullOptions map[string]any
type SubscribeOptions map[string]any

// Channel is a named endpoint owned by a connected peer. The registry
// is its only owner; task queues and monitors hold the channel's Name,
// not a pointer to it, so a channel can be removed out from under a
// queue between two dispatch attempts without any coordination: a task
// queue holds only non-owning references to channels.
type Channel struct {
	Name   string
	Peer   Peer
	Socket Peer // alias of Peer kept for readability at call sites that think in socket terms

	ResponseTopics  map[string]struct{}
	PullTopics      map[string]PullOptions
	SubscribeTopics map[string]SubscribeOptions
}

func newChannel(name string, peer Peer) *Channel {
	return &Channel{
		Name:            name,
		Peer:            peer,
		Socket:          peer,
		ResponseTopics:  make(map[string]struct{}),
		PullTopics:      make(map[string]PullOptions),
		SubscribeTopics: make(map[string]SubscribeOptions),
	}
}

type monitorBinding struct {
	pattern  *Pattern
	observer Peer
}

// Registry tracks registered channels, their topic bindings, and
// pattern monitors.
//
// Registry is only ever touched from the broker's single routing
// goroutine: the single-threaded cooperative model removes the need
// for locks on the core data structures, so Registry carries no mutex.
// That omission is deliberate, not an oversight — see DESIGN.md.
type Registry struct {
	byName map[string]*Channel
	byPeer map[Peer]*Channel
	monitors []monitorBinding

	// genID produces unique id fragments for "#" name substitution and
	// for the auto-generated name on empty registration requests. It is
	// a field (not a bare call to uuid.NewString) so tests can inject a
	// deterministic generator.
	genID func() string
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Channel),
		byPeer: make(map[Peer]*Channel),
		genID:  uuid.NewString,
	}
}

// maxNameGenerationAttempts bounds the "#" substitution retry loop.
const maxNameGenerationAttempts = 64

// Register creates a channel for peer under a name derived from
// requestedName:
//   - "" generates a fresh id as the name.
//   - a name containing "#" substitutes a generated id for each "#"
//     occurrence, retrying the whole substitution until the result is
//     unique.
//   - otherwise the exact name is used and must not already exist.
func (r *Registry) Register(requestedName string, peer Peer) (string, error) {
	if _, exists := r.byPeer[peer]; exists {
		return "", ErrPeerAlreadyRegistered
	}

	var name string
	switch {
	case requestedName == "":
		name = r.genID()
	case strings.Contains(requestedName, "#"):
		var err error
		name, err = r.generateUnique(requestedName)
		if err != nil {
			return "", err
		}
	default:
		if _, exists := r.byName[requestedName]; exists {
			return "", ErrDuplicateName
		}
		name = requestedName
	}

	// Empty-name and "#" branches can, vanishingly rarely, still race
	// into collision if genID repeats; guard every path the same way.
	if _, exists := r.byName[name]; exists {
		if requestedName != "" && !strings.Contains(requestedName, "#") {
			return "", ErrDuplicateName
		}
		var err error
		name, err = r.generateUnique(requestedName)
		if err != nil {
			return "", err
		}
	}

	ch := newChannel(name, peer)
	r.byName[name] = ch
	r.byPeer[peer] = ch
	return name, nil
}

func (r *Registry) generateUnique(requestedName string) (string, error) {
	for attempt := 0; attempt < maxNameGenerationAttempts; attempt++ {
		candidate := requestedName
		if candidate == "" {
			candidate = r.genID()
		} else {
			var b strings.Builder
			for _, ch := range candidate {
				if ch == '#' {
					b.WriteString(r.genID())
				} else {
					b.WriteRune(ch)
				}
			}
			candidate = b.String()
		}
		if _, exists := r.byName[candidate]; !exists {
			return candidate, nil
		}
	}
	return "", ErrNameGenerationExhausted
}

// AddResponse records topic as a response topic for channelName,
// accepted for req traffic. Returns ErrUnknownChannel if the channel
// doesn't exist.
func (r *Registry) AddResponse(channelName, topic string) (*Channel, error) {
	ch, ok := r.byName[channelName]
	if !ok {
		return nil, ErrUnknownChannel
	}
	ch.ResponseTopics[topic] = struct{}{}
	return ch, nil
}

// AddPull records a pull subscription for channelName on topic.
func (r *Registry) AddPull(channelName, topic string, opts PullOptions) (*Channel, error) {
	ch, ok := r.byName[channelName]
	if !ok {
		return nil, ErrUnknownChannel
	}
	ch.PullTopics[topic] = opts
	return ch, nil
}

// AddSubscribe records a subscribe subscription for channelName on topic.
func (r *Registry) AddSubscribe(channelName, topic string, opts SubscribeOptions) (*Channel, error) {
	ch, ok := r.byName[channelName]
	if !ok {
		return nil, ErrUnknownChannel
	}
	ch.SubscribeTopics[topic] = opts
	return ch, nil
}

// FindResponseTopic resolves a req's target+topic to the channel that
// should receive it: targetName's own registration first, then a
// broker-wide fallback scan used when a client asks the broker itself
// to route a req whose real target it doesn't know.
func (r *Registry) FindResponseTopic(targetName, topic string) (*Channel, bool) {
	if targetName != "" {
		if ch, ok := r.byName[targetName]; ok {
			if _, has := ch.ResponseTopics[topic]; has {
				return ch, true
			}
		}
	}
	for _, ch := range r.byName {
		if _, has := ch.ResponseTopics[topic]; has {
			return ch, true
		}
	}
	return nil, false
}

// Lookup returns the live channel named name, if any. It implements
// the ChannelLookup signature task queues use to resolve non-owning
// member references at dispatch time.
func (r *Registry) Lookup(name string) (Peer, bool) {
	ch, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return ch.Peer, true
}

// Channel returns the full channel record, if live.
func (r *Registry) Channel(name string) (*Channel, bool) {
	ch, ok := r.byName[name]
	return ch, ok
}

// FindChannelNames returns every live channel name matching pattern.
func (r *Registry) FindChannelNames(pattern *Pattern) []string {
	var names []string
	for name := range r.byName {
		if pattern.Match(name) {
			names = append(names, name)
		}
	}
	return names
}

// AddMonitor registers observer to receive mon events for channel
// registrations/unregistrations whose name matches pattern, and returns
// the channels that already match at registration time.
func (r *Registry) AddMonitor(pattern *Pattern, observer Peer) []string {
	r.monitors = append(r.monitors, monitorBinding{pattern: pattern, observer: observer})
	return r.FindChannelNames(pattern)
}

// RemoveMonitorsFor drops every monitor binding whose observer is peer,
// called when a monitoring peer itself disconnects.
func (r *Registry) RemoveMonitorsFor(peer Peer) {
	kept := r.monitors[:0]
	for _, m := range r.monitors {
		if m.observer != peer {
			kept = append(kept, m)
		}
	}
	r.monitors = kept
}

// MatchingMonitors returns the observers whose pattern matches name,
// for emitting a mon event on registration/unregistration.
func (r *Registry) MatchingMonitors(name string) []Peer {
	var observers []Peer
	for _, m := range r.monitors {
		if m.pattern.Match(name) {
			observers = append(observers, m.observer)
		}
	}
	return observers
}

// UnregisterBySocket removes the channel owned by peer, if any,
// atomically with respect to any later registry read: deleting a
// channel removes it from all queues and monitor match caches
// atomically before any subsequent dispatch sees the registry,
// trivially true here since everything runs on the single routing
// goroutine. The caller is responsible for cascading the removal into
// task queues and for emitting mon events to MatchingMonitors(name) —
// the registry only reports what to cascade.
func (r *Registry) UnregisterBySocket(peer Peer) (*Channel, bool) {
	ch, ok := r.byPeer[peer]
	if !ok {
		return nil, false
	}
	delete(r.byPeer, peer)
	delete(r.byName, ch.Name)
	r.RemoveMonitorsFor(peer)
	return ch, true
}

// Len returns the number of live channels, for metrics.
func (r *Registry) Len() int {
	return len(r.byName)
}
