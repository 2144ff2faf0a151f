package broker

import (
	"sync/atomic"

	"github.com/c360/msgbroker/wire"
)

// ChannelLookup resolves a channel name to its live Peer. TaskQueue
// holds only names, non-owning references, so every dispatch attempt
// re-resolves through this indirection and tolerates a channel that
// has since vanished.
type ChannelLookup func(channelName string) (Peer, bool)

// nextItemID hands out broker-assigned ids for push items. The wire
// format carries these as a plain uint64 (not an opaque string), so a
// monotonic counter is the natural fit; google/uuid is reserved for
// channel-name generation in registry.go, where the id is a wire
// string rather than a numeric field.
var nextItemID uint64

func newItemID() uint64 {
	return atomic.AddUint64(&nextItemID, 1)
}

// pendingItem is a push item dispatched to a worker but not yet acked.
type pendingItem struct {
	id     uint64
	item   wire.Item
	source string // channel name that produced the item, forwarded on redelivery
	worker string // channel name the item was last sent to
}

// taskQueue holds the undelivered and in-flight push items and the pull
// and sub members for one topic. Pull and sub members are served
// differently (round-robin+ack vs. fan-out).
type taskQueue struct {
	topic string

	pending []pendingItem       // waiting for a worker
	inFlight map[uint64]pendingItem // dispatched, awaiting ack

	pullWorkers []string // channel names registered via addPullListener, round-robin order
	rrCursor    int

	subWorkers []string // channel names registered via addSubscribeListener
}

func newTaskQueue(topic string) *taskQueue {
	return &taskQueue{
		topic:    topic,
		inFlight: make(map[uint64]pendingItem),
	}
}

// TaskQueues owns one taskQueue per (topic) for push/pull traffic, and
// the set of subscriber channel names per (topic) for pub/sub traffic.
// Like Registry, it is only ever touched from the single routing
// goroutine and carries no lock.
type TaskQueues struct {
	lookup ChannelLookup
	queues map[string]*taskQueue
}

// NewTaskQueues creates an empty set of task queues. lookup resolves a
// pull/sub worker's channel name to its live Peer at dispatch time.
func NewTaskQueues(lookup ChannelLookup) *TaskQueues {
	return &TaskQueues{
		lookup: lookup,
		queues: make(map[string]*taskQueue),
	}
}

func (q *TaskQueues) queueFor(topic string) *taskQueue {
	tq, ok := q.queues[topic]
	if !ok {
		tq = newTaskQueue(topic)
		q.queues[topic] = tq
	}
	return tq
}

// AddPullWorker registers workerName as a round-robin recipient for
// topic. Registering the same name twice is a no-op.
func (q *TaskQueues) AddPullWorker(topic, workerName string) {
	tq := q.queueFor(topic)
	for _, w := range tq.pullWorkers {
		if w == workerName {
			return
		}
	}
	tq.pullWorkers = append(tq.pullWorkers, workerName)
}

// AddSubWorker registers workerName as a fan-out recipient for topic.
func (q *TaskQueues) AddSubWorker(topic, workerName string) {
	tq := q.queueFor(topic)
	for _, w := range tq.subWorkers {
		if w == workerName {
			return
		}
	}
	tq.subWorkers = append(tq.subWorkers, workerName)
}

// dispatchResult reports, for each recipient a Push call attempted
// delivery to, whether the write was handed off and the channel name
// written to (used by the router to build mon/metrics events).
type dispatchResult struct {
	delivered []string
	queued    bool // true if the item was buffered because no worker was available
}

// Push enqueues payload, from source, as a single-item push for topic.
// Pull topics attempt immediate round-robin delivery to one live
// worker, falling back to the pending queue if none is available.
// push/pull is exactly-once work distribution.
func (q *TaskQueues) Push(topic, source string, payload wire.Payload) dispatchResult {
	tq := q.queueFor(topic)
	id := newItemID()
	pi := pendingItem{id: id, item: wire.Item{Payload: payload}, source: source}
	return q.tryDispatch(tq, pi)
}

// tryDispatch attempts round-robin delivery of pi to a live pull
// worker. If none is currently reachable, pi is appended to tq.pending,
// which only RetryPending flushes (Ack and later Pushes do not).
func (q *TaskQueues) tryDispatch(tq *taskQueue, pi pendingItem) dispatchResult {
	n := len(tq.pullWorkers)
	for attempts := 0; attempts < n; attempts++ {
		idx := tq.rrCursor % n
		tq.rrCursor = (tq.rrCursor + 1) % n
		worker := tq.pullWorkers[idx]
		peer, ok := q.lookup(worker)
		if !ok {
			continue
		}
		msg := wire.NewPush(pi.id, tq.topic, pi.source, worker, []wire.Item{pi.item})
		frame, err := wire.Encode(msg)
		if err != nil {
			continue
		}
		pi.worker = worker
		tq.inFlight[pi.id] = pi
		peer.Send(frame)
		return dispatchResult{delivered: []string{worker}}
	}
	tq.pending = append(tq.pending, pi)
	return dispatchResult{queued: true}
}

// Publish fans payload out to every live sub worker for topic, with no
// ack tracking and no redelivery. A write failure on one subscriber
// closes that peer (handled by the connection layer) but never blocks
// or skips delivery to the rest.
func (q *TaskQueues) Publish(topic, source string, payload wire.Payload) []string {
	tq := q.queueFor(topic)
	var delivered []string
	for _, worker := range tq.subWorkers {
		peer, ok := q.lookup(worker)
		if !ok {
			continue
		}
		msg := wire.NewPub(newItemID(), tq.topic, source, worker, payload)
		frame, err := wire.Encode(msg)
		if err != nil {
			continue
		}
		peer.Send(frame)
		delivered = append(delivered, worker)
	}
	return delivered
}

// Ack marks item id on topic as acknowledged, removing it from
// in-flight tracking permanently: once acked, an item is never
// redelivered. Acking an unknown id is a silent no-op; there is no
// error path defined for a stale or duplicate ack.
func (q *TaskQueues) Ack(topic string, id uint64) {
	tq, ok := q.queues[topic]
	if !ok {
		return
	}
	delete(tq.inFlight, id)
}

// RemoveWorker drops workerName from every queue's pull and sub worker
// lists, and redelivers any items that were in flight to it, reusing
// the same item id so ack correlation survives redelivery. Called when
// a peer disconnects.
func (q *TaskQueues) RemoveWorker(workerName string) {
	for _, tq := range q.queues {
		tq.pullWorkers = removeString(tq.pullWorkers, workerName)
		tq.subWorkers = removeString(tq.subWorkers, workerName)
		if tq.rrCursor >= len(tq.pullWorkers) && len(tq.pullWorkers) > 0 {
			tq.rrCursor = 0
		}

		var stranded []pendingItem
		for id, pi := range tq.inFlight {
			if pi.worker == workerName {
				stranded = append(stranded, pi)
				delete(tq.inFlight, id)
			}
		}
		for _, pi := range stranded {
			q.tryDispatch(tq, pi)
		}
	}
}

// RetryPending attempts to flush topic's buffered items to newly
// available pull workers, called right after addPullListener adds a
// worker; it is the only path that delivers a queued item.
func (q *TaskQueues) RetryPending(topic string) {
	tq, ok := q.queues[topic]
	if !ok || len(tq.pullWorkers) == 0 {
		return
	}
	pending := tq.pending
	tq.pending = nil
	for _, pi := range pending {
		q.tryDispatch(tq, pi)
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
