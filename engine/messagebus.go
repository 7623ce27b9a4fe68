package engine

import (
	"github.com/semgraph/engine/gidx"
	"github.com/semgraph/engine/utils"
)

// MessageBus is the N×N grid of SPSC inboxes described in spec §4.4,
// adapted directly from utils.RingBuffSPSC: same Offer/Accept contract,
// same cache-line padding discipline, retyped to carry wireMessage[Msg]
// instead of the teacher's Notification[N]. Per-worker outbox segments
// batch sends to the same destination and are flushed at the barrier.
type MessageBus[Msg any] struct {
	numWorkers uint32
	// inbox[dst][src] is the channel src writes into and dst drains.
	inbox [][]utils.RingBuffSPSC[wireMessage[Msg]]
	// outbox[src][dst] accumulates sends made by worker src this level,
	// flushed into inbox[dst][src] at the barrier.
	outbox [][][]wireMessage[Msg]
}

// NewMessageBus sizes each inbox to hold messageBufferBytes worth of slots.
func NewMessageBus[Msg any](numWorkers uint32, messageBufferBytes uint32) *MessageBus[Msg] {
	var zero wireMessage[Msg]
	slotSize := uint64(max(1, sizeofApprox(zero)))
	slots := uint64(messageBufferBytes) / slotSize
	if slots < 16 {
		slots = 16
	}

	bus := &MessageBus[Msg]{numWorkers: numWorkers}
	bus.inbox = make([][]utils.RingBuffSPSC[wireMessage[Msg]], numWorkers)
	bus.outbox = make([][][]wireMessage[Msg], numWorkers)
	for dst := uint32(0); dst < numWorkers; dst++ {
		bus.inbox[dst] = make([]utils.RingBuffSPSC[wireMessage[Msg]], numWorkers)
		for src := uint32(0); src < numWorkers; src++ {
			bus.inbox[dst][src].Init(slots)
		}
	}
	for src := uint32(0); src < numWorkers; src++ {
		bus.outbox[src] = make([][]wireMessage[Msg], numWorkers)
	}
	return bus
}

// sizeofApprox is a rough per-slot byte-budget estimate; precise sizing
// isn't required since the ring buffer rounds to a power of two anyway.
func sizeofApprox[T any](_ T) int { return 64 }

// Send appends msg to src's outbox segment for dest's owning worker. Fast
// path: no allocation once the segment's backing array has grown to steady
// state (spec §4.4).
func (bus *MessageBus[Msg]) Send(src WorkerId, dest VertexId, destWorker WorkerId, sender VertexId, activate bool, payload Msg) {
	bus.outbox[src][destWorker] = append(bus.outbox[src][destWorker], wireMessage[Msg]{
		Sender: sender, Dest: dest, Activate: activate, Payload: payload,
	})
}

// MulticastEdges sends payload to every neighbor reachable from pv in a
// single scan, partitioning by destination worker without materializing a
// []VertexId (spec §4.4, §9 design note on borrowed iterators).
func MulticastEdges[Msg any](bus *MessageBus[Msg], src WorkerId, sender VertexId, ownerOf func(VertexId) WorkerId, pv *gidx.PageVertex, kind gidx.EdgeKind, activate bool, payload Msg) {
	it := pv.Edges(kind)
	for it.Next() {
		dst := it.Target()
		bus.Send(src, dst, ownerOf(dst), sender, activate, payload)
	}
}

// FlushOutbox drains every outbox segment worker `src` has accumulated this
// level into the matching destination inboxes. Called during barrier phase
// 2 (spec §4.7); must run before the destination workers start draining.
func (bus *MessageBus[Msg]) FlushOutbox(src WorkerId) {
	for dst := uint32(0); dst < bus.numWorkers; dst++ {
		seg := bus.outbox[src][dst]
		if len(seg) == 0 {
			continue
		}
		rb := &bus.inbox[dst][src]
		for _, m := range seg {
			for fails := 0; !rb.Offer(m); fails++ {
				// No one drains an inbox mid-flush (the barrier runs
				// before any worker starts its next level), so a segment
				// larger than the inbox capacity must wait here. Size
				// MessageBufferBytes for the algorithm's worst-case
				// per-level fan-in to avoid this becoming a long spin.
				utils.BackOff(fails)
			}
		}
		bus.outbox[src][dst] = seg[:0]
	}
}

// DrainInbox removes every pending message addressed to worker `dst`, in
// no particular cross-source order (spec §4.4: unordered within a level).
func (bus *MessageBus[Msg]) DrainInbox(dst WorkerId, visit func(wireMessage[Msg])) {
	for src := uint32(0); src < bus.numWorkers; src++ {
		rb := &bus.inbox[dst][src]
		for {
			m, ok := rb.Accept()
			if !ok {
				break
			}
			visit(m)
		}
	}
}

// AnyInboxNonEmpty reports whether dst has any undelivered message, used by
// the worker loop's termination check (spec §4.6).
func (bus *MessageBus[Msg]) AnyInboxNonEmpty(dst WorkerId) bool {
	for src := uint32(0); src < bus.numWorkers; src++ {
		if bus.inbox[dst][src].DeqCheckRange() > 0 {
			return true
		}
	}
	return false
}
