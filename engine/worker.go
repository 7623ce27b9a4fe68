package engine

import (
	"runtime"

	"github.com/semgraph/engine/gidx"
)

// RunContext is the explicit context parameter threaded into every vertex
// callback, replacing the raw back-pointer from vertex to engine that the
// original source used (spec §9 design note on cyclic references).
type RunContext[S any, Msg any] struct {
	worker  *worker[S, Msg]
	program any // the worker's per-run VertexProgram, type-erased; see Program().
}

// SubmitRead queues an asynchronous read of v's adjacency data; the
// continuation is another call to Kind.Run carrying the resulting
// PageVertex, later in this same worker (spec §5: "no suspension points").
// The read isn't issued immediately: it joins this level's read batch,
// flushed in one shot by flushReadBatch once the whole batch has run, so
// that requests from nearby vertices can be coalesced into fewer physical
// reads (spec §4.3).
func (ctx *RunContext[S, Msg]) SubmitRead(v VertexId, kind gidx.EdgeKind) {
	w := ctx.worker
	w.readBatch = append(w.readBatch, pendingSubmit{vertex: v, kind: kind, cb: func(pv *gidx.PageVertex) {
		w.runVertex(v, pv)
	}})
}

// Send delivers msg to dst, routed to dst's owning worker's inbox and
// delivered only after the next barrier (spec §4.4).
func (ctx *RunContext[S, Msg]) Send(sender, dst VertexId, activate bool, msg Msg) {
	w := ctx.worker
	destWorker := w.store.OwnerWorker(dst)
	w.bus.Send(w.id, dst, destWorker, sender, activate, msg)
}

// Multicast sends msg to every neighbor of pv reachable under kind, in one
// scan over the borrowed PageVertex iterator — never materializing a
// []VertexId (spec §4.4, §9 design note).
func (ctx *RunContext[S, Msg]) Multicast(sender VertexId, pv *gidx.PageVertex, kind gidx.EdgeKind, activate bool, msg Msg) {
	w := ctx.worker
	MulticastEdges(w.bus, w.id, sender, w.store.OwnerWorker, pv, kind, activate, msg)
}

// ActivateNext marks v active for the next level. v must be owned by this
// worker; cross-worker activation goes through Send's activate flag.
func (ctx *RunContext[S, Msg]) ActivateNext(v VertexId) {
	w := ctx.worker
	w.frontier.ActivateNext(uint32(v) - uint32(w.lo))
}

// Program returns the worker's per-run VertexProgram, type-asserted to P.
// Kept outside the Kind interface so Kind[S,Msg] doesn't need a third type
// parameter purely for algorithm scratch state.
func Program[P any, S any, Msg any](ctx *RunContext[S, Msg]) *P {
	return ctx.program.(*P)
}

// worker is one partition's execution loop (C6, spec §4.6).
type worker[S any, Msg any] struct {
	id         WorkerId
	lo, hi     VertexId
	store      *VertexStore[S]
	frontier   *Frontier
	bus        *MessageBus[Msg]
	dispatcher *IODispatcher
	kind       Kind[S, Msg]
	scheduler  VertexScheduler
	batchSize  uint32
	program    any

	readBatch []pendingSubmit

	eng *engineCore
}

func (w *worker[S, Msg]) ctx() *RunContext[S, Msg] {
	return &RunContext[S, Msg]{worker: w, program: w.program}
}

func (w *worker[S, Msg]) runVertex(v VertexId, pv *gidx.PageVertex) {
	state := w.store.Get(v)
	w.kind.Run(w.ctx(), v, state, pv)
}

// flushReadBatch groups this level's accumulated SubmitRead calls by kind
// and hands each group to the dispatcher in one SubmitBatch call, so that
// gidx.BlockRowOffsets can resolve the whole group's extents together and
// coalesce the ones that land close together on disk (spec §4.3).
func (w *worker[S, Msg]) flushReadBatch() {
	if len(w.readBatch) == 0 {
		return
	}
	byKind := make(map[gidx.EdgeKind][]pendingSubmit, 3)
	for _, r := range w.readBatch {
		byKind[r.kind] = append(byKind[r.kind], r)
	}
	w.readBatch = w.readBatch[:0]

	for kind, reqs := range byKind {
		ids := make([]VertexId, len(reqs))
		cbs := make(map[VertexId]ioCompletionCallback, len(reqs))
		for i, r := range reqs {
			ids[i] = r.vertex
			cbs[r.vertex] = r.cb
		}
		w.dispatcher.SubmitBatch(ids, kind, func(v VertexId, pv *gidx.PageVertex) {
			cbs[v](pv)
		})
	}
}

// runLevel executes this worker's share of one bulk-synchronous level: it
// is the spec §4.6 pseudocode loop, returning once this worker reaches
// local quiescence (no unprocessed activation, no in-flight I/O, no
// pending inbound message).
func (w *worker[S, Msg]) runLevel() {
	for {
		if w.eng.cancelled.Load() {
			return
		}

		batch := w.frontier.Drain(int(w.batchSize))
		if w.scheduler != nil && len(batch) > 1 {
			ids := make([]VertexId, len(batch))
			for i, localId := range batch {
				ids[i] = w.lo + VertexId(localId)
			}
			w.scheduler.Reorder(ids)
			for i, id := range ids {
				batch[i] = uint32(id) - uint32(w.lo)
			}
		}
		for _, localId := range batch {
			v := w.lo + VertexId(localId)
			state := w.store.Get(v)
			w.kind.Run(w.ctx(), v, state, nil)
		}
		w.flushReadBatch()

		w.dispatcher.DrainQueued()
		w.dispatcher.Poll(256, w.eng.reportError)

		w.bus.DrainInbox(w.id, func(m wireMessage[Msg]) {
			state := w.store.Get(m.Dest)
			w.kind.RunOnMessage(w.ctx(), m.Dest, state, m.Payload)
			if m.Activate {
				w.frontier.ActivateNext(uint32(m.Dest) - uint32(w.lo))
			}
		})
		// Poll's completion callbacks and RunOnMessage above can themselves
		// call SubmitRead (e.g. BFS re-requesting a vertex's out-edges once
		// a message lands); flush those before checking quiescence, or
		// they'd sit unsubmitted in w.readBatch while every dispatcher/bus
		// counter the check below looks at reads empty.
		w.flushReadBatch()

		if w.eng.errSlotSet() {
			return
		}

		if w.frontier.IsCurrentEmpty() && w.dispatcher.InFlight() == 0 && w.dispatcher.QueuedLen() == 0 && !w.bus.AnyInboxNonEmpty(w.id) {
			return
		}
	}
}

// pinIfRequested is the flash-graph-derived NUMA affinity hint: best-effort
// runtime.LockOSThread since no pack dependency provides real NUMA pinning.
func pinIfRequested(preferred []int) {
	if len(preferred) > 0 {
		runtime.LockOSThread()
	}
}
