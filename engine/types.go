// Package engine implements the semi-external-memory vertex-centric
// execution core: Vertex Store, I/O Dispatcher, Message Bus, Activation
// Frontier, Worker Thread, and Engine Coordinator.
package engine

import (
	"github.com/semgraph/engine/gidx"
)

// VertexId is a dense id, 0..NumVertices-1, shared with the graph index.
type VertexId = gidx.VertexId

// InvalidVertexId marks "no vertex".
const InvalidVertexId = gidx.InvalidVertexId

// WorkerId identifies one worker's partition. Stable for the life of a run.
type WorkerId uint32

// Kind is the vertex-kind descriptor: the generic replacement for the
// inheritance-plus-downcast pattern the engine otherwise would need. An
// engine is instantiated once per (State, Message) pair and owns []State
// directly, never []*State or []interface{} — there is no virtual dispatch
// on the hot path.
type Kind[S any, Msg any] interface {
	// Init sets the zero/seed state for a vertex entering level 0.
	Init(ctx *RunContext[S, Msg], v VertexId, state *S)
	// Run executes the vertex's algorithm step. pv is nil unless this call
	// is the continuation of a SubmitRead the vertex issued earlier, in
	// which case pv is valid only for the duration of this call.
	Run(ctx *RunContext[S, Msg], v VertexId, state *S, pv *gidx.PageVertex)
	// RunOnMessage delivers one inbound message to the vertex, after the
	// level barrier that followed the message's send.
	RunOnMessage(ctx *RunContext[S, Msg], v VertexId, state *S, msg Msg)
}

// VertexScheduler reorders a worker's batch of activation ids in place
// before they are drained, e.g. to prioritize pivot selection for SCC.
type VertexScheduler interface {
	Reorder(batch []VertexId)
}

// wireMessage is the fixed-size-per-instantiation record carried on the bus.
type wireMessage[Msg any] struct {
	Sender   VertexId
	Dest     VertexId
	Activate bool
	Payload  Msg
}

// Query is user code run by QueryOnAll: Run folds one partition into a
// private accumulator R, and Merge combines two accumulators pairwise.
type Query[S any, R any] interface {
	Zero() R
	Run(id VertexId, state *S, acc R) R
	Merge(a, b R) R
}
