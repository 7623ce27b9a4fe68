package vprog

import (
	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

// KCoreState tracks a vertex's remaining degree and whether it has been
// peeled out of the core.
type KCoreState struct {
	Degree  uint32
	Deleted bool
}

// KCoreMsg carries a degree-decrement notification; the sender's identity
// doesn't matter, only that one of the receiver's neighbors was deleted.
type KCoreMsg struct{}

// KCore peels vertices with degree below K, cascading the decrement to
// their neighbors, until no vertex below the threshold remains — ported
// from flash-graph's apps/k-core/k_core.cpp deletion/cascade loop, with
// the cascade expressed as Send rather than direct cross-vertex degree
// mutation (each vertex only ever writes its own state).
type KCore struct {
	Idx *gidx.Index
	K   uint32
}

func (k KCore) Init(ctx *engine.RunContext[KCoreState, KCoreMsg], v engine.VertexId, state *KCoreState) {
	inDeg, _ := k.Idx.NumInEdges(v)
	outDeg, _ := k.Idx.NumOutEdges(v)
	state.Degree = inDeg + outDeg
	state.Deleted = false
}

func (k KCore) Run(ctx *engine.RunContext[KCoreState, KCoreMsg], v engine.VertexId, state *KCoreState, pv *gidx.PageVertex) {
	if state.Deleted {
		return
	}
	if pv == nil {
		if state.Degree > k.K {
			return
		}
		ctx.SubmitRead(v, gidx.Both)
		return
	}
	if state.Degree < k.K {
		state.Deleted = true
		ctx.Multicast(v, pv, gidx.Both, true, KCoreMsg{})
	}
}

func (k KCore) RunOnMessage(ctx *engine.RunContext[KCoreState, KCoreMsg], v engine.VertexId, state *KCoreState, _ KCoreMsg) {
	if state.Deleted {
		return
	}
	state.Degree--
}
