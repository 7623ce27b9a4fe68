package vprog

import (
	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

// WCCState holds a vertex's current component label: the smallest vertex
// id known to be reachable from it over undirected edges (HashMin label
// propagation).
type WCCState struct {
	Label engine.VertexId
}

// WCCMsg carries a candidate label.
type WCCMsg struct {
	Label engine.VertexId
}

// WCC computes weakly-connected components: directed edges are treated as
// undirected (gidx.Both), matching the teacher's CC algorithm's own-id
// seeding and AtomicMin-style improvement check.
type WCC struct{}

func (WCC) Init(ctx *engine.RunContext[WCCState, WCCMsg], v engine.VertexId, state *WCCState) {
	state.Label = v
}

func (WCC) Run(ctx *engine.RunContext[WCCState, WCCMsg], v engine.VertexId, state *WCCState, pv *gidx.PageVertex) {
	if pv == nil {
		ctx.SubmitRead(v, gidx.Both)
		return
	}
	ctx.Multicast(v, pv, gidx.Both, false, WCCMsg{Label: state.Label})
}

func (WCC) RunOnMessage(ctx *engine.RunContext[WCCState, WCCMsg], v engine.VertexId, state *WCCState, msg WCCMsg) {
	if msg.Label >= state.Label {
		return
	}
	state.Label = msg.Label
	ctx.SubmitRead(v, gidx.Both)
}
