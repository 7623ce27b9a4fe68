// Package vprog holds algorithms written against the engine's vertex-kind
// API: BFS, weakly-connected components, strongly-connected components,
// k-core, triangle counting, and PageRank. These exist to exercise and
// test the engine; none of them are part of its hot path.
package vprog

import (
	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

// BFSState is a vertex's shortest-hop-count state. The zero value means
// "unvisited" — no sentinel depth is needed.
type BFSState struct {
	Visited bool
	Depth   uint32
}

// BFSMsg carries the hop count a sender is offering to a neighbor.
type BFSMsg struct {
	Depth uint32
}

// BFS is a single-source breadth-first search over out-edges.
type BFS struct{}

func (BFS) Init(ctx *engine.RunContext[BFSState, BFSMsg], v engine.VertexId, state *BFSState) {
	state.Visited = true
	state.Depth = 0
}

func (BFS) Run(ctx *engine.RunContext[BFSState, BFSMsg], v engine.VertexId, state *BFSState, pv *gidx.PageVertex) {
	if pv == nil {
		ctx.SubmitRead(v, gidx.Out)
		return
	}
	ctx.Multicast(v, pv, gidx.Out, false, BFSMsg{Depth: state.Depth + 1})
}

func (BFS) RunOnMessage(ctx *engine.RunContext[BFSState, BFSMsg], v engine.VertexId, state *BFSState, msg BFSMsg) {
	if state.Visited && msg.Depth >= state.Depth {
		return
	}
	state.Visited = true
	state.Depth = msg.Depth
	ctx.SubmitRead(v, gidx.Out)
}
