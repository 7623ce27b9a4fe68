package vprog

import (
	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
	"github.com/semgraph/engine/mathutils"
)

// PageRankState holds a vertex's current rank, its accumulated but not
// yet committed incoming mass, and its out-degree (looked up once, since
// the engine never materializes a live adjacency count outside the index).
type PageRankState struct {
	PR       float64
	Residual float64
	OutDeg   uint32
}

// PageRankMsg carries one hop's worth of redistributed rank mass.
type PageRankMsg struct {
	Delta float64
}

// PageRank is damped-sum PageRank over out-edges, grounded on the
// teacher's DAMPINGFACTOR/EPSILON constants and Scratch-accumulate/
// retrieve pattern (cmd/lp-pagerank/pagerank.go), simplified from its
// incremental residual bookkeeping to the engine's bulk-synchronous
// message-aggregation shape: RunOnMessage accumulates, Run commits on
// reactivation and decides whether the change is still worth propagating.
// Sink vertices commit the mass they receive but never redistribute it —
// unlike the teacher's OnFinish pass, so Σ PR only equals N exactly on
// graphs with no sink vertices.
type PageRank struct {
	Idx     *gidx.Index
	Damping float64
	Epsilon float64
}

func (pr PageRank) Init(ctx *engine.RunContext[PageRankState, PageRankMsg], v engine.VertexId, state *PageRankState) {
	outDeg, _ := pr.Idx.NumOutEdges(v)
	state.OutDeg = outDeg
	state.PR = 0.0
	state.Residual = 1 - pr.Damping
}

func (pr PageRank) Run(ctx *engine.RunContext[PageRankState, PageRankMsg], v engine.VertexId, state *PageRankState, pv *gidx.PageVertex) {
	if pv == nil {
		// A residual within Epsilon is held until more mass arrives.
		if mathutils.FloatEquals(state.Residual, 0, pr.Epsilon) {
			return
		}
		if state.OutDeg == 0 {
			state.PR += state.Residual
			state.Residual = 0
			return
		}
		ctx.SubmitRead(v, gidx.Out)
		return
	}

	delta := state.Residual
	state.PR += delta
	state.Residual = 0
	share := pr.Damping * delta / float64(state.OutDeg)
	ctx.Multicast(v, pv, gidx.Out, false, PageRankMsg{Delta: share})
}

func (pr PageRank) RunOnMessage(ctx *engine.RunContext[PageRankState, PageRankMsg], v engine.VertexId, state *PageRankState, msg PageRankMsg) {
	state.Residual += msg.Delta
	ctx.ActivateNext(v)
}
