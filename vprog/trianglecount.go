package vprog

import (
	"sort"

	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

// TriangleState holds a vertex's "later" neighbor set (distinct neighbors
// with a strictly greater id, under gidx.Both treated as undirected) and
// its running triangle count.
type TriangleState struct {
	Later    []engine.VertexId
	computed bool
	Count    uint64
}

// TriangleMsg carries a smaller neighbor's later-set to a larger one.
type TriangleMsg struct {
	Later []engine.VertexId
}

// TriangleCount implements Suri & Vassilvitskii's forward algorithm: each
// vertex v sends its later-set (neighbors > v) to every member of that
// set; a receiving vertex u (u > v by construction) intersects the
// incoming later-set with its own, counting one triangle per id w shared
// by both — since v < u < w and all three pairwise edges exist, each
// triangle is counted exactly once, at its middle vertex.
type TriangleCount struct{}

func (TriangleCount) Init(ctx *engine.RunContext[TriangleState, TriangleMsg], v engine.VertexId, state *TriangleState) {
}

func (TriangleCount) Run(ctx *engine.RunContext[TriangleState, TriangleMsg], v engine.VertexId, state *TriangleState, pv *gidx.PageVertex) {
	if pv == nil {
		if state.computed {
			return
		}
		ctx.SubmitRead(v, gidx.Both)
		return
	}

	seen := make(map[engine.VertexId]bool)
	it := pv.Edges(gidx.Both)
	for it.Next() {
		w := it.Target()
		if w == v || seen[w] || w <= v {
			continue
		}
		seen[w] = true
		state.Later = append(state.Later, w)
	}
	sort.Slice(state.Later, func(i, j int) bool { return state.Later[i] < state.Later[j] })
	state.computed = true

	for _, w := range state.Later {
		ctx.Send(v, w, false, TriangleMsg{Later: state.Later})
	}
}

func (TriangleCount) RunOnMessage(ctx *engine.RunContext[TriangleState, TriangleMsg], v engine.VertexId, state *TriangleState, msg TriangleMsg) {
	i, j := 0, 0
	for i < len(msg.Later) && j < len(state.Later) {
		switch {
		case msg.Later[i] == state.Later[j]:
			state.Count++
			i++
			j++
		case msg.Later[i] < state.Later[j]:
			i++
		default:
			j++
		}
	}
}
