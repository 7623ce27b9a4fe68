package vprog

import (
	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
	"github.com/semgraph/engine/utils"
)

// SCCState tracks reachability scratch for the current forward/backward
// phase plus the final component assignment once resolved.
type SCCState struct {
	SCCID    engine.VertexId
	reach    bool
	explored bool
}

// SCCMsg is a bare reachability token; arrival is the only signal that
// matters.
type SCCMsg struct{}

type sccMode uint8

const (
	sccForward sccMode = iota
	sccBackward
)

// SCCProgram is the per-run scratch state read through engine.Program,
// switching the shared Kind between a forward (out-edge) and backward
// (in-edge) reachability scan without needing two Kind implementations.
type SCCProgram struct {
	Mode  sccMode
	Pivot engine.VertexId
}

// SCC is the forward/backward (FW-BW) decomposition: repeatedly pick a
// pivot, compute the vertices reachable from it and the vertices that can
// reach it, and the intersection (plus the pivot) is one strongly
// connected component.
type SCC struct{}

func (SCC) Init(ctx *engine.RunContext[SCCState, SCCMsg], v engine.VertexId, state *SCCState) {
	state.SCCID = engine.InvalidVertexId
}

func (SCC) Run(ctx *engine.RunContext[SCCState, SCCMsg], v engine.VertexId, state *SCCState, pv *gidx.PageVertex) {
	if !state.reach {
		return
	}
	prog := engine.Program[SCCProgram](ctx)
	kind := gidx.Out
	if prog.Mode == sccBackward {
		kind = gidx.In
	}

	if pv == nil {
		if state.explored {
			return
		}
		state.explored = true
		ctx.SubmitRead(v, kind)
		return
	}
	ctx.Multicast(v, pv, kind, true, SCCMsg{})
}

func (SCC) RunOnMessage(ctx *engine.RunContext[SCCState, SCCMsg], v engine.VertexId, state *SCCState, _ SCCMsg) {
	state.reach = true
}

// pqVertex orders ascending, for utils.PQ's pivot-selection heap —
// grounded on the teacher's own utils/priority-queue.go PQI[T]/PQ[T].
type pqVertex engine.VertexId

func (a pqVertex) Less(b pqVertex) bool { return a < b }

// ComputeSCC drives eng through repeated forward/backward reachability
// phases until every vertex has been assigned a component, returning each
// vertex's representative (its pivot's id).
func ComputeSCC(eng *engine.Engine[SCCState, SCCMsg], numVertices uint32) (map[engine.VertexId]engine.VertexId, error) {
	if err := eng.StartAll(nil); err != nil {
		return nil, err
	}
	if err := eng.WaitForComplete(); err != nil {
		return nil, err
	}

	active := make([]bool, numVertices)
	for i := range active {
		active[i] = true
	}

	pq := make(utils.PQ[pqVertex], 0, numVertices)
	for v := uint32(0); v < numVertices; v++ {
		pq = append(pq, pqVertex(v))
	}
	pq.Init()

	sccOf := make(map[engine.VertexId]engine.VertexId, numVertices)
	remaining := int(numVertices)

	for remaining > 0 {
		var pivot engine.VertexId
		found := false
		for len(pq) > 0 {
			cand := engine.VertexId(pq.Pop())
			if active[uint32(cand)] {
				pivot = cand
				found = true
				break
			}
		}
		if !found {
			break
		}

		fwd, err := runReachabilityPhase(eng, active, pivot, sccForward)
		if err != nil {
			return nil, err
		}
		bwd, err := runReachabilityPhase(eng, active, pivot, sccBackward)
		if err != nil {
			return nil, err
		}

		for id, isFwd := range fwd {
			if !isFwd || !bwd[id] {
				continue
			}
			sccOf[id] = pivot
			active[uint32(id)] = false
			remaining--
		}
	}
	return sccOf, nil
}

func runReachabilityPhase(eng *engine.Engine[SCCState, SCCMsg], active []bool, pivot engine.VertexId, mode sccMode) (map[engine.VertexId]bool, error) {
	filter := func(v engine.VertexId, state *SCCState) bool {
		if !active[uint32(v)] {
			return false
		}
		state.explored = false
		state.reach = v == pivot
		return v == pivot
	}
	programCreator := func(engine.WorkerId) any { return &SCCProgram{Mode: mode, Pivot: pivot} }
	if err := eng.StartFilter(filter, programCreator); err != nil {
		return nil, err
	}
	if err := eng.WaitForComplete(); err != nil {
		return nil, err
	}
	result, err := eng.QueryOnAll(engine.CollectQuery[SCCState, bool]{
		Project: func(id engine.VertexId, s *SCCState) bool { return active[uint32(id)] && s.reach },
	})
	if err != nil {
		return nil, err
	}
	return result.(map[engine.VertexId]bool), nil
}
