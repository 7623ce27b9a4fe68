package engine

// SumQuery is a small ready-made Query for the common case of folding a
// per-vertex numeric projection into a running total — used by vprog's
// PageRank test to check the Σ PR ≈ N scenario (spec §8, S4).
type SumQuery[S any] struct {
	Project func(*S) float64
}

func (q SumQuery[S]) Zero() any { return 0.0 }

func (q SumQuery[S]) Run(_ VertexId, state *S, acc any) any {
	return acc.(float64) + q.Project(state)
}

func (q SumQuery[S]) Merge(a, b any) any {
	return a.(float64) + b.(float64)
}

// CollectQuery gathers every vertex's projected value indexed by vertex id,
// used by scenario tests that need the full per-vertex result set (e.g.
// WCC's component-id map, BFS depths).
type CollectQuery[S any, R any] struct {
	Project func(VertexId, *S) R
}

func (q CollectQuery[S, R]) Zero() any { return map[VertexId]R{} }

func (q CollectQuery[S, R]) Run(id VertexId, state *S, acc any) any {
	m := acc.(map[VertexId]R)
	m[id] = q.Project(id, state)
	return m
}

func (q CollectQuery[S, R]) Merge(a, b any) any {
	ma, mb := a.(map[VertexId]R), b.(map[VertexId]R)
	for k, v := range mb {
		ma[k] = v
	}
	return ma
}
