package vprog

import (
	"math"
	"testing"

	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

// TestPageRankMassConservation covers spec scenario S4: on a sink-free
// directed cycle (every vertex has out-degree >= 1), Σ PR converges to N.
func TestPageRankMassConservation(t *testing.T) {
	graphPath, indexPath := buildGraph(t, true, [][2]uint32{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{0, 2}, {1, 3},
	})

	idx, err := gidx.Read(graphPath, indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}

	kind := PageRank{Idx: idx, Damping: 0.85, Epsilon: 1e-6}
	eng, err := engine.Create[PageRankState, PageRankMsg](graphPath, indexPath, kind, testConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer eng.Close()

	if err := eng.StartAll(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.WaitForComplete(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	result, err := eng.QueryOnAll(engine.SumQuery[PageRankState]{
		Project: func(s *PageRankState) float64 { return s.PR },
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	total := result.(float64)

	const n = 4.0
	if math.Abs(total-n) > 0.01 {
		t.Errorf("expected sum PR ~= %v on a sink-free graph, got %v", n, total)
	}
}
