package vprog

import (
	"testing"

	"github.com/semgraph/engine/engine"
)

// TestTriangleCount builds a triangle {0,1,2} plus a pendant edge 2-3
// (no third edge, so no second triangle), expecting exactly one triangle
// total.
func TestTriangleCount(t *testing.T) {
	graphPath, indexPath := buildGraph(t, false, [][2]uint32{
		{0, 1}, {1, 0},
		{1, 2}, {2, 1},
		{2, 0}, {0, 2},
		{2, 3}, {3, 2},
	})

	eng, err := engine.Create[TriangleState, TriangleMsg](graphPath, indexPath, TriangleCount{}, testConfig())
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

	result, err := eng.QueryOnAll(engine.SumQuery[TriangleState]{
		Project: func(s *TriangleState) float64 { return float64(s.Count) },
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	total := result.(float64)
	if total != 1 {
		t.Errorf("expected exactly 1 triangle, got %v", total)
	}
}
