package vprog

import (
	"testing"

	"github.com/semgraph/engine/engine"
)

// TestWCCComponents covers spec scenario S1: {0,1,2} form one component
// via the directed cycle 0->1->2->0, undirected 3 is alone.
func TestWCCComponents(t *testing.T) {
	graphPath, indexPath := buildGraph(t, true, [][2]uint32{
		{0, 1}, {1, 2}, {2, 0}, {3, 3},
	})

	eng, err := engine.Create[WCCState, WCCMsg](graphPath, indexPath, WCC{}, testConfig())
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

	result, err := eng.QueryOnAll(engine.CollectQuery[WCCState, engine.VertexId]{
		Project: func(_ engine.VertexId, s *WCCState) engine.VertexId { return s.Label },
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	labels := result.(map[engine.VertexId]engine.VertexId)

	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Errorf("0,1,2 should share a component, got %v %v %v", labels[0], labels[1], labels[2])
	}
	if labels[3] == labels[0] {
		t.Errorf("3 should be its own component, got label %v shared with 0", labels[3])
	}
}
