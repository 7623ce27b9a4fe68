package vprog

import (
	"testing"

	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

// TestKCorePeeling builds a triangle {0,1,2} (2-core) with a pendant 3
// attached only to 0 (degree 1, below K=2) that must cascade-peel, while
// the triangle survives.
func TestKCorePeeling(t *testing.T) {
	graphPath, indexPath := buildGraph(t, false, [][2]uint32{
		{0, 1}, {1, 0},
		{1, 2}, {2, 1},
		{2, 0}, {0, 2},
		{0, 3}, {3, 0},
	})

	idx, err := gidx.Read(graphPath, indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}

	kind := KCore{Idx: idx, K: 2}
	eng, err := engine.Create[KCoreState, KCoreMsg](graphPath, indexPath, kind, testConfig())
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

	result, err := eng.QueryOnAll(engine.CollectQuery[KCoreState, bool]{
		Project: func(_ engine.VertexId, s *KCoreState) bool { return s.Deleted },
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	deleted := result.(map[engine.VertexId]bool)

	if deleted[0] || deleted[1] || deleted[2] {
		t.Errorf("triangle vertices should survive the 2-core: %v", deleted)
	}
	if !deleted[3] {
		t.Errorf("pendant vertex 3 (degree 1) should be peeled out of the 2-core")
	}
}
