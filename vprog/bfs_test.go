package vprog

import (
	"path/filepath"
	"testing"

	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
)

func buildGraph(t *testing.T, directed bool, edges [][2]uint32) (graphPath, indexPath string) {
	t.Helper()
	dir := t.TempDir()
	graphPath = filepath.Join(dir, "graph.bin")
	indexPath = filepath.Join(dir, "index.bin")

	var maxId uint32
	for _, e := range edges {
		if e[0] > maxId {
			maxId = e[0]
		}
		if e[1] > maxId {
			maxId = e[1]
		}
	}

	b := gidx.Builder{NumVertices: maxId + 1, Directed: directed}
	for _, e := range edges {
		b.AddEdge(gidx.VertexId(e[0]), gidx.VertexId(e[1]), nil)
	}
	if _, err := b.Build(graphPath, indexPath); err != nil {
		t.Fatalf("build: %v", err)
	}
	return graphPath, indexPath
}

func testConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.NumWorkers = 2
	return cfg
}

// TestBFSShortestPath covers spec scenario S2: depths must be monotone
// non-decreasing along a shortest-path edge, and unreachable vertices
// stay unvisited.
func TestBFSShortestPath(t *testing.T) {
	// vertex 5 is isolated (self-loop only), unreachable from 0.
	graphPath, indexPath := buildGraph(t, true, [][2]uint32{
		{0, 1}, {1, 2}, {2, 3}, {0, 4}, {4, 3}, {5, 5},
	})

	eng, err := engine.Create[BFSState, BFSMsg](graphPath, indexPath, BFS{}, testConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer eng.Close()

	if err := eng.Start([]engine.VertexId{0}, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.WaitForComplete(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	result, err := eng.QueryOnAll(engine.CollectQuery[BFSState, BFSState]{
		Project: func(_ engine.VertexId, s *BFSState) BFSState { return *s },
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	depths := result.(map[engine.VertexId]BFSState)

	want := map[engine.VertexId]uint32{0: 0, 1: 1, 2: 2, 3: 2, 4: 1}
	for id, d := range want {
		got := depths[id]
		if !got.Visited || got.Depth != d {
			t.Errorf("vertex %d: got visited=%v depth=%d, want depth=%d", id, got.Visited, got.Depth, d)
		}
	}
	if depths[5].Visited {
		t.Errorf("vertex 5 should be unreachable from source 0")
	}
	// 4->3 is a shortest-path edge; depth must not decrease along it.
	if depths[3].Depth < depths[4].Depth {
		t.Errorf("depth not monotone along shortest-path edge 4->3: %d -> %d", depths[4].Depth, depths[3].Depth)
	}
}
