package vprog

import (
	"testing"

	"github.com/semgraph/engine/engine"
)

// TestComputeSCC builds two cycles, {0,1,2} and {3,4}, joined by a single
// one-way bridge 2->3 that must not merge the components.
func TestComputeSCC(t *testing.T) {
	graphPath, indexPath := buildGraph(t, true, [][2]uint32{
		{0, 1}, {1, 2}, {2, 0},
		{3, 4}, {4, 3},
		{2, 3},
	})

	eng, err := engine.Create[SCCState, SCCMsg](graphPath, indexPath, SCC{}, testConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer eng.Close()

	sccOf, err := ComputeSCC(eng, 5)
	if err != nil {
		t.Fatalf("compute scc: %v", err)
	}

	if len(sccOf) != 5 {
		t.Fatalf("expected every vertex assigned a component, got %d", len(sccOf))
	}
	if sccOf[0] != sccOf[1] || sccOf[1] != sccOf[2] {
		t.Errorf("0,1,2 should share a component, got %v %v %v", sccOf[0], sccOf[1], sccOf[2])
	}
	if sccOf[3] != sccOf[4] {
		t.Errorf("3,4 should share a component, got %v %v", sccOf[3], sccOf[4])
	}
	if sccOf[0] == sccOf[3] {
		t.Errorf("the two cycles should not merge into one component")
	}
}
