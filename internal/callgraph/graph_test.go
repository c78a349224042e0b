package callgraph

import (
	"testing"

	"drift/internal/cancel"
)

// buildChain wires a → b → c → d and returns the graph plus ids.
func buildChain(t *testing.T) (*Graph, []int64) {
	t.Helper()
	g := New(0)
	var ids []int64
	for _, name := range []string{"a", "b", "c", "d"} {
		id := g.AddFunction(Node{
			File:          name + ".ts",
			Name:          name,
			QualifiedName: name,
			StartLine:     1,
			EndLine:       10,
		})
		ids = append(ids, id)
	}
	for i := 0; i < 3; i++ {
		g.AddEdge(Edge{From: ids[i], To: ids[i+1], Strategy: "same_file", Confidence: 0.95})
	}
	return g, ids
}

func TestForwardBFS(t *testing.T) {
	g, ids := buildChain(t)
	tok := &cancel.Token{}

	res := g.BFS([]int64{ids[0]}, Forward, 20, tok)
	if len(res.Reached) != 4 {
		t.Fatalf("reached %d nodes, want 4", len(res.Reached))
	}
	for i, id := range ids {
		if res.Reached[id] != i {
			t.Errorf("node %d at depth %d, want %d", id, res.Reached[id], i)
		}
	}
	if res.Saturated {
		t.Error("unsaturated walk reported saturated")
	}
}

func TestInverseBFS(t *testing.T) {
	g, ids := buildChain(t)
	tok := &cancel.Token{}

	res := g.BFS([]int64{ids[3]}, Inverse, 20, tok)
	if len(res.Reached) != 4 {
		t.Fatalf("reached %d nodes, want 4", len(res.Reached))
	}
	if res.Reached[ids[0]] != 3 {
		t.Errorf("root-most caller at depth %d, want 3", res.Reached[ids[0]])
	}
}

func TestBFSDepthCapSaturates(t *testing.T) {
	g, ids := buildChain(t)
	tok := &cancel.Token{}

	res := g.BFS([]int64{ids[0]}, Forward, 2, tok)
	if len(res.Reached) != 3 {
		t.Errorf("reached %d nodes at depth 2, want 3", len(res.Reached))
	}
	if !res.Saturated {
		t.Error("capped walk must report saturation")
	}
}

func TestFindPath(t *testing.T) {
	g, ids := buildChain(t)
	tok := &cancel.Token{}

	path := g.FindPath(ids[0], ids[3], 20, tok)
	if len(path) != 4 {
		t.Fatalf("path length %d, want 4", len(path))
	}
	for i, id := range ids {
		if path[i] != id {
			t.Errorf("path[%d] = %d, want %d", i, path[i], id)
		}
	}

	if got := g.FindPath(ids[3], ids[0], 20, tok); got != nil {
		t.Error("reverse path should not exist in a forward chain")
	}
}

func TestRemoveFileMarksInboundStale(t *testing.T) {
	g, ids := buildChain(t)

	g.RemoveFile("c.ts")

	if _, ok := g.NodeByID(ids[2]); ok {
		t.Fatal("removed node still present")
	}
	// b's edge to the removed c survives with a zero callee and the
	// stale strategy.
	edges := g.OutEdges(ids[1])
	if len(edges) != 1 {
		t.Fatalf("b has %d out edges, want 1", len(edges))
	}
	if edges[0].To != 0 || edges[0].Strategy != "stale" {
		t.Errorf("edge = %+v, want stale zero-callee", edges[0])
	}

	// The chain is now broken for BFS.
	tok := &cancel.Token{}
	res := g.BFS([]int64{ids[0]}, Forward, 20, tok)
	if len(res.Reached) != 2 {
		t.Errorf("reached %d nodes after removal, want 2", len(res.Reached))
	}
}

func TestCancelledBFSReturnsPartial(t *testing.T) {
	g, ids := buildChain(t)
	tok := &cancel.Token{}
	tok.Cancel()

	res := g.BFS([]int64{ids[0]}, Forward, 20, tok)
	if len(res.Reached) != 1 {
		t.Errorf("cancelled walk reached %d nodes, want the root only", len(res.Reached))
	}
}

func TestLookupByQualifiedName(t *testing.T) {
	g, ids := buildChain(t)
	id, ok := g.Lookup("b.ts", "b")
	if !ok || id != ids[1] {
		t.Errorf("Lookup = (%d, %v), want (%d, true)", id, ok, ids[1])
	}
	if _, ok := g.Lookup("b.ts", "missing"); ok {
		t.Error("lookup of a missing name succeeded")
	}
}
