package reach

import (
	"testing"

	"drift/internal/boundaries"
	"drift/internal/callgraph"
	"drift/internal/cancel"
)

func chainGraph(t *testing.T) (*callgraph.Graph, []int64) {
	t.Helper()
	g := callgraph.New(0)
	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		ids = append(ids, g.AddFunction(callgraph.Node{
			File: name + ".ts", Name: name, QualifiedName: name, StartLine: 1, EndLine: 10,
		}))
	}
	g.AddEdge(callgraph.Edge{From: ids[0], To: ids[1], Strategy: "same_file", Confidence: 0.95})
	g.AddEdge(callgraph.Edge{From: ids[1], To: ids[2], Strategy: "import", Confidence: 0.7})
	return g, ids
}

func TestQueryForward(t *testing.T) {
	g, ids := chainGraph(t)
	a := NewAnalyzer(g, nil, 0)
	tok := &cancel.Token{}

	res, err := a.Query([]int64{ids[0]}, callgraph.Forward, 20, tok)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Reached) != 3 {
		t.Errorf("reached %d, want 3", len(res.Reached))
	}
}

func TestSensitivityInheritance(t *testing.T) {
	g, ids := chainGraph(t)
	a := NewAnalyzer(g, nil, 0)
	tok := &cancel.Token{}

	a.SetSensitivity(map[int64]boundaries.SensitivityClass{
		ids[2]: boundaries.ClassHealth,
	})

	res, err := a.Query([]int64{ids[0]}, callgraph.Forward, 20, tok)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.MaxSensitivity != boundaries.ClassHealth {
		t.Errorf("sensitivity = %s, want health", res.MaxSensitivity)
	}
}

func TestCacheInvalidation(t *testing.T) {
	g, ids := chainGraph(t)
	a := NewAnalyzer(g, nil, 0)
	tok := &cancel.Token{}

	first, err := a.Query([]int64{ids[0]}, callgraph.Forward, 20, tok)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// The cached pointer comes back for an identical query.
	again, err := a.Query([]int64{ids[0]}, callgraph.Forward, 20, tok)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if first != again {
		t.Error("identical query missed the cache")
	}

	// A graph mutation invalidates the cache.
	g.RemoveFile("c.ts")
	a.Invalidate()
	fresh, err := a.Query([]int64{ids[0]}, callgraph.Forward, 20, tok)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if fresh == first {
		t.Error("stale cached result served after invalidation")
	}
	if len(fresh.Reached) != 2 {
		t.Errorf("reached %d after removal, want 2", len(fresh.Reached))
	}
}

func TestBuildSensitivityMap(t *testing.T) {
	g, ids := chainGraph(t)

	accessPoints := []boundaries.Boundary{
		{Table: "users", File: "c.ts", Line: 5},
	}
	fields := []boundaries.SensitiveField{
		{Field: "password", Table: "users", Class: boundaries.ClassCredentials, Confidence: 0.99},
	}

	m := BuildSensitivityMap(g, accessPoints, fields)
	if m[ids[2]] != boundaries.ClassCredentials {
		t.Errorf("c's sensitivity = %s, want credentials", m[ids[2]])
	}
	if _, ok := m[ids[0]]; ok {
		t.Error("unrelated function picked up sensitivity")
	}
}
