package callgraph

import (
	"database/sql"
	"path/filepath"
	"testing"

	"drift/internal/cancel"
	"drift/internal/logging"
	"drift/internal/storage"
)

// persistGraph mirrors an in-memory graph into a fresh store so the CTE
// engine sees identical edges.
func persistGraph(t *testing.T, g *Graph) *storage.Store {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	s, err := storage.Open(storage.DefaultOptions(filepath.Join(t.TempDir(), "drift.db")), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for _, id := range g.Nodes() {
		node, _ := g.NodeByID(id)
		s.UpsertFile(storage.FileRecord{Path: node.File, ContentHash: uint64(id), Language: "typescript"})
	}
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush files: %v", err)
	}
	for _, id := range g.Nodes() {
		node, _ := g.NodeByID(id)
		s.InsertFunction(storage.FunctionRow{
			ID: id, File: node.File, Name: node.Name, QualifiedName: node.QualifiedName,
			BodyHash: uint64(id), StartLine: node.StartLine, EndLine: node.EndLine,
		})
	}
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush functions: %v", err)
	}
	for _, id := range g.Nodes() {
		for _, e := range g.OutEdges(id) {
			var callee sql.NullInt64
			if e.To != 0 {
				callee = sql.NullInt64{Int64: e.To, Valid: true}
			}
			s.InsertCallEdge(storage.EdgeRow{
				CallerID: e.From, CalleeID: callee,
				Strategy: e.Strategy, Confidence: e.Confidence, CallLine: e.Line,
			})
		}
	}
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush edges: %v", err)
	}
	return s
}

// diamondGraph builds a → {b, c} → d plus an isolated e.
func diamondGraph(t *testing.T) (*Graph, map[string]int64) {
	t.Helper()
	g := New(0)
	ids := map[string]int64{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids[name] = g.AddFunction(Node{
			File: name + ".ts", Name: name, QualifiedName: name, StartLine: 1, EndLine: 5,
		})
	}
	g.AddEdge(Edge{From: ids["a"], To: ids["b"], Strategy: "same_file", Confidence: 0.95})
	g.AddEdge(Edge{From: ids["a"], To: ids["c"], Strategy: "same_file", Confidence: 0.95})
	g.AddEdge(Edge{From: ids["b"], To: ids["d"], Strategy: "import", Confidence: 0.7})
	g.AddEdge(Edge{From: ids["c"], To: ids["d"], Strategy: "import", Confidence: 0.7})
	return g, ids
}

func TestBFSAndCTEAgree(t *testing.T) {
	g, ids := diamondGraph(t)
	store := persistGraph(t, g)
	tok := &cancel.Token{}

	tests := []struct {
		name  string
		roots []int64
		dir   Direction
		depth int
	}{
		{"forward from a", []int64{ids["a"]}, Forward, 5},
		{"forward shallow", []int64{ids["a"]}, Forward, 1},
		{"inverse from d", []int64{ids["d"]}, Inverse, 5},
		{"isolated node", []int64{ids["e"]}, Forward, 5},
		{"multi-root", []int64{ids["b"], ids["c"]}, Forward, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := g.BFS(tt.roots, tt.dir, tt.depth, tok)
			cte, err := CTEReach(store, tt.roots, tt.dir, tt.depth)
			if err != nil {
				t.Fatalf("CTEReach: %v", err)
			}

			if len(mem.Reached) != len(cte.Reached) {
				t.Fatalf("vertex sets differ: mem=%d cte=%d", len(mem.Reached), len(cte.Reached))
			}
			for id, depth := range mem.Reached {
				cteDepth, ok := cte.Reached[id]
				if !ok {
					t.Errorf("node %d missing from CTE result", id)
					continue
				}
				if cteDepth != depth {
					t.Errorf("node %d depth differs: mem=%d cte=%d", id, depth, cteDepth)
				}
			}
		})
	}
}

func TestCTEDefaultDepthCap(t *testing.T) {
	// A chain longer than the default cap must saturate.
	g := New(0)
	var ids []int64
	for i := 0; i < 10; i++ {
		ids = append(ids, g.AddFunction(Node{
			File: "chain.ts", Name: "f", QualifiedName: "f" + string(rune('0'+i)),
			StartLine: i * 10, EndLine: i*10 + 5,
		}))
	}
	for i := 0; i < 9; i++ {
		g.AddEdge(Edge{From: ids[i], To: ids[i+1], Strategy: "same_file", Confidence: 0.95})
	}
	store := persistGraph(t, g)

	res, err := CTEReach(store, []int64{ids[0]}, Forward, 0)
	if err != nil {
		t.Fatalf("CTEReach: %v", err)
	}
	if !res.Saturated {
		t.Error("default-capped walk must report saturation")
	}
	if len(res.Reached) != CTEMaxDepth+1 {
		t.Errorf("reached %d nodes, want %d", len(res.Reached), CTEMaxDepth+1)
	}
}
