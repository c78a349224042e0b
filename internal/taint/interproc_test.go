package taint

import (
	"testing"

	"drift/internal/callgraph"
	"drift/internal/gast"
)

// callerBody reads a request value and passes it to run(), which owns
// the sink.
func callerBody() *gast.Node {
	body := &gast.Node{Kind: gast.KindFunction, Name: "handler", StartLine: 1, EndLine: 5}
	body.Children = append(body.Children,
		&gast.Node{
			Kind: gast.KindVarDecl, Name: "q", StartLine: 2,
			Children: []*gast.Node{
				{Kind: gast.KindMemberAccess, Name: "req.query.id", StartLine: 2},
			},
		},
		&gast.Node{
			Kind: gast.KindCall, Name: "run", StartLine: 3,
			Children: []*gast.Node{
				{Kind: gast.KindIdentifier, Name: "q", StartLine: 3},
			},
		},
	)
	return body
}

func calleeBody() *gast.Node {
	body := &gast.Node{Kind: gast.KindFunction, Name: "run", StartLine: 1, EndLine: 3}
	body.Children = append(body.Children, &gast.Node{
		Kind: gast.KindCall, Name: "db.execute", StartLine: 2,
		Children: []*gast.Node{
			{Kind: gast.KindIdentifier, Name: "query", StartLine: 2},
		},
	})
	return body
}

func TestInterproceduralFlowThroughSummary(t *testing.T) {
	reg := DefaultRegistry()

	g := callgraph.New(0)
	handlerID := g.AddFunction(callgraph.Node{File: "h.ts", Name: "handler", QualifiedName: "handler", StartLine: 1, EndLine: 5})
	runID := g.AddFunction(callgraph.Node{File: "r.ts", Name: "run", QualifiedName: "run", StartLine: 1, EndLine: 3})
	g.AddEdge(callgraph.Edge{From: handlerID, To: runID, Strategy: "import", Confidence: 0.7})

	results := map[int64]*FunctionTaint{
		handlerID: AnalyzeFunction(callerBody(), "h.ts", "handler", nil, reg),
		runID:     AnalyzeFunction(calleeBody(), "r.ts", "run", []string{"query"}, reg),
	}

	flows := NewInterprocedural(g, 10).Run(results)
	if len(flows) != 1 {
		t.Fatalf("got %d flows, want 1: %+v", len(flows), flows)
	}
	flow := flows[0]
	if flow.CWE != "CWE-89" {
		t.Errorf("cwe = %s", flow.CWE)
	}
	if flow.Steps[0].Role != RoleSource || flow.Steps[0].File != "h.ts" {
		t.Errorf("first step = %+v, want the handler's source", flow.Steps[0])
	}
	last := flow.Steps[len(flow.Steps)-1]
	if last.Role != RoleSink || last.File != "r.ts" {
		t.Errorf("last step = %+v, want the callee's sink", last)
	}
}

func TestSanitizedArgumentDoesNotCross(t *testing.T) {
	reg := DefaultRegistry()

	body := &gast.Node{Kind: gast.KindFunction, Name: "handler", StartLine: 1, EndLine: 6}
	body.Children = append(body.Children,
		&gast.Node{
			Kind: gast.KindVarDecl, Name: "q", StartLine: 2,
			Children: []*gast.Node{
				{Kind: gast.KindMemberAccess, Name: "req.query.id", StartLine: 2},
			},
		},
		&gast.Node{
			Kind: gast.KindVarDecl, Name: "q", StartLine: 3,
			Children: []*gast.Node{
				{
					Kind: gast.KindCall, Name: "parameterize", StartLine: 3,
					Children: []*gast.Node{
						{Kind: gast.KindIdentifier, Name: "q", StartLine: 3},
					},
				},
			},
		},
		&gast.Node{
			Kind: gast.KindCall, Name: "run", StartLine: 4,
			Children: []*gast.Node{
				{Kind: gast.KindIdentifier, Name: "q", StartLine: 4},
			},
		},
	)

	g := callgraph.New(0)
	handlerID := g.AddFunction(callgraph.Node{File: "h.ts", Name: "handler", QualifiedName: "handler", StartLine: 1, EndLine: 6})
	runID := g.AddFunction(callgraph.Node{File: "r.ts", Name: "run", QualifiedName: "run", StartLine: 1, EndLine: 3})
	g.AddEdge(callgraph.Edge{From: handlerID, To: runID, Strategy: "import", Confidence: 0.7})

	results := map[int64]*FunctionTaint{
		handlerID: AnalyzeFunction(body, "h.ts", "handler", nil, reg),
		runID:     AnalyzeFunction(calleeBody(), "r.ts", "run", []string{"query"}, reg),
	}

	flows := NewInterprocedural(g, 10).Run(results)
	if len(flows) != 0 {
		t.Errorf("sanitized argument crossed the call: %+v", flows)
	}
}
