package taint

import (
	"testing"

	"drift/internal/gast"
)

// handlerBody builds the GAST for:
//
//	function handler(req) {
//	    const id = req.query.id
//	    const sql = "SELECT * FROM users WHERE id = " + id
//	    db.query(sql)
//	}
//
// with an optional sanitizer call spliced between source and sink.
func handlerBody(sanitize bool) *gast.Node {
	body := &gast.Node{Kind: gast.KindFunction, Name: "handler", StartLine: 1, EndLine: 6}

	readID := &gast.Node{
		Kind: gast.KindVarDecl, Name: "id", StartLine: 2,
		Children: []*gast.Node{
			{Kind: gast.KindMemberAccess, Name: "req.query.id", StartLine: 2},
		},
	}
	body.Children = append(body.Children, readID)

	concatSource := &gast.Node{
		Kind: gast.KindVarDecl, Name: "sql", StartLine: 3,
		Children: []*gast.Node{
			{
				Kind: gast.KindBinaryOp, Tag: "binary_expression", StartLine: 3,
				Children: []*gast.Node{
					{Kind: gast.KindStringLiteral, Value: `"SELECT * FROM users WHERE id = "`, StartLine: 3},
					{Kind: gast.KindIdentifier, Name: "id", StartLine: 3},
				},
			},
		},
	}
	body.Children = append(body.Children, concatSource)

	if sanitize {
		body.Children = append(body.Children, &gast.Node{
			Kind: gast.KindVarDecl, Name: "sql", StartLine: 4,
			Children: []*gast.Node{
				{
					Kind: gast.KindCall, Name: "parameterize", StartLine: 4,
					Children: []*gast.Node{
						{Kind: gast.KindIdentifier, Name: "sql", StartLine: 4},
					},
				},
			},
		})
	}

	body.Children = append(body.Children, &gast.Node{
		Kind: gast.KindCall, Name: "db.query", StartLine: 5,
		Children: []*gast.Node{
			{Kind: gast.KindIdentifier, Name: "sql", StartLine: 5},
		},
	})

	return body
}

func TestSQLInjectionFlow(t *testing.T) {
	reg := DefaultRegistry()
	ft := AnalyzeFunction(handlerBody(false), "src/handler.ts", "handler", nil, reg)

	if len(ft.Flows) != 1 {
		t.Fatalf("got %d flows, want 1: %+v", len(ft.Flows), ft.Flows)
	}
	flow := ft.Flows[0]

	if flow.CWE != "CWE-89" {
		t.Errorf("cwe = %s, want CWE-89", flow.CWE)
	}
	if flow.Severity != "critical" {
		t.Errorf("severity = %s, want critical", flow.Severity)
	}
	if len(flow.Steps) != 3 {
		t.Fatalf("got %d steps, want source, propagator, sink: %+v", len(flow.Steps), flow.Steps)
	}
	wantRoles := []Role{RoleSource, RolePropagator, RoleSink}
	for i, role := range wantRoles {
		if flow.Steps[i].Role != role {
			t.Errorf("step %d role = %s, want %s", i, flow.Steps[i].Role, role)
		}
	}
	if flow.Steps[0].Snippet != "req.query.id" {
		t.Errorf("source snippet = %q", flow.Steps[0].Snippet)
	}
	if flow.EntryFile() != "src/handler.ts" {
		t.Errorf("entry file = %q", flow.EntryFile())
	}
}

func TestSanitizerClearsMatchingCWE(t *testing.T) {
	reg := DefaultRegistry()
	ft := AnalyzeFunction(handlerBody(true), "src/handler.ts", "handler", nil, reg)

	if len(ft.Flows) != 0 {
		t.Errorf("sanitized flow still reported: %+v", ft.Flows)
	}
}

func TestSanitizerIsPerCWE(t *testing.T) {
	// An HTML escape does not clear a SQL sink.
	body := &gast.Node{Kind: gast.KindFunction, Name: "h", StartLine: 1, EndLine: 5}
	body.Children = append(body.Children,
		&gast.Node{
			Kind: gast.KindVarDecl, Name: "v", StartLine: 2,
			Children: []*gast.Node{
				{Kind: gast.KindMemberAccess, Name: "req.body.name", StartLine: 2},
			},
		},
		&gast.Node{
			Kind: gast.KindVarDecl, Name: "v", StartLine: 3,
			Children: []*gast.Node{
				{
					Kind: gast.KindCall, Name: "escapeHtml", StartLine: 3,
					Children: []*gast.Node{
						{Kind: gast.KindIdentifier, Name: "v", StartLine: 3},
					},
				},
			},
		},
		&gast.Node{
			Kind: gast.KindCall, Name: "db.query", StartLine: 4,
			Children: []*gast.Node{
				{Kind: gast.KindIdentifier, Name: "v", StartLine: 4},
			},
		},
	)

	reg := DefaultRegistry()
	ft := AnalyzeFunction(body, "h.ts", "h", nil, reg)
	if len(ft.Flows) != 1 {
		t.Fatalf("got %d flows; an XSS escape must not clear a SQL sink", len(ft.Flows))
	}
	if ft.Flows[0].CWE != "CWE-89" {
		t.Errorf("cwe = %s, want CWE-89", ft.Flows[0].CWE)
	}
}

func TestParamSinkSummary(t *testing.T) {
	// function run(q) { db.execute(q) } — the parameter reaches a sink,
	// which belongs in the summary, not the local flow list.
	body := &gast.Node{Kind: gast.KindFunction, Name: "run", StartLine: 1, EndLine: 3}
	body.Children = append(body.Children, &gast.Node{
		Kind: gast.KindCall, Name: "db.execute", StartLine: 2,
		Children: []*gast.Node{
			{Kind: gast.KindIdentifier, Name: "q", StartLine: 2},
		},
	})

	reg := DefaultRegistry()
	ft := AnalyzeFunction(body, "run.ts", "run", []string{"q"}, reg)

	if len(ft.Flows) != 0 {
		t.Errorf("param-only taint emitted a local flow: %+v", ft.Flows)
	}
	hits := ft.ParamSinks[0]
	if len(hits) != 1 || hits[0].CWE != "CWE-89" {
		t.Fatalf("param 0 sinks = %+v, want one CWE-89 hit", hits)
	}
}

func TestMatchExpr(t *testing.T) {
	tests := []struct {
		pattern, expr string
		want          bool
	}{
		{"req.query", "req.query.id", true},
		{"req.query", "req.querystring", false},
		{"db.query", "db.query", true},
		{"exec", "child_process.exec", true},
		{"*.raw", "knex.raw", true},
		{"exec", "executeAll", false},
	}
	for _, tt := range tests {
		if got := matchExpr(tt.pattern, tt.expr); got != tt.want {
			t.Errorf("matchExpr(%q, %q) = %v, want %v", tt.pattern, tt.expr, got, tt.want)
		}
	}
}
