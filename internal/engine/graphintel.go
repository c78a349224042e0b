package engine

import (
	"database/sql"
	"strings"

	"drift/internal/boundaries"
	"drift/internal/callgraph"
	"drift/internal/detect"
	"drift/internal/gast"
	"drift/internal/parser"
	"drift/internal/resolve"
	"drift/internal/storage"
	"drift/internal/taint"
)

// rebuildGraphFor inserts functions and resolved call edges for changed
// files. The resolution index covers the whole project so cross-file
// edges land even when only one side changed.
func (e *Engine) rebuildGraphFor(changed []*parser.ParseResult, project []*parser.ParseResult,
	knowledge *boundaries.Knowledge) error {

	index := resolve.NewIndex()
	for _, res := range project {
		index.AddFile(res)
	}
	snapshot := index.Seal()

	dataFiles := map[string]bool{}
	for _, res := range changed {
		if boundaryTouching(res, knowledge) {
			dataFiles[res.Path] = true
		}
	}

	// Pass one: insert function nodes for every changed file.
	for _, res := range changed {
		for _, fn := range res.Functions {
			node := callgraph.Node{
				File:          res.Path,
				Name:          fn.Name,
				QualifiedName: fn.QualifiedName,
				StartLine:     fn.StartLine,
				EndLine:       fn.EndLine,
				IsEntryPoint:  isEntryPoint(fn, res),
				IsExported:    fn.IsExported,
				IsTestCase:    detect.IsTestFunction(res.Language, fn, res),
				IsAuthHandler: detect.IsAuthFunction(fn),
				IsDataAccess:  dataFiles[res.Path],
			}
			id := e.graph.AddFunction(node)
			e.store.InsertFunction(storage.FunctionRow{
				ID:            id,
				File:          res.Path,
				Name:          fn.Name,
				QualifiedName: fn.QualifiedName,
				Signature:     fn.Signature,
				BodyHash:      fn.BodyHash,
				StartLine:     fn.StartLine,
				EndLine:       fn.EndLine,
				IsEntryPoint:  node.IsEntryPoint,
				IsExported:    node.IsExported,
				IsTestCase:    node.IsTestCase,
				IsAuthHandler: node.IsAuthHandler,
				IsDataAccess:  node.IsDataAccess,
			})
		}
	}

	// Pass two: resolve call sites and insert edges.
	for _, res := range changed {
		for _, cs := range res.CallSites {
			if cs.Caller == "" {
				continue
			}
			callerID, ok := e.graph.Lookup(res.Path, cs.Caller)
			if !ok {
				continue
			}
			resolution := snapshot.Resolve(res.Path, cs)
			edge := callgraph.Edge{
				From:       callerID,
				Strategy:   string(resolution.Strategy),
				Confidence: resolution.Confidence,
				Line:       cs.Line,
			}
			var calleeID sql.NullInt64
			if resolution.Callee != nil {
				if id, ok := e.graph.Lookup(resolution.Callee.File, resolution.Callee.QualifiedName); ok {
					edge.To = id
					calleeID = sql.NullInt64{Int64: id, Valid: true}
				}
			}
			if edge.To == 0 {
				// Unresolved sites surface in diagnostics but only fuzzy
				// matches above the floor persist as (caller, None) rows.
				if resolution.Strategy != resolve.StrategyFuzzy && resolution.Callee == nil {
					continue
				}
			}
			e.graph.AddEdge(edge)
			e.store.InsertCallEdge(storage.EdgeRow{
				CallerID:   callerID,
				CalleeID:   calleeID,
				Strategy:   string(edge.Strategy),
				Confidence: edge.Confidence,
				CallLine:   cs.Line,
			})
		}
	}
	return nil
}

func boundaryTouching(res *parser.ParseResult, knowledge *boundaries.Knowledge) bool {
	for _, cs := range res.CallSites {
		receiver := cs.Receiver
		if idx := strings.LastIndex(receiver, "."); idx >= 0 {
			receiver = receiver[idx+1:]
		}
		if knowledge.KnownTables[receiver] {
			return true
		}
		if _, ok := knowledge.VarToTable[receiver]; ok {
			return true
		}
	}
	return false
}

// isEntryPoint marks functions a framework or runtime invokes directly.
func isEntryPoint(fn parser.FunctionInfo, res *parser.ParseResult) bool {
	if fn.Name == "main" {
		return true
	}
	for _, dec := range res.Decorators {
		if dec.Target != fn.QualifiedName {
			continue
		}
		switch dec.Name {
		case "Get", "Post", "Put", "Delete", "Patch", "Route", "RequestMapping",
			"GetMapping", "PostMapping", "HttpGet", "HttpPost", "app.route":
			return true
		}
	}
	// Handler-shaped exports are reachable from outside the project.
	if fn.IsExported && (strings.HasSuffix(fn.Name, "Handler") || strings.HasPrefix(fn.Name, "handle")) {
		return true
	}
	return false
}

// runTaint runs intraprocedural analysis per changed function, then the
// interprocedural summary propagation, and persists resulting flows.
func (e *Engine) runTaint(scanID string, changed []*parser.ParseResult) (int, error) {
	results := map[int64]*taint.FunctionTaint{}

	for _, res := range changed {
		if e.token.Cancelled() {
			break
		}
		if res.Root == nil {
			continue
		}
		fnNodes := functionNodesByLine(res.Root)
		for _, fn := range res.Functions {
			node := fnNodes[fn.StartLine]
			if node == nil {
				continue
			}
			id, ok := e.graph.Lookup(res.Path, fn.QualifiedName)
			if !ok {
				continue
			}
			results[id] = taint.AnalyzeFunction(node, res.Path, fn.QualifiedName, fn.Parameters, e.taintReg)
		}
	}

	interproc := taint.NewInterprocedural(e.graph, e.cfg.Analysis.TaintSCCIterations)
	flows := interproc.Run(results)

	for _, flow := range flows {
		if len(flow.Steps) == 0 {
			continue
		}
		if err := e.store.InsertTaintFlow(scanID, flow.CWE, flow.Severity, flow.EntryFile(), flow.Steps); err != nil {
			return 0, err
		}
	}
	return len(flows), nil
}

// functionNodesByLine indexes function-like GAST nodes by start line so
// extracted FunctionInfo records can find their bodies.
func functionNodesByLine(root *gast.Node) map[int]*gast.Node {
	out := map[int]*gast.Node{}
	gast.Walk(root, func(n *gast.Node) bool {
		switch n.Kind {
		case gast.KindFunction, gast.KindMethod, gast.KindLambda:
			if _, taken := out[n.StartLine]; !taken {
				out[n.StartLine] = n
			}
		}
		return true
	})
	return out
}
