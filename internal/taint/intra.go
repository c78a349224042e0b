package taint

import (
	"strings"

	"drift/internal/gast"
)

// varState tracks one tainted symbolic name inside a function.
type varState struct {
	label   string
	steps   []Step
	cleared map[string]bool // weakness classes a sanitizer already cleared
}

func (v *varState) clone() *varState {
	out := &varState{label: v.label, steps: append([]Step(nil), v.steps...), cleared: map[string]bool{}}
	for cwe := range v.cleared {
		out.cleared[cwe] = true
	}
	return out
}

// SinkHit records a sink reachable from a parameter, for summaries.
type SinkHit struct {
	CWE   string
	Steps []Step
}

// TaintedCall is a call whose arguments carry local taint; phase two
// joins these against callee summaries.
type TaintedCall struct {
	Callee  string
	Line    int
	Steps   []Step
	Cleared map[string]bool
}

// FunctionTaint is the intraprocedural result for one function.
type FunctionTaint struct {
	File          string
	Function      string
	Flows         []Flow
	ParamToReturn map[int]bool
	ParamSinks    map[int][]SinkHit
	TaintedCalls  []TaintedCall
}

// AnalyzeFunction builds the mini dataflow graph for one function body
// and runs taint propagation over assignments and calls in source order.
func AnalyzeFunction(fn *gast.Node, file, functionName string, params []string, reg *Registry) *FunctionTaint {
	ft := &FunctionTaint{
		File:          file,
		Function:      functionName,
		ParamToReturn: map[int]bool{},
		ParamSinks:    map[int][]SinkHit{},
	}

	vars := map[string]*varState{}
	paramIndex := map[string]int{}
	for i, p := range params {
		paramIndex[p] = i
		vars[p] = &varState{
			label:   "param",
			steps:   []Step{{File: file, Function: functionName, Line: fn.StartLine, Role: RoleSource, Snippet: p}},
			cleared: map[string]bool{},
		}
	}

	var walk func(n *gast.Node)
	walk = func(n *gast.Node) {
		switch n.Kind {
		case gast.KindAssignment, gast.KindVarDecl:
			lhs := assignTarget(n)
			if lhs != "" {
				if state := evalExpr(n, file, functionName, vars, reg); state != nil {
					vars[lhs] = state
				}
			}

		case gast.KindCall:
			ft.handleCall(n, vars, paramIndex, reg)

		case gast.KindReturn:
			for name := range taintedNamesIn(n, vars) {
				if idx, ok := paramIndex[name]; ok {
					ft.ParamToReturn[idx] = true
				}
			}
		}

		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(fn)
	return ft
}

// assignTarget extracts the simple variable name being assigned.
func assignTarget(n *gast.Node) string {
	name := n.Name
	if idx := strings.IndexAny(name, " =:"); idx >= 0 {
		name = name[:idx]
	}
	if strings.ContainsAny(name, ".[(") {
		return ""
	}
	return strings.TrimSpace(name)
}

// evalExpr decides whether the right-hand side of an assignment is
// tainted, returning the new variable state or nil.
func evalExpr(n *gast.Node, file, functionName string, vars map[string]*varState, reg *Registry) *varState {
	// A source expression anywhere in the RHS taints the target.
	var fromSource *varState
	var fromVar *varState
	var sanitized *varState
	var propagated bool

	gast.Walk(n, func(child *gast.Node) bool {
		if child == n {
			return true
		}
		switch child.Kind {
		case gast.KindMemberAccess, gast.KindIdentifier:
			expr := child.Name
			if src := reg.MatchSource(expr); src != nil && fromSource == nil {
				fromSource = &varState{
					label: src.TaintLabel,
					steps: []Step{{
						File: file, Function: functionName, Line: child.StartLine,
						Role: RoleSource, Snippet: expr,
					}},
					cleared: map[string]bool{},
				}
			}
			if state, ok := vars[expr]; ok && fromVar == nil {
				fromVar = state
			}

		case gast.KindCall:
			callee := child.Name
			if san := reg.MatchSanitizer(callee); san != nil {
				for name := range taintedNamesIn(child, vars) {
					cleaned := vars[name].clone()
					for _, cwe := range san.ClearsCWEs {
						cleaned.cleared[cwe] = true
					}
					cleaned.steps = append(cleaned.steps, Step{
						File: file, Function: functionName, Line: child.StartLine,
						Role: RoleSanitizer, Snippet: callee,
					})
					sanitized = cleaned
					break
				}
			} else if reg.MatchPropagator(callee) != nil {
				if len(taintedNamesIn(child, vars)) > 0 {
					propagated = true
				}
			}

		case gast.KindBinaryOp:
			// String concatenation propagates taint through the join.
			if len(taintedNamesIn(child, vars)) > 0 {
				propagated = true
			}
			return true
		}
		return true
	})

	switch {
	case sanitized != nil:
		return sanitized
	case fromSource != nil:
		return fromSource
	case fromVar != nil:
		state := fromVar.clone()
		if propagated {
			state.steps = append(state.steps, Step{
				File: file, Function: functionName, Line: n.StartLine,
				Role: RolePropagator, Snippet: truncateSnippet(n.Name),
			})
		}
		return state
	default:
		return nil
	}
}

// handleCall checks a call expression for sink hits and records
// taint-carrying calls for the interprocedural phase.
func (ft *FunctionTaint) handleCall(n *gast.Node, vars map[string]*varState,
	paramIndex map[string]int, reg *Registry) {

	tainted := taintedNamesIn(n, vars)
	if len(tainted) == 0 {
		return
	}

	callee := n.Name
	if sink := reg.MatchSink(callee); sink != nil {
		for name := range tainted {
			state := vars[name]
			if state.cleared[sink.CWE] {
				continue
			}
			sinkStep := Step{
				File: ft.File, Function: ft.Function, Line: n.StartLine,
				Role: RoleSink, Snippet: truncateSnippet(callee),
			}
			if idx, ok := paramIndex[name]; ok && state.label == "param" {
				ft.ParamSinks[idx] = append(ft.ParamSinks[idx], SinkHit{
					CWE:   sink.CWE,
					Steps: append(append([]Step(nil), state.steps[1:]...), sinkStep),
				})
				continue
			}
			ft.Flows = append(ft.Flows, Flow{
				CWE:      sink.CWE,
				Severity: SeverityFor(sink.CWE),
				Steps:    append(append([]Step(nil), state.steps...), sinkStep),
			})
		}
		return
	}

	// Not a sink: a tainted argument still matters if the callee's
	// summary says its parameters reach one.
	for name := range tainted {
		state := vars[name]
		if state.label == "param" {
			continue
		}
		ft.TaintedCalls = append(ft.TaintedCalls, TaintedCall{
			Callee:  calleeBaseName(callee),
			Line:    n.StartLine,
			Steps:   append([]Step(nil), state.steps...),
			Cleared: state.cleared,
		})
		break
	}
}

// taintedNamesIn collects tainted variable names appearing in a subtree.
func taintedNamesIn(n *gast.Node, vars map[string]*varState) map[string]bool {
	out := map[string]bool{}
	gast.Walk(n, func(child *gast.Node) bool {
		if child.Kind == gast.KindIdentifier {
			if _, ok := vars[child.Name]; ok {
				out[child.Name] = true
			}
		}
		if child.Kind == gast.KindMemberAccess {
			base := child.Name
			if idx := strings.IndexAny(base, ".["); idx >= 0 {
				base = base[:idx]
			}
			if _, ok := vars[base]; ok {
				out[base] = true
			}
		}
		return true
	})
	return out
}

func calleeBaseName(callee string) string {
	if idx := strings.LastIndex(callee, "."); idx >= 0 {
		return callee[idx+1:]
	}
	return callee
}

func truncateSnippet(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
