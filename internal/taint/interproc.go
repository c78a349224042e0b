package taint

import (
	"sort"

	"drift/internal/callgraph"
)

// Summary is a function's interprocedural taint contract: which
// parameters flow to the return value and which sinks its parameters
// reach, directly or transitively.
type Summary struct {
	ParamToReturn map[int]bool
	ParamSinks    map[int][]SinkHit
}

// Interprocedural propagates function summaries along the call graph to
// a fixed point, ordered by strongly connected components in reverse
// topological order. Within an SCC, iteration stops when summaries stop
// changing or the bound is hit.
type Interprocedural struct {
	graph     *callgraph.Graph
	iterBound int
}

// NewInterprocedural creates phase two over the call graph.
func NewInterprocedural(graph *callgraph.Graph, iterBound int) *Interprocedural {
	if iterBound <= 0 {
		iterBound = 10
	}
	return &Interprocedural{graph: graph, iterBound: iterBound}
}

// Run joins intraprocedural results into whole-program flows. results is
// keyed by function id.
func (ip *Interprocedural) Run(results map[int64]*FunctionTaint) []Flow {
	summaries := map[int64]*Summary{}
	byName := map[string][]int64{}
	for id, ft := range results {
		summaries[id] = &Summary{
			ParamToReturn: ft.ParamToReturn,
			ParamSinks:    ft.ParamSinks,
		}
		byName[ft.Function] = append(byName[ft.Function], id)
		if base := calleeBaseName(ft.Function); base != ft.Function {
			byName[base] = append(byName[base], id)
		}
	}

	// Reverse topological SCC order: callees settle before callers, so
	// one pass per component usually converges.
	for _, scc := range ip.tarjanSCCs(results) {
		for iter := 0; iter < ip.iterBound; iter++ {
			changed := false
			for _, id := range scc {
				if ip.extendSummary(id, results[id], summaries, byName) {
					changed = true
				}
			}
			if !changed || len(scc) == 1 {
				break
			}
		}
	}

	var flows []Flow
	for _, id := range sortedIDs(results) {
		ft := results[id]
		flows = append(flows, ft.Flows...)
		flows = append(flows, ip.joinCalls(ft, summaries, byName)...)
	}
	return flows
}

// extendSummary merges callee sink reachability into a caller's summary
// through its tainted calls; reports whether anything changed.
func (ip *Interprocedural) extendSummary(id int64, ft *FunctionTaint,
	summaries map[int64]*Summary, byName map[string][]int64) bool {

	// Only parameter-originating taint extends a summary; local-source
	// taint becomes a flow directly in joinCalls.
	changed := false
	sum := summaries[id]
	for _, edge := range ip.graph.OutEdges(id) {
		if edge.To == 0 {
			continue
		}
		calleeSum := summaries[edge.To]
		if calleeSum == nil {
			continue
		}
		for paramIdx, reaches := range ft.ParamToReturn {
			if !reaches {
				continue
			}
			for _, hits := range calleeSum.ParamSinks {
				for _, hit := range hits {
					if !containsHit(sum.ParamSinks[paramIdx], hit.CWE) {
						sum.ParamSinks[paramIdx] = append(sum.ParamSinks[paramIdx], hit)
						changed = true
					}
				}
			}
		}
	}
	return changed
}

func containsHit(hits []SinkHit, cwe string) bool {
	for _, h := range hits {
		if h.CWE == cwe {
			return true
		}
	}
	return false
}

// joinCalls turns tainted calls into flows using callee summaries.
func (ip *Interprocedural) joinCalls(ft *FunctionTaint,
	summaries map[int64]*Summary, byName map[string][]int64) []Flow {

	var flows []Flow
	for _, call := range ft.TaintedCalls {
		for _, calleeID := range byName[call.Callee] {
			sum := summaries[calleeID]
			if sum == nil {
				continue
			}
			for _, hits := range sum.ParamSinks {
				for _, hit := range hits {
					if call.Cleared[hit.CWE] {
						continue
					}
					steps := append([]Step(nil), call.Steps...)
					steps = append(steps, hit.Steps...)
					flows = append(flows, Flow{
						CWE:      hit.CWE,
						Severity: SeverityFor(hit.CWE),
						Steps:    steps,
					})
				}
			}
		}
	}
	return flows
}

// tarjanSCCs returns strongly connected components in reverse
// topological order (callees before callers).
func (ip *Interprocedural) tarjanSCCs(results map[int64]*FunctionTaint) [][]int64 {
	index := map[int64]int{}
	lowlink := map[int64]int{}
	onStack := map[int64]bool{}
	var stack []int64
	var sccs [][]int64
	counter := 0

	var strongconnect func(v int64)
	strongconnect = func(v int64) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range ip.graph.OutEdges(v) {
			w := e.To
			if w == 0 {
				continue
			}
			if _, ok := results[w]; !ok {
				continue
			}
			if _, visited := index[w]; !visited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && index[w] < lowlink[v] {
				lowlink[v] = index[w]
			}
		}

		if lowlink[v] == index[v] {
			var scc []int64
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range sortedIDs(results) {
		if _, visited := index[v]; !visited {
			strongconnect(v)
		}
	}

	// Tarjan emits components in reverse topological order already.
	return sccs
}

func sortedIDs(results map[int64]*FunctionTaint) []int64 {
	out := make([]int64, 0, len(results))
	for id := range results {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
