// Package impact computes blast radius, dead code, and test topology
// over the call graph.
package impact

import (
	"drift/internal/boundaries"
	"drift/internal/callgraph"
	"drift/internal/cancel"
	"drift/internal/reach"
)

// Record is the stable impact output for one root function.
type Record struct {
	Root           int64                       `json:"root"`
	AffectedCount  int                         `json:"affected_count"`
	SensitivityMax boundaries.SensitivityClass `json:"sensitivity_max,omitempty"`
	RiskScore      float64                     `json:"risk_score"` // 0..100
	EntryAncestors int                         `json:"entry_ancestors"`
}

// Analyzer answers impact queries.
type Analyzer struct {
	graph *callgraph.Graph
	reach *reach.Analyzer
}

// NewAnalyzer creates an impact analyzer.
func NewAnalyzer(graph *callgraph.Graph, reachAnalyzer *reach.Analyzer) *Analyzer {
	return &Analyzer{graph: graph, reach: reachAnalyzer}
}

// BlastRadius computes the union of transitive callers and callees of
// root, weighted by entry-point ancestry and the maximum sensitivity
// encountered.
func (a *Analyzer) BlastRadius(root int64, maxDepth int, tok *cancel.Token) (*Record, error) {
	callers, err := a.reach.Query([]int64{root}, callgraph.Inverse, maxDepth, tok)
	if err != nil {
		return nil, err
	}
	callees, err := a.reach.Query([]int64{root}, callgraph.Forward, maxDepth, tok)
	if err != nil {
		return nil, err
	}

	affected := map[int64]bool{}
	for id := range callers.Reached {
		affected[id] = true
	}
	for id := range callees.Reached {
		affected[id] = true
	}
	delete(affected, root)

	entryAncestors := 0
	for id := range callers.Reached {
		if node, ok := a.graph.NodeByID(id); ok && node.IsEntryPoint {
			entryAncestors++
		}
	}

	sensitivity := boundaries.MaxClass(callers.MaxSensitivity, callees.MaxSensitivity)

	return &Record{
		Root:           root,
		AffectedCount:  len(affected),
		SensitivityMax: sensitivity,
		EntryAncestors: entryAncestors,
		RiskScore:      riskScore(len(affected), entryAncestors, sensitivity, a.graph.Size()),
	}, nil
}

// riskScore folds radius size, entry-point exposure, and data
// sensitivity into [0,100].
func riskScore(affected, entryAncestors int, sensitivity boundaries.SensitivityClass, graphSize int) float64 {
	if graphSize == 0 {
		return 0
	}

	// Radius share of the graph caps at 50 points.
	share := float64(affected) / float64(graphSize)
	score := share * 100
	if score > 50 {
		score = 50
	}

	// Entry-point ancestry adds up to 25.
	entry := float64(entryAncestors) * 5
	if entry > 25 {
		entry = 25
	}
	score += entry

	// Sensitivity adds the rest.
	switch sensitivity {
	case boundaries.ClassCredentials:
		score += 25
	case boundaries.ClassHealth:
		score += 20
	case boundaries.ClassFinancial:
		score += 15
	case boundaries.ClassPII:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
