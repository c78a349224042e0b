package engine

import (
	"encoding/json"

	"drift/internal/impact"
	"drift/internal/taint"
)

// TaintFlowRecord is the stable taint output shape.
type TaintFlowRecord struct {
	ID       int64        `json:"id"`
	CWE      string       `json:"cwe"`
	Severity string       `json:"severity"`
	Steps    []taint.Step `json:"steps"`
}

// TaintFlows lists persisted flows, most severe CWE classes first by
// severity then id.
func (e *Engine) TaintFlows(limit int) ([]TaintFlowRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := e.store.Reader().Query(`
		SELECT id, cwe, severity, steps FROM taint_flows
		ORDER BY CASE severity
			WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3
		END, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaintFlowRecord
	for rows.Next() {
		var rec TaintFlowRecord
		var stepsJSON string
		if err := rows.Scan(&rec.ID, &rec.CWE, &rec.Severity, &stepsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Impact computes the blast radius for a function named by file and
// qualified name.
func (e *Engine) Impact(file, qualifiedName string) (*impact.Record, error) {
	id, ok := e.graph.Lookup(file, qualifiedName)
	if !ok {
		return nil, nil
	}
	analyzer := impact.NewAnalyzer(e.graph, e.reach)
	return analyzer.BlastRadius(id, e.cfg.Analysis.MaxReachDepth, e.token)
}

// DeadCode lists functions with no inbound edges after the exclusion
// classes.
func (e *Engine) DeadCode() []impact.DeadFunction {
	analyzer := impact.NewAnalyzer(e.graph, e.reach)
	return analyzer.DeadCode(impact.DeadCodeOptions{
		ExcludePatterns: e.cfg.Scan.ExcludePatterns,
		ExportedNames:   e.exportedNames(),
		DynamicNames:    map[string]bool{},
	})
}

// MinimumTests returns the selective test set for a changed-function
// list, cheapest tests first.
func (e *Engine) MinimumTests(changed []int64) ([]int64, error) {
	analyzer := impact.NewAnalyzer(e.graph, e.reach)
	topo, err := analyzer.TestTopology(e.cfg.Analysis.MaxReachDepth, e.token)
	if err != nil {
		return nil, err
	}
	return impact.MinimumTestSet(topo, changed), nil
}

// exportedNames pulls exported symbol names from the persisted function
// table for dead-code exclusion class three.
func (e *Engine) exportedNames() map[string]bool {
	out := map[string]bool{}
	functions, err := e.store.LoadFunctions()
	if err != nil {
		return out
	}
	for _, f := range functions {
		if f.IsExported {
			out[f.Name] = true
		}
	}
	return out
}
