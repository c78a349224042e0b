package impact

import (
	"sort"

	"drift/internal/callgraph"
	"drift/internal/cancel"
)

// TestMapping links one test to the production functions it reaches.
type TestMapping struct {
	TestID  int64
	Reaches map[int64]bool
}

// Selectivity is the size of a test's reached set; fewer is more
// selective.
func (m *TestMapping) Selectivity() int {
	return len(m.Reaches)
}

// TestTopology maps each test function to the production code reachable
// from its body.
func (a *Analyzer) TestTopology(maxDepth int, tok *cancel.Token) ([]TestMapping, error) {
	var out []TestMapping
	ids := a.graph.Nodes()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		node, ok := a.graph.NodeByID(id)
		if !ok || !node.IsTestCase {
			continue
		}
		res, err := a.reach.Query([]int64{id}, callgraph.Forward, maxDepth, tok)
		if err != nil {
			return nil, err
		}
		reaches := map[int64]bool{}
		for target := range res.Reached {
			if target == id {
				continue
			}
			if targetNode, ok := a.graph.NodeByID(target); ok && !targetNode.IsTestCase {
				reaches[target] = true
			}
		}
		out = append(out, TestMapping{TestID: id, Reaches: reaches})
	}
	return out, nil
}

// MinimumTestSet returns the tests whose reach intersects the changed
// functions, sorted most-selective first so the cheapest relevant tests
// run early.
func MinimumTestSet(topology []TestMapping, changed []int64) []int64 {
	changedSet := map[int64]bool{}
	for _, id := range changed {
		changedSet[id] = true
	}

	var relevant []TestMapping
	for _, m := range topology {
		for id := range m.Reaches {
			if changedSet[id] {
				relevant = append(relevant, m)
				break
			}
		}
	}

	sort.Slice(relevant, func(i, j int) bool {
		if relevant[i].Selectivity() != relevant[j].Selectivity() {
			return relevant[i].Selectivity() < relevant[j].Selectivity()
		}
		return relevant[i].TestID < relevant[j].TestID
	})

	out := make([]int64, len(relevant))
	for i, m := range relevant {
		out[i] = m.TestID
	}
	return out
}
