package callgraph

import (
	"strconv"
	"strings"

	"drift/internal/storage"
)

// CTEMaxDepth is the default depth cap for the SQL fallback.
const CTEMaxDepth = 5

// CTEReach runs the same reachability walk as Graph.BFS, but through a
// recursive CTE over the persisted call_edges table. Used when the graph
// exceeds the in-memory threshold or no in-memory handle exists. Both
// paths return identical vertex sets and depths for identical inputs.
func CTEReach(store *storage.Store, roots []int64, dir Direction, maxDepth int) (*ReachResult, error) {
	if maxDepth <= 0 {
		maxDepth = CTEMaxDepth
	}
	res := &ReachResult{
		Reached:       map[int64]int{},
		DiscoveredVia: map[int64]Edge{},
	}
	if len(roots) == 0 {
		return res, nil
	}

	fromCol, toCol := "caller_id", "callee_id"
	if dir == Inverse {
		fromCol, toCol = "callee_id", "caller_id"
	}

	// The temporary visited set lives inside the CTE: grouping by node
	// keeps the minimum depth per vertex, which matches BFS discovery
	// order semantics.
	query := `
		WITH RECURSIVE reach(node, depth) AS (
			SELECT value, 0 FROM json_each(?)
			UNION
			SELECT e.` + toCol + `, r.depth + 1
			FROM call_edges e
			JOIN reach r ON e.` + fromCol + ` = r.node
			WHERE e.` + toCol + ` IS NOT NULL AND r.depth < ?
		)
		SELECT node, MIN(depth) FROM reach GROUP BY node`

	rows, err := store.Reader().Query(query, int64JSON(roots), maxDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var node int64
		var depth int
		if err := rows.Scan(&node, &depth); err != nil {
			return nil, err
		}
		res.Reached[node] = depth
		if depth > res.MaxDepthHit {
			res.MaxDepthHit = depth
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if res.MaxDepthHit >= maxDepth {
		res.Saturated = true
	}
	return res, nil
}

// int64JSON renders ids as a JSON array for json_each.
func int64JSON(ids []int64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte(']')
	return b.String()
}
