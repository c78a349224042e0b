// Package callgraph holds the directed labeled graph of functions and
// call edges, with in-memory BFS and a recursive-CTE fallback over the
// persisted tables.
package callgraph

import (
	"sync"

	"drift/internal/storage"
)

// Node is one function vertex. IDs are the persisted function row ids,
// so in-memory queries and SQL queries name the same vertices.
type Node struct {
	ID            int64
	File          string
	Name          string
	QualifiedName string
	IsEntryPoint  bool
	IsExported    bool
	IsTestCase    bool
	IsAuthHandler bool
	IsDataAccess  bool
	StartLine     int
	EndLine       int
}

// Edge is one call relation. A zero To marks an unresolved or stale
// callee.
type Edge struct {
	From       int64
	To         int64
	Strategy   string
	Confidence float64
	Line       int
}

// Graph is the in-memory call graph. A read-write lock guards it;
// incremental updates take the write lock for O(edges changed).
type Graph struct {
	mu      sync.RWMutex
	nodes   map[int64]*Node
	out     map[int64][]Edge
	in      map[int64][]Edge
	byFile  map[string][]int64
	byQName map[string]int64 // file + "\x00" + qualified name
	nextID  int64
}

// New creates an empty graph with ids starting above base, typically the
// store's max persisted function id.
func New(base int64) *Graph {
	return &Graph{
		nodes:   map[int64]*Node{},
		out:     map[int64][]Edge{},
		in:      map[int64][]Edge{},
		byFile:  map[string][]int64{},
		byQName: map[string]int64{},
		nextID:  base + 1,
	}
}

// FromRows rebuilds a graph from persisted rows.
func FromRows(functions []storage.FunctionRow, edges []storage.EdgeRow) *Graph {
	var maxID int64
	for _, f := range functions {
		if f.ID > maxID {
			maxID = f.ID
		}
	}
	g := New(maxID)
	for _, f := range functions {
		g.insert(&Node{
			ID:            f.ID,
			File:          f.File,
			Name:          f.Name,
			QualifiedName: f.QualifiedName,
			IsEntryPoint:  f.IsEntryPoint,
			IsExported:    f.IsExported,
			IsTestCase:    f.IsTestCase,
			IsAuthHandler: f.IsAuthHandler,
			IsDataAccess:  f.IsDataAccess,
			StartLine:     f.StartLine,
			EndLine:       f.EndLine,
		})
	}
	for _, e := range edges {
		var to int64
		if e.CalleeID.Valid {
			to = e.CalleeID.Int64
		}
		g.addEdgeLocked(Edge{
			From:       e.CallerID,
			To:         to,
			Strategy:   e.Strategy,
			Confidence: e.Confidence,
			Line:       e.CallLine,
		})
	}
	return g
}

// AddFunction inserts a function and returns its id.
func (g *Graph) AddFunction(n Node) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n.ID == 0 {
		n.ID = g.nextID
		g.nextID++
	} else if n.ID >= g.nextID {
		g.nextID = n.ID + 1
	}
	g.insert(&n)
	return n.ID
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	g.byFile[n.File] = append(g.byFile[n.File], n.ID)
	g.byQName[qnameKey(n.File, n.QualifiedName)] = n.ID
}

// AddEdge inserts one call edge.
func (g *Graph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(e)
}

func (g *Graph) addEdgeLocked(e Edge) {
	g.out[e.From] = append(g.out[e.From], e)
	if e.To != 0 {
		g.in[e.To] = append(g.in[e.To], e)
	}
}

// RemoveFile drops every function owned by path and its outgoing edges.
// Inbound edges from other files survive with a zero callee and the
// strategy rewritten to "stale".
func (g *Graph) RemoveFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := map[int64]bool{}
	for _, id := range g.byFile[path] {
		removed[id] = true
	}
	if len(removed) == 0 {
		return
	}

	for id := range removed {
		for _, e := range g.out[id] {
			if e.To != 0 && !removed[e.To] {
				g.in[e.To] = dropEdgesFrom(g.in[e.To], removed)
			}
		}
		delete(g.out, id)
		delete(g.in, id)
		node := g.nodes[id]
		if node != nil {
			delete(g.byQName, qnameKey(node.File, node.QualifiedName))
		}
		delete(g.nodes, id)
	}
	delete(g.byFile, path)

	// Inbound edges to removed callees go stale rather than vanish.
	for from, edges := range g.out {
		changed := false
		for i, e := range edges {
			if e.To != 0 && removed[e.To] {
				edges[i].To = 0
				edges[i].Strategy = "stale"
				changed = true
			}
		}
		if changed {
			g.out[from] = edges
		}
	}
}

func dropEdgesFrom(edges []Edge, removed map[int64]bool) []Edge {
	kept := edges[:0]
	for _, e := range edges {
		if !removed[e.From] {
			kept = append(kept, e)
		}
	}
	return kept
}

// Lookup finds a function id by file and qualified name.
func (g *Graph) Lookup(file, qualifiedName string) (int64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byQName[qnameKey(file, qualifiedName)]
	return id, ok
}

// NodeByID returns a copy of the node.
func (g *Graph) NodeByID(id int64) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns a snapshot of all node ids.
func (g *Graph) Nodes() []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	return out
}

// NodesIn returns the ids of functions owned by path.
func (g *Graph) NodesIn(path string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int64, len(g.byFile[path]))
	copy(out, g.byFile[path])
	return out
}

// OutEdges returns a copy of a node's outgoing edges.
func (g *Graph) OutEdges(id int64) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.out[id]))
	copy(out, g.out[id])
	return out
}

// InEdges returns a copy of a node's incoming edges.
func (g *Graph) InEdges(id int64) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.in[id]))
	copy(out, g.in[id])
	return out
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func qnameKey(file, qualifiedName string) string {
	return file + "\x00" + qualifiedName
}
