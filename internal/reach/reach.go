// Package reach answers forward and inverse reachability queries over
// the call graph, with sensitivity inheritance and an LRU result cache.
package reach

import (
	"container/list"
	"sync"

	"drift/internal/boundaries"
	"drift/internal/callgraph"
	"drift/internal/cancel"
	"drift/internal/storage"
)

// DefaultMaxDepth bounds BFS walks unless a query overrides it.
const DefaultMaxDepth = 20

// Result is a reachability answer.
type Result struct {
	Reached        map[int64]int
	MaxDepth       int
	Saturated      bool
	MaxSensitivity boundaries.SensitivityClass
}

// Analyzer runs reachability over the in-memory graph, falling back to
// the recursive-CTE engine when the graph is too large or absent.
type Analyzer struct {
	graph         *callgraph.Graph
	store         *storage.Store
	edgeThreshold int

	// sensitivity maps functions to the highest class of data they touch.
	sensitivity map[int64]boundaries.SensitivityClass

	mu         sync.Mutex
	cache      map[cacheKey]*list.Element
	order      *list.List
	generation uint64
}

type cacheKey struct {
	root     int64
	dir      callgraph.Direction
	maxDepth int
}

type cacheEntry struct {
	key        cacheKey
	generation uint64
	result     *Result
}

const cacheCapacity = 256

// NewAnalyzer creates a reachability analyzer. store may be nil when no
// durable fallback is wanted (tests); graph may be nil to force the CTE
// path.
func NewAnalyzer(graph *callgraph.Graph, store *storage.Store, edgeThreshold int) *Analyzer {
	if edgeThreshold <= 0 {
		edgeThreshold = 250000
	}
	return &Analyzer{
		graph:         graph,
		store:         store,
		edgeThreshold: edgeThreshold,
		sensitivity:   map[int64]boundaries.SensitivityClass{},
		cache:         map[cacheKey]*list.Element{},
		order:         list.New(),
	}
}

// SetSensitivity installs the function → max-sensitivity map derived
// from the boundary analyzer.
func (a *Analyzer) SetSensitivity(m map[int64]boundaries.SensitivityClass) {
	a.mu.Lock()
	a.sensitivity = m
	a.generation++
	a.mu.Unlock()
}

// Invalidate drops cached results after any call-graph mutation.
func (a *Analyzer) Invalidate() {
	a.mu.Lock()
	a.generation++
	a.mu.Unlock()
}

// Query walks from roots in the given direction. Single-root queries
// hit the LRU cache.
func (a *Analyzer) Query(roots []int64, dir callgraph.Direction, maxDepth int, tok *cancel.Token) (*Result, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var key cacheKey
	cacheable := len(roots) == 1
	if cacheable {
		key = cacheKey{root: roots[0], dir: dir, maxDepth: maxDepth}
		if res := a.cacheGet(key); res != nil {
			return res, nil
		}
	}

	var raw *callgraph.ReachResult
	var err error
	if a.useCTE() {
		raw, err = callgraph.CTEReach(a.store, roots, dir, maxDepth)
		if err != nil {
			return nil, err
		}
	} else {
		raw = a.graph.BFS(roots, dir, maxDepth, tok)
	}

	res := &Result{
		Reached:   raw.Reached,
		MaxDepth:  raw.MaxDepthHit,
		Saturated: raw.Saturated,
	}
	a.mu.Lock()
	for id := range raw.Reached {
		if class, ok := a.sensitivity[id]; ok {
			res.MaxSensitivity = boundaries.MaxClass(res.MaxSensitivity, class)
		}
	}
	a.mu.Unlock()

	if cacheable {
		a.cachePut(key, res)
	}
	return res, nil
}

func (a *Analyzer) useCTE() bool {
	if a.graph == nil {
		return a.store != nil
	}
	return a.store != nil && a.graph.EdgeCount() > a.edgeThreshold
}

func (a *Analyzer) cacheGet(key cacheKey) *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	el, ok := a.cache[key]
	if !ok {
		return nil
	}
	entry := el.Value.(*cacheEntry)
	if entry.generation != a.generation {
		a.order.Remove(el)
		delete(a.cache, key)
		return nil
	}
	a.order.MoveToFront(el)
	return entry.result
}

func (a *Analyzer) cachePut(key cacheKey, res *Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if el, ok := a.cache[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = res
		entry.generation = a.generation
		a.order.MoveToFront(el)
		return
	}
	el := a.order.PushFront(&cacheEntry{key: key, generation: a.generation, result: res})
	a.cache[key] = el
	for a.order.Len() > cacheCapacity {
		oldest := a.order.Back()
		if oldest == nil {
			break
		}
		a.order.Remove(oldest)
		delete(a.cache, oldest.Value.(*cacheEntry).key)
	}
}

// BuildSensitivityMap folds boundary access points and classified fields
// into a function → max class map, locating the enclosing function of
// each access point by line range.
func BuildSensitivityMap(graph *callgraph.Graph, accessPoints []boundaries.Boundary,
	fields []boundaries.SensitiveField) map[int64]boundaries.SensitivityClass {

	classByTable := map[string]boundaries.SensitivityClass{}
	for _, f := range fields {
		if f.Table == "" {
			continue
		}
		if current, ok := classByTable[f.Table]; ok {
			classByTable[f.Table] = boundaries.MaxClass(current, f.Class)
		} else {
			classByTable[f.Table] = f.Class
		}
	}

	out := map[int64]boundaries.SensitivityClass{}
	for _, b := range accessPoints {
		class, ok := classByTable[b.Table]
		if !ok {
			continue
		}
		for _, id := range graph.NodesIn(b.File) {
			node, ok := graph.NodeByID(id)
			if !ok {
				continue
			}
			if b.Line >= node.StartLine && b.Line <= node.EndLine {
				if current, seen := out[id]; seen {
					out[id] = boundaries.MaxClass(current, class)
				} else {
					out[id] = class
				}
			}
		}
	}
	return out
}
