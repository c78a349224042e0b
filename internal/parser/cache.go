package parser

import (
	"container/list"
	"sync"
)

// memCache is the in-memory tier of the parse cache: a doorkeeper
// admission filter in front of an LRU. A result is only admitted on its
// second sighting, so one-shot files cannot evict the working set.
type memCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List
	seenOnce map[cacheKey]bool
}

type cacheKey struct {
	language    string
	contentHash uint64
}

type cacheEntry struct {
	key    cacheKey
	result *ParseResult
}

func newMemCache(capacity int) *memCache {
	if capacity <= 0 {
		capacity = 2048
	}
	return &memCache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
		seenOnce: make(map[cacheKey]bool),
	}
}

func (c *memCache) get(key cacheKey) (*ParseResult, bool) {
	c.mu.RLock()
	el, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	c.order.MoveToFront(el)
	c.mu.Unlock()
	return el.Value.(*cacheEntry).result, true
}

func (c *memCache) put(key cacheKey, result *ParseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = result
		c.order.MoveToFront(el)
		return
	}

	if !c.seenOnce[key] {
		// Doorkeeper: remember the key, admit next time.
		if len(c.seenOnce) > c.capacity*4 {
			c.seenOnce = make(map[cacheKey]bool)
		}
		c.seenOnce[key] = true
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, result: result})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
