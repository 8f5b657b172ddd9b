// Package nodecache provides the shared bounded cache of materialized nodes.
// Entries are keyed by content hash and shared across documents; eviction is
// strict least-recently-used.
package nodecache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/nritschel/merkledoc/pkg/types"
)

// DefaultCapacity is sized for the tens-of-thousands range of nodes a busy
// vault produces.
const DefaultCapacity = 50_000

// NodeCache maps a node hash to its materialized node. It is purely an
// optimization: a miss always falls back to recomputation, and the cache is
// never consulted to decide which hash a node has.
type NodeCache struct {
	mu       sync.RWMutex
	capacity int
	items    map[types.Hash]*list.Element
	order    *list.List // front = most recent

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry struct {
	hash types.Hash
	node *types.Node
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
}

func New(capacity int) *NodeCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &NodeCache{
		capacity: capacity,
		items:    make(map[types.Hash]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached node for a hash and refreshes its recency.
func (c *NodeCache) Get(h types.Hash) (*types.Node, bool) {
	c.mu.RLock()
	elem, ok := c.items[h]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.mu.Lock()
	// Re-check under the write lock; the entry may have been evicted between
	// the two lock acquisitions.
	if elem, ok = c.items[h]; !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(elem)
	n := elem.Value.(*entry).node
	c.mu.Unlock()

	c.hits.Add(1)
	return n, true
}

// Add stores a node under its hash and returns the node the cache now holds.
// When two builders race on the same hash the first writer wins; both callers
// receive the same, fully constructed node. Nodes must be immutable once
// added.
func (c *NodeCache) Add(h types.Hash, n *types.Node) *types.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[h]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*entry).node
	}

	elem := c.order.PushFront(&entry{hash: h, node: n})
	c.items[h] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).hash)
		c.evictions.Add(1)
	}
	return n
}

func (c *NodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

func (c *NodeCache) Capacity() int {
	return c.capacity
}

// Purge drops all entries. Counters are kept.
func (c *NodeCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[types.Hash]*list.Element, c.capacity)
	c.order.Init()
}

func (c *NodeCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.Len(),
	}
}
