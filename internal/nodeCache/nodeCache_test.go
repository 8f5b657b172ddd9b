package nodecache_test

import (
	"sync"
	"testing"

	nodecache "github.com/nritschel/merkledoc/internal/nodeCache"
	"github.com/nritschel/merkledoc/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func leafNode() *types.Node {
	return &types.Node{Kind: types.KindLeaf, LeafCount: 1}
}

func TestNodeCache_GetMissThenHit(t *testing.T) {
	c := nodecache.New(10)

	_, ok := c.Get(hashOf(1))
	assert.False(t, ok)

	n := leafNode()
	c.Add(hashOf(1), n)

	got, ok := c.Get(hashOf(1))
	require.True(t, ok)
	assert.Same(t, n, got)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestNodeCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := nodecache.New(2)
	c.Add(hashOf(1), leafNode())
	c.Add(hashOf(2), leafNode())

	// Touch 1 so 2 becomes the eviction candidate.
	_, ok := c.Get(hashOf(1))
	require.True(t, ok)

	c.Add(hashOf(3), leafNode())

	_, ok = c.Get(hashOf(2))
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(hashOf(1))
	assert.True(t, ok)
	_, ok = c.Get(hashOf(3))
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestNodeCache_AddSameKeyKeepsFirstWriter(t *testing.T) {
	c := nodecache.New(10)
	first := leafNode()
	second := leafNode()

	got := c.Add(hashOf(1), first)
	assert.Same(t, first, got)

	got = c.Add(hashOf(1), second)
	assert.Same(t, first, got, "racing insert of the same key must converge on one node")
}

func TestNodeCache_ConcurrentSameKeyInsert(t *testing.T) {
	c := nodecache.New(100)
	h := hashOf(7)

	results := make([]*types.Node, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Add(h, &types.Node{
				Kind:      types.KindInternal,
				Children:  []types.Hash{hashOf(1), hashOf(2)},
				LeafCount: 2,
			})
		}(i)
	}
	wg.Wait()

	cached, ok := c.Get(h)
	require.True(t, ok)
	for i, r := range results {
		assert.Same(t, cached, r, "caller %d observed a different node", i)
	}
	assert.Len(t, cached.Children, 2)
	assert.Equal(t, 2, cached.LeafCount)
}

func TestNodeCache_Purge(t *testing.T) {
	c := nodecache.New(10)
	c.Add(hashOf(1), leafNode())
	c.Add(hashOf(2), leafNode())
	require.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(hashOf(1))
	assert.False(t, ok)
}

func TestNodeCache_DefaultCapacity(t *testing.T) {
	c := nodecache.New(0)
	assert.Equal(t, nodecache.DefaultCapacity, c.Capacity())
}
