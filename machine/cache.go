package machine

import (
	"github.com/sarchlab/cacheleak/geometry"
)

// CacheStats counts the accesses a cache has served.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// LineState is the observable state of one cache way.
type LineState struct {
	Tag   uint64
	Valid bool
}

// A Cache is a set-associative tag array. It tracks which blocks are
// resident; data lives in the backing storage.
type Cache struct {
	params       geometry.Params
	tags         *tagArray
	victimFinder VictimFinder
	stats        CacheStats
}

// NewCache creates an empty cache with the given geometry and replacement
// policy.
func NewCache(params geometry.Params, vf VictimFinder) *Cache {
	return &Cache{
		params:       params,
		tags:         newTagArray(int(params.SetCount), params.WaysPerSet, params.BlockBytes),
		victimFinder: vf,
	}
}

// Params returns the geometry of the cache.
func (c *Cache) Params() geometry.Params {
	return c.params
}

// Access touches the block holding addr, filling it on a miss. It returns
// true on a hit.
func (c *Cache) Access(addr uint64) bool {
	set, _ := c.tags.getSet(addr)

	block, found := c.tags.lookup(addr)
	if found {
		c.stats.Hits++
		c.victimFinder.OnHit(set, block.WayID)
		c.tags.visit(block)

		return true
	}

	c.stats.Misses++

	victim := c.victimFinder.FindVictim(set)
	if victim.IsValid {
		c.stats.Evictions++
	}

	victim = set.Blocks[victim.WayID]
	victim.Tag = c.tags.blockAddr(addr)
	victim.IsValid = true
	c.tags.update(victim)
	c.victimFinder.OnFill(set, victim.WayID)
	c.tags.visit(victim)

	return false
}

// Contains tells whether the block holding addr is resident, without
// touching replacement state.
func (c *Cache) Contains(addr uint64) bool {
	_, found := c.tags.lookup(addr)
	return found
}

// Flush invalidates every block.
func (c *Cache) Flush() {
	c.tags.reset()
}

// Stats returns the access counters.
func (c *Cache) Stats() CacheStats {
	return c.stats
}

// Snapshot returns, per set, the resident lines ordered from least to most
// recently used.
func (c *Cache) Snapshot() [][]LineState {
	snapshot := make([][]LineState, len(c.tags.sets))

	for i, set := range c.tags.sets {
		lines := make([]LineState, 0, len(set.Blocks))
		for _, w := range set.LRUQueue {
			b := set.Blocks[w]
			lines = append(lines, LineState{Tag: b.Tag, Valid: b.IsValid})
		}

		snapshot[i] = lines
	}

	return snapshot
}

// Invalidate drops the block holding addr, if resident.
func (c *Cache) Invalidate(addr uint64) {
	block, found := c.tags.lookup(addr)
	if !found {
		return
	}

	block.IsValid = false
	c.tags.update(block)
}
