// Package eviction removes address ranges from a set-associative cache using
// nothing but ordinary loads.
package eviction

import (
	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/memory"
)

// An Engine evicts target ranges by loading congruent addresses from a
// dedicated buffer until every way of the target sets has been replaced.
//
// The guarantee holds under LRU-like replacement. Under nondeterministic
// policies, extended sweeps trade time for confidence. Ranges inside the
// buffer itself cannot be evicted this way.
type Engine struct {
	params      geometry.Params
	masks       geometry.AddressMasks
	loader      memory.Loader
	buffer      memory.Region
	alignedBase uint64
	sweeps      uint64

	junk byte
}

// Buffer returns the eviction buffer.
func (e *Engine) Buffer() memory.Region {
	return e.buffer
}

// AlignedBase returns the tag-aligned address inside the buffer from which
// congruent addresses are derived.
func (e *Engine) AlignedBase() uint64 {
	return e.alignedBase
}

// BlocksToClear returns the number of consecutive sets a range of size bytes
// occupies, capped at the number of sets.
func (e *Engine) BlocksToClear(size uint64) uint64 {
	blocks := size >> e.params.BlockBits()
	if size&e.masks.Offset != 0 {
		blocks++
	}

	return min(blocks, e.params.SetCount)
}

// LoadsPerSet returns the number of loads issued into every cleared set.
func (e *Engine) LoadsPerSet() uint64 {
	return uint64(e.params.WaysPerSet) * e.sweeps
}

// Plan lists, in issue order, the addresses Evict loads for the range.
func (e *Engine) Plan(target, size uint64) []uint64 {
	blocks := e.BlocksToClear(size)
	plan := make([]uint64, 0, blocks*e.LoadsPerSet())

	e.forEachAddress(target, blocks, func(addr uint64) {
		plan = append(plan, addr)
	})

	return plan
}

// Evict replaces every line that may hold bytes of [target, target+size).
func (e *Engine) Evict(target, size uint64) {
	blocks := e.BlocksToClear(size)

	e.forEachAddress(target, blocks, func(addr uint64) {
		e.junk ^= e.loader.Load(addr)
	})
}

// Junk returns the accumulated value of the evicting loads.
func (e *Engine) Junk() byte {
	return e.junk
}

func (e *Engine) forEachAddress(
	target, blocks uint64,
	visit func(addr uint64),
) {
	firstSet := e.params.SetIndexOf(target)
	setMask := e.params.SetCount - 1
	blockBits := e.params.BlockBits()
	wayStride := e.params.WayStride()
	loadsPerSet := e.LoadsPerSet()

	for i := uint64(0); i < blocks; i++ {
		setOffset := ((firstSet + i) & setMask) << blockBits

		for j := uint64(0); j < loadsPerSet; j++ {
			visit(e.alignedBase + setOffset + j*wayStride)
		}
	}
}
