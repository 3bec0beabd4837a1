package eviction

import (
	"log"

	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/memory"
)

// DefaultMultiplier is the smallest buffer multiplier that guarantees a
// tag-aligned cache-sized window inside the buffer.
const DefaultMultiplier = 2

// Builder can build eviction engines.
type Builder struct {
	params        geometry.Params
	loader        memory.Loader
	buffer        memory.Region
	multiplier    uint64
	extendedSweep bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		multiplier: DefaultMultiplier,
	}
}

// WithParams sets the geometry of the cache to evict from.
func (b Builder) WithParams(params geometry.Params) Builder {
	b.params = params
	return b
}

// WithLoader sets the loader that issues the evicting loads.
func (b Builder) WithLoader(loader memory.Loader) Builder {
	b.loader = loader
	return b
}

// WithBuffer sets the eviction buffer.
func (b Builder) WithBuffer(buffer memory.Region) Builder {
	b.buffer = buffer
	return b
}

// WithMultiplier sets how many cache capacities the buffer spans.
func (b Builder) WithMultiplier(multiplier uint64) Builder {
	b.multiplier = multiplier
	return b
}

// WithExtendedSweep makes every set be swept (multiplier-1) times over all
// of its ways instead of once.
func (b Builder) WithExtendedSweep(extended bool) Builder {
	b.extendedSweep = extended
	return b
}

// Build creates the engine.
func (b Builder) Build() *Engine {
	b.mustBeValid()

	e := &Engine{
		params: b.params,
		masks:  b.params.Masks(),
		loader: b.loader,
		buffer: b.buffer,
		sweeps: 1,
	}

	if b.extendedSweep {
		e.sweeps = b.multiplier - 1
	}

	e.alignedBase = (b.buffer.Base + b.params.CapacityBytes()) & e.masks.Tag

	return e
}

func (b Builder) mustBeValid() {
	if b.loader == nil {
		log.Panic("eviction engine requires a loader")
	}

	if b.multiplier < 2 {
		log.Panicf("multiplier %d is smaller than 2", b.multiplier)
	}

	if b.buffer.Size < b.multiplier*b.params.CapacityBytes() {
		log.Panicf("eviction buffer of %d bytes is smaller than %d x %d",
			b.buffer.Size, b.multiplier, b.params.CapacityBytes())
	}
}

// BufferSize returns the buffer size needed for the params and multiplier.
func BufferSize(params geometry.Params, multiplier uint64) uint64 {
	return multiplier * params.CapacityBytes()
}

// AllocateBuffer reserves an eviction buffer from the allocator. The buffer
// is written with non-zero bytes by the allocator so that every page of it is
// resident.
func AllocateBuffer(
	alloc memory.Allocator,
	params geometry.Params,
	multiplier uint64,
) memory.Region {
	return alloc.Allocate("eviction-buffer",
		BufferSize(params, multiplier), params.BlockBytes)
}
