package attack

import (
	"github.com/sarchlab/cacheleak/eviction"
	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/memory"
)

// A Layout is the set of regions an attack owns for its whole life.
type Layout struct {
	// Guide is the candidate array. Entry v sends the gadget to probe slot v.
	Guide memory.Region

	// Probe holds one slot per candidate, Stride bytes apart.
	Probe memory.Region

	// EvictionBuffer backs the eviction engine.
	EvictionBuffer memory.Region

	Stride uint64
}

// NewLayout allocates the regions of an attack and writes the sentinel into
// every candidate entry.
func NewLayout(
	alloc memory.Allocator,
	storer memory.Storer,
	params geometry.Params,
	cfg Config,
) Layout {
	stride := cfg.Stride
	if stride == 0 {
		stride = params.BlockBytes
	}

	n := uint64(cfg.Candidates)

	l := Layout{
		Stride: stride,
		Guide:  alloc.Allocate("guide", n, params.BlockBytes),
		Probe:  alloc.Allocate("probe", n*stride, params.BlockBytes),
		EvictionBuffer: eviction.AllocateBuffer(
			alloc, params, cfg.Multiplier),
	}

	for i := uint64(0); i < l.Guide.Size; i++ {
		storer.Store(l.Guide.At(i), cfg.Sentinel)
	}

	return l
}

// SlotAddr returns the probe slot of candidate v.
func (l Layout) SlotAddr(v uint64) uint64 {
	return l.Probe.Base + v*l.Stride
}

// Regions lists the regions of the layout.
func (l Layout) Regions() []memory.Region {
	return []memory.Region{l.Guide, l.Probe, l.EvictionBuffer}
}

// Evictor builds an eviction engine over the layout's eviction buffer.
func (l Layout) Evictor(
	loader memory.Loader,
	params geometry.Params,
	cfg Config,
) *eviction.Engine {
	return eviction.MakeBuilder().
		WithParams(params).
		WithLoader(loader).
		WithBuffer(l.EvictionBuffer).
		WithMultiplier(cfg.Multiplier).
		WithExtendedSweep(cfg.ExtendedSweep).
		Build()
}
