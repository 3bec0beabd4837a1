package machine

import (
	"math/rand"

	"github.com/sarchlab/cacheleak/gadget"
	"github.com/sarchlab/cacheleak/memory"
)

// DefaultTrainTimes is the number of calls per round of a branch gadget,
// the last of which is the attack.
const DefaultTrainTimes = 24

const branchPC = 0x400

// A BranchGadget is a bounds-checked array access,
//
//	if idx < len(guide) { _ = probe[guide[idx]*stride] }
//
// whose length lives in memory. The length is evicted once per round, before
// the training calls, so that the first check of the round resolves late.
// Training calls use in-bounds indices so the predictor expects the check to
// pass.
type BranchGadget struct {
	core       *SpeculativeCore
	delay      gadget.Delay
	evictor    Evictor
	guide      memory.Region
	probe      memory.Region
	stride     uint64
	boundAddr  uint64
	trainTimes int
	rng        *rand.Rand
}

// An Evictor removes a range of addresses from the cache with ordinary
// loads.
type Evictor interface {
	Evict(target, size uint64)
}

// NewBranchGadget creates a bounds-check-bypass gadget over the candidate
// array guide and the probe array. The array length is stored in a region
// of its own and is pushed out of the cache by evictor. The core provides
// the delay.
func NewBranchGadget(
	core *SpeculativeCore,
	evictor Evictor,
	guide, probe memory.Region,
	stride uint64,
) *BranchGadget {
	bound := core.m.Allocate("guide-size", 8, 8)

	return &BranchGadget{
		core:       core,
		delay:      core,
		evictor:    evictor,
		guide:      guide,
		probe:      probe,
		stride:     stride,
		boundAddr:  bound.Base,
		trainTimes: DefaultTrainTimes,
		rng:        rand.New(rand.NewSource(int64(guide.Base))),
	}
}

// WithTrainTimes sets how many calls make up a round. It must be at least 1.
func (g *BranchGadget) WithTrainTimes(n int) *BranchGadget {
	if n < 1 {
		n = 1
	}

	g.trainTimes = n

	return g
}

// WithDelay replaces the delay that widens the speculation window.
func (g *BranchGadget) WithDelay(d gadget.Delay) *BranchGadget {
	g.delay = d
	return g
}

// BoundAddr returns the address of the array length.
func (g *BranchGadget) BoundAddr() uint64 {
	return g.boundAddr
}

// Train evicts the array length and runs the in-bounds calls of a round.
func (g *BranchGadget) Train() {
	g.evictor.Evict(g.boundAddr, 8)

	for j := g.trainTimes - 1; j > 0; j-- {
		g.call(uint64(g.rng.Int63n(int64(g.guide.Size))))
	}
}

// AttemptLeak runs the out-of-bounds call of a round.
func (g *BranchGadget) AttemptLeak(candidateIndex uint64) {
	g.call(candidateIndex)
}

// Decoy returns the value training calls read from the candidate array.
func (g *BranchGadget) Decoy() (byte, bool) {
	return g.core.m.peek(g.guide.Base), true
}

func (g *BranchGadget) call(idx uint64) {
	m := g.core.m

	start := m.Now()
	m.access(g.boundAddr)
	g.delay.CalibratedDelay()
	window := m.Now() - start

	inBounds := idx < g.guide.Size
	predicted := g.core.branches.Predict(branchPC)

	switch {
	case inBounds:
		v := m.Load(g.guide.At(idx))
		m.Load(g.probe.Base + uint64(v)*g.stride)
	case predicted:
		g.core.speculate(window, g.guide.Base+idx, g.probe, g.stride)
	}

	g.core.branches.Update(branchPC, inBounds)
}
