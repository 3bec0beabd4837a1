package machine

import (
	"encoding/binary"
	"log"

	"github.com/sarchlab/cacheleak/gadget"
	"github.com/sarchlab/cacheleak/memory"
)

const bypassPC = 0x800

const slotBytes = 8

// A StoreBypassGadget overwrites a slot holding the attacker index through
// a pointer whose address resolves late, then reads the slot back:
//
//	slot = idx
//	*late(&slot) = 0
//	_ = probe[guide[slot]*stride]
//
// A load predicted independent of the store reads the stale index.
type StoreBypassGadget struct {
	core   *SpeculativeCore
	delay  gadget.Delay
	guide  memory.Region
	probe  memory.Region
	stride uint64
	slot   uint64
}

// NewStoreBypassGadget creates a store-bypass gadget over the candidate
// array guide and the probe array. The core provides the delay.
func NewStoreBypassGadget(
	core *SpeculativeCore,
	guide, probe memory.Region,
	stride uint64,
) *StoreBypassGadget {
	slot := core.m.Allocate("bypass-slot", slotBytes, slotBytes)

	return &StoreBypassGadget{
		core:   core,
		delay:  core,
		guide:  guide,
		probe:  probe,
		stride: stride,
		slot:   slot.Base,
	}
}

// WithDelay replaces the delay that stands in for the late store address.
func (g *StoreBypassGadget) WithDelay(d gadget.Delay) *StoreBypassGadget {
	g.delay = d
	return g
}

// AttemptLeak runs the gadget once with the given index.
func (g *StoreBypassGadget) AttemptLeak(candidateIndex uint64) {
	m := g.core.m

	g.storeIndex(candidateIndex)

	start := m.Now()
	g.delay.CalibratedDelay()
	window := m.Now() - start

	if !g.core.deps.PredictDependent(bypassPC) {
		stale := g.peekIndex()
		g.core.speculate(window, g.guide.At(stale), g.probe, g.stride)
		g.core.deps.Violation(bypassPC)
	}

	g.storeIndex(0)
	idx := g.loadIndex()
	v := m.Load(g.guide.At(idx))
	m.Load(g.probe.Base + uint64(v)*g.stride)
}

// Decoy returns the value the architectural path reads from the candidate
// array.
func (g *StoreBypassGadget) Decoy() (byte, bool) {
	return g.core.m.peek(g.guide.Base), true
}

func (g *StoreBypassGadget) storeIndex(idx uint64) {
	var buf [slotBytes]byte
	binary.LittleEndian.PutUint64(buf[:], idx)

	for i, b := range buf {
		g.core.m.Store(g.slot+uint64(i), b)
	}
}

func (g *StoreBypassGadget) loadIndex() uint64 {
	var buf [slotBytes]byte
	for i := range buf {
		buf[i] = g.core.m.Load(g.slot + uint64(i))
	}

	return binary.LittleEndian.Uint64(buf[:])
}

func (g *StoreBypassGadget) peekIndex() uint64 {
	data, err := g.core.m.storage.Read(g.slot, slotBytes)
	if err != nil {
		log.Panic(err)
	}

	return binary.LittleEndian.Uint64(data)
}
