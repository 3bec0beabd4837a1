// Package oracle tells cached from uncached probe slots by timing loads.
package oracle

import (
	"log"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/memory"
)

// A CycleCounter reads the architecture cycle counter.
type CycleCounter interface {
	ReadCycles() uint64
}

// An Oracle times loads from the probe array.
//
// Nothing else may run between the two counter reads of a measurement:
// the threshold is calibrated against exactly one load.
type Oracle struct {
	counter   CycleCounter
	loader    memory.Loader
	probe     memory.Region
	stride    uint64
	threshold uint64

	excluded    int
	hasExcluded bool
	sampled     uint64
	junk        byte
}

// New creates an oracle over a probe array with one slot every stride bytes.
func New(
	counter CycleCounter,
	loader memory.Loader,
	probe memory.Region,
	stride uint64,
	threshold uint64,
) *Oracle {
	if stride == 0 {
		log.Panic("probe stride cannot be 0")
	}

	return &Oracle{
		counter:   counter,
		loader:    loader,
		probe:     probe,
		stride:    stride,
		threshold: threshold,
	}
}

// Threshold returns the latency under which a load is a hit.
func (o *Oracle) Threshold() uint64 {
	return o.threshold
}

// SlotAddr returns the address of candidate v's probe slot.
func (o *Oracle) SlotAddr(v uint64) uint64 {
	return o.probe.Base + v*o.stride
}

// Exclude stops hits on candidate v from being counted.
func (o *Oracle) Exclude(v int) {
	o.excluded = v
	o.hasExcluded = true
}

// ClearExclusion counts every candidate again.
func (o *Oracle) ClearExclusion() {
	o.hasExcluded = false
}

// Measure returns the latency of one load from candidate v's slot.
func (o *Oracle) Measure(v uint64) uint64 {
	addr := o.SlotAddr(v)

	start := o.counter.ReadCycles()
	o.junk &= o.loader.Load(addr)
	end := o.counter.ReadCycles()

	return end - start
}

// IsHit tells whether a latency counts as a cache hit.
func (o *Oracle) IsHit(latency uint64) bool {
	return latency < o.threshold
}

// SampleAll probes every candidate in mixer order and adds one to the table
// entry of each candidate that hit.
func (o *Oracle) SampleAll(mixer Mixer, table *aggregate.HitTable) {
	n := min(mixer.N, uint64(table.Len()))

	for i := uint64(0); i < mixer.N; i++ {
		v := mixer.At(i)
		if v >= n {
			continue
		}

		latency := o.Measure(v)
		o.sampled++

		if !o.IsHit(latency) {
			continue
		}

		if o.hasExcluded && int(v) == o.excluded {
			continue
		}

		table.Increment(int(v))
	}
}

// Sampled returns how many probe loads have been timed.
func (o *Oracle) Sampled() uint64 {
	return o.sampled
}

// Junk returns the accumulated value of the probe loads.
func (o *Oracle) Junk() byte {
	return o.junk
}
