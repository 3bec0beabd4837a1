// Package machine provides a simulated target for the attack: a
// set-associative cache in front of sparse storage, a virtual cycle counter,
// and a speculative core whose gadgets leak through the cache.
package machine

import (
	"log"
	"math/rand"
	"time"

	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/memory"
)

const (
	pageSize     = uint64(4096)
	firstAddress = uint64(0x10000)
	fillByte     = byte(1)
)

// A Machine is a single-core simulated computer. It is not safe for
// concurrent use.
type Machine struct {
	params  geometry.Params
	cache   *Cache
	storage *memory.Storage
	latency LatencyModel
	freq    Freq
	rng     *rand.Rand

	now       uint64
	nextAddr  uint64
	regions   map[uint64]namedRegion
	protected []memory.Region
	faults    uint64
	loads     uint64
}

type namedRegion struct {
	name   string
	region memory.Region
}

// Params returns the cache geometry of the machine.
func (m *Machine) Params() geometry.Params {
	return m.params
}

// Cache returns the data cache.
func (m *Machine) Cache() *Cache {
	return m.cache
}

// Storage returns the backing storage.
func (m *Machine) Storage() *memory.Storage {
	return m.storage
}

// Latency returns the latency model.
func (m *Machine) Latency() LatencyModel {
	return m.latency
}

// Freq returns the clock frequency.
func (m *Machine) Freq() Freq {
	return m.freq
}

// Now returns the current cycle without the overhead of a counter read.
func (m *Machine) Now() uint64 {
	return m.now
}

// Elapsed returns the wall-clock time simulated so far.
func (m *Machine) Elapsed() time.Duration {
	return m.freq.Duration(m.now)
}

// Faults returns how many architectural accesses hit protected memory.
func (m *Machine) Faults() uint64 {
	return m.faults
}

// Loads returns how many architectural loads have been executed.
func (m *Machine) Loads() uint64 {
	return m.loads
}

// Allocate carves an aligned region out of the address space and fills it
// with non-zero bytes. Consecutive regions are separated by a guard page.
func (m *Machine) Allocate(name string, size, align uint64) memory.Region {
	if align == 0 {
		align = 1
	}

	base := roundUp(m.nextAddr, align)
	r := memory.Region{Base: base, Size: size}

	if r.End() > m.storage.Capacity() {
		log.Panicf("cannot allocate %d bytes for %s: out of memory", size, name)
	}

	err := m.storage.Fill(r, fillByte)
	if err != nil {
		log.Panic(err)
	}

	m.nextAddr = roundUp(r.End(), pageSize) + pageSize
	m.regions[base] = namedRegion{name: name, region: r}

	return r
}

// Release forgets a region. Its address range is not reused.
func (m *Machine) Release(r memory.Region) {
	delete(m.regions, r.Base)

	kept := m.protected[:0]
	for _, p := range m.protected {
		if p != r {
			kept = append(kept, p)
		}
	}

	m.protected = kept
}

// RegionName returns the name a region was allocated under.
func (m *Machine) RegionName(r memory.Region) (string, bool) {
	nr, ok := m.regions[r.Base]
	if !ok || nr.region != r {
		return "", false
	}

	return nr.name, true
}

// PlaceSecret allocates a region holding data that architectural loads are
// not allowed to read.
func (m *Machine) PlaceSecret(data []byte) memory.Region {
	r := m.Allocate("secret", uint64(len(data)), 1)

	err := m.storage.Write(r.Base, data)
	if err != nil {
		log.Panic(err)
	}

	m.protected = append(m.protected, r)

	return r
}

func (m *Machine) isProtected(addr uint64) bool {
	for _, r := range m.protected {
		if r.Contains(addr) {
			return true
		}
	}

	return false
}

// access runs an architectural access through the cache and advances the
// clock by its latency.
func (m *Machine) access(addr uint64) uint64 {
	hit := m.cache.Access(addr)
	latency := m.latency.loadLatency(hit, m.rng)
	m.now += latency

	return latency
}

// Load performs an architectural load. Loads from protected memory fault
// and return 0.
func (m *Machine) Load(addr uint64) byte {
	m.loads++
	m.access(addr)

	if m.isProtected(addr) {
		m.faults++
		return 0
	}

	return m.peek(addr)
}

// Store performs an architectural write-allocate store. Stores to protected
// memory fault and are dropped.
func (m *Machine) Store(addr uint64, value byte) {
	m.access(addr)

	if m.isProtected(addr) {
		m.faults++
		return
	}

	err := m.storage.Write(addr, []byte{value})
	if err != nil {
		log.Panic(err)
	}
}

// ReadCycles returns the cycle counter. Reading it costs CounterOverhead
// cycles.
func (m *Machine) ReadCycles() uint64 {
	v := m.now
	m.now += m.latency.CounterOverhead

	return v
}

// Spin advances the clock without touching memory.
func (m *Machine) Spin(cycles uint64) {
	m.now += cycles
}

// expectedLatency is the latency an access to addr would have now, without
// jitter.
func (m *Machine) expectedLatency(addr uint64) uint64 {
	if m.cache.Contains(addr) {
		return m.latency.HitLatency
	}

	return m.latency.MissLatency
}

// transientLoad reads a byte in the shadow of a misprediction. It fills the
// cache but is invisible to the clock and ignores protection.
func (m *Machine) transientLoad(addr uint64) byte {
	m.cache.Access(addr)

	data, err := m.storage.Read(addr, 1)
	if err != nil {
		return 0
	}

	return data[0]
}

func (m *Machine) peek(addr uint64) byte {
	data, err := m.storage.Read(addr, 1)
	if err != nil {
		log.Panic(err)
	}

	return data[0]
}

func roundUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
