package oracle

import "log"

// A Mixer visits 0..N-1 in the order i -> (i*A + B) mod N.
//
// With N a power of two and A odd the map is a bijection. A larger than 64
// keeps consecutive visits far apart so stride prefetchers do not kick in.
type Mixer struct {
	A, B, N uint64
}

// DefaultMixer is the order used when none is configured.
var DefaultMixer = Mixer{A: 65, B: 1, N: 256}

// NewMixer creates a mixer and panics if it is not a usable permutation.
func NewMixer(a, b, n uint64) Mixer {
	m := Mixer{A: a, B: b, N: n}
	m.mustBeValid()

	return m
}

func (m Mixer) mustBeValid() {
	if m.N == 0 || m.N&(m.N-1) != 0 {
		log.Panicf("mixer domain %d is not a power of two", m.N)
	}

	if m.A%2 == 0 || m.A <= 64 {
		log.Panicf("mixer multiplier %d must be odd and larger than 64", m.A)
	}

	if m.B == 0 {
		log.Panic("mixer offset must be larger than 0")
	}
}

// At returns the i-th visited value.
func (m Mixer) At(i uint64) uint64 {
	return (i*m.A + m.B) & (m.N - 1)
}

// Order returns the full visiting order.
func (m Mixer) Order() []uint64 {
	order := make([]uint64, m.N)
	for i := range order {
		order[i] = m.At(uint64(i))
	}

	return order
}
