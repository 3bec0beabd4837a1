package machine

import (
	"fmt"
	"math/rand"
)

// LatencyModel describes how many cycles memory operations take.
type LatencyModel struct {
	HitLatency      uint64
	MissLatency     uint64
	CounterOverhead uint64

	// Jitter is the maximum number of cycles added to a load at random.
	Jitter uint64

	// SpuriousHitRate is the probability that a miss is observed with hit
	// timing, modeling prefetchers and interference.
	SpuriousHitRate float64
}

// DefaultLatencyModel returns a model whose hits and misses are separated by
// a threshold of 37 cycles.
func DefaultLatencyModel() LatencyModel {
	return LatencyModel{
		HitLatency:      24,
		MissLatency:     60,
		CounterOverhead: 6,
		Jitter:          4,
	}
}

// Validate checks that hits are faster than misses.
func (m LatencyModel) Validate() error {
	if m.HitLatency == 0 {
		return fmt.Errorf("hit latency must be positive")
	}

	if m.MissLatency <= m.HitLatency {
		return fmt.Errorf("miss latency %d must exceed hit latency %d",
			m.MissLatency, m.HitLatency)
	}

	if m.SpuriousHitRate < 0 || m.SpuriousHitRate >= 1 {
		return fmt.Errorf("spurious hit rate %v is outside [0, 1)",
			m.SpuriousHitRate)
	}

	return nil
}

func (m LatencyModel) loadLatency(hit bool, rng *rand.Rand) uint64 {
	latency := m.MissLatency
	if hit || (m.SpuriousHitRate > 0 && rng.Float64() < m.SpuriousHitRate) {
		latency = m.HitLatency
	}

	if m.Jitter > 0 {
		latency += uint64(rng.Int63n(int64(m.Jitter) + 1))
	}

	return latency
}
