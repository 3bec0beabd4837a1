// Package aggregate reduces per-round cache hit counts into a recovered byte.
package aggregate

import "log"

// NumCandidates is the size of the full byte-valued candidate set.
const NumCandidates = 256

// A HitTable counts, for each candidate value, how many rounds observed a
// cache hit on that candidate's probe slot.
type HitTable struct {
	counts []uint64
}

// NewHitTable creates a table for n candidates, n in [1, 256].
func NewHitTable(n int) *HitTable {
	if n < 1 || n > NumCandidates {
		log.Panicf("candidate count %d out of range", n)
	}

	return &HitTable{counts: make([]uint64, n)}
}

// Len returns the number of candidates.
func (t *HitTable) Len() int {
	return len(t.counts)
}

// Reset sets every counter back to zero.
func (t *HitTable) Reset() {
	clear(t.counts)
}

// Increment adds one hit to candidate v.
func (t *HitTable) Increment(v int) {
	t.counts[v]++
}

// Count returns the hits of candidate v.
func (t *HitTable) Count(v int) uint64 {
	return t.counts[v]
}

// Total returns the sum of all counters.
func (t *HitTable) Total() uint64 {
	var sum uint64
	for _, c := range t.counts {
		sum += c
	}

	return sum
}

// IsZero tells whether no candidate has been hit.
func (t *HitTable) IsZero() bool {
	for _, c := range t.counts {
		if c != 0 {
			return false
		}
	}

	return true
}

// Snapshot returns a copy of the counters.
func (t *HitTable) Snapshot() []uint64 {
	s := make([]uint64, len(t.counts))
	copy(s, t.counts)

	return s
}
