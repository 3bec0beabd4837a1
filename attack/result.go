package attack

import (
	"github.com/sarchlab/cacheleak/aggregate"
)

// A ByteResult is the outcome of attacking one secret offset.
type ByteResult struct {
	Offset   int
	Address  uint64
	Value    byte
	Hits     uint64
	RunnerUp aggregate.Candidate
	Verdict  aggregate.Verdict
	Rounds   int
}

// Inconclusive tells whether no round leaked anything for this offset. The
// value is then the sentinel 0, not a recovered byte.
func (b ByteResult) Inconclusive() bool {
	return b.Verdict == aggregate.Inconclusive
}

// Result is the recovered secret, one entry per attacked offset.
type Result struct {
	Bytes []ByteResult
}

// Secret returns the recovered bytes in offset order.
func (r Result) Secret() []byte {
	secret := make([]byte, len(r.Bytes))
	for i, b := range r.Bytes {
		secret[i] = b.Value
	}

	return secret
}

// Inconclusive returns the offsets for which nothing leaked.
func (r Result) Inconclusive() []int {
	var offsets []int

	for _, b := range r.Bytes {
		if b.Inconclusive() {
			offsets = append(offsets, b.Offset)
		}
	}

	return offsets
}

// Accuracy returns the fraction of bytes that match expected.
func (r Result) Accuracy(expected []byte) float64 {
	if len(r.Bytes) == 0 {
		return 0
	}

	correct := 0
	for i, b := range r.Bytes {
		if i < len(expected) && expected[i] == b.Value {
			correct++
		}
	}

	return float64(correct) / float64(len(r.Bytes))
}

// A ResultSink receives results as the attack produces them.
type ResultSink interface {
	ReportByte(b ByteResult)
	ReportDone(r Result)
}
