package aggregate

import (
	"fmt"
	"log"
)

// A Candidate is a ranked candidate value with its hit count.
type Candidate struct {
	Value byte
	Count uint64
}

// TopK returns the k best candidates, best first. k must be 1 or 2.
//
// The scan uses strict comparisons, so on equal counts the lower value keeps
// the higher rank. Ranks that no counter beats stay at value 0 with count 0,
// which callers read as "no signal".
func TopK(t *HitTable, k int) []Candidate {
	if k < 1 || k > 2 {
		log.Panicf("top-%d is not supported", k)
	}

	ranked := make([]Candidate, 2)

	for i, c := range t.counts {
		switch {
		case c > ranked[0].Count:
			ranked[1] = ranked[0]
			ranked[0] = Candidate{Value: byte(i), Count: c}
		case c > ranked[1].Count:
			ranked[1] = Candidate{Value: byte(i), Count: c}
		}
	}

	return ranked[:k]
}

// A Verdict qualifies how much a recovered byte can be trusted.
type Verdict int

// Verdicts, from no information to a clear winner.
const (
	Inconclusive Verdict = iota
	Unclear
	Clear
)

func (v Verdict) String() string {
	switch v {
	case Inconclusive:
		return "inconclusive"
	case Unclear:
		return "unclear"
	case Clear:
		return "clear"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// A MarginRule decides when the best candidate is clearly ahead of the
// runner-up: best >= Ratio*runnerUp + Slack.
type MarginRule struct {
	Ratio uint64
	Slack uint64
}

// DefaultMarginRule is the classic "twice the runner-up plus five" rule.
var DefaultMarginRule = MarginRule{Ratio: 2, Slack: 5}

// Judge classifies a best/runner-up pair.
func (r MarginRule) Judge(best, runnerUp Candidate) Verdict {
	if best.Count == 0 {
		return Inconclusive
	}

	if best.Count >= r.Ratio*runnerUp.Count+r.Slack {
		return Clear
	}

	// Two hits against none is clear even though it misses the margin.
	if best.Count == 2 && runnerUp.Count == 0 {
		return Clear
	}

	return Unclear
}
