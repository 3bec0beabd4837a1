package machine

import (
	"fmt"
	"math/rand"
)

// A VictimFinder decides which block of a set is replaced on a miss.
type VictimFinder interface {
	FindVictim(set *Set) Block
	OnFill(set *Set, wayID int)
	OnHit(set *Set, wayID int)
}

// LRUVictimFinder evicts the least recently used block.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed LRU evictor.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns an invalid block if any, otherwise the least recently
// used one.
func (e *LRUVictimFinder) FindVictim(set *Set) Block {
	for _, w := range set.LRUQueue {
		if !set.Blocks[w].IsValid {
			return set.Blocks[w]
		}
	}

	return set.Blocks[set.LRUQueue[0]]
}

// OnFill does nothing; recency is tracked by the tag array.
func (e *LRUVictimFinder) OnFill(*Set, int) {}

// OnHit does nothing; recency is tracked by the tag array.
func (e *LRUVictimFinder) OnHit(*Set, int) {}

const (
	rrpvMax    = uint8(3)
	insertRRPV = uint8(2)
	hitRRPV    = uint8(0)
)

// SRRIPVictimFinder implements static re-reference interval prediction with
// 2-bit re-reference prediction values.
type SRRIPVictimFinder struct{}

// NewSRRIPVictimFinder returns a newly constructed SRRIP evictor.
func NewSRRIPVictimFinder() *SRRIPVictimFinder {
	return &SRRIPVictimFinder{}
}

// FindVictim returns an invalid block if any, otherwise the lowest-way block
// predicted to be re-referenced furthest in the future, aging the set until
// one exists.
func (e *SRRIPVictimFinder) FindVictim(set *Set) Block {
	for _, b := range set.Blocks {
		if !b.IsValid {
			return b
		}
	}

	for {
		for _, b := range set.Blocks {
			if b.RRPV >= rrpvMax {
				return b
			}
		}

		for i := range set.Blocks {
			set.Blocks[i].RRPV++
		}
	}
}

// OnFill inserts the block with a long re-reference interval.
func (e *SRRIPVictimFinder) OnFill(set *Set, wayID int) {
	set.Blocks[wayID].RRPV = insertRRPV
}

// OnHit protects the block.
func (e *SRRIPVictimFinder) OnHit(set *Set, wayID int) {
	set.Blocks[wayID].RRPV = hitRRPV
}

// RandomVictimFinder evicts a pseudo-random block once the set is full.
type RandomVictimFinder struct {
	rng *rand.Rand
}

// NewRandomVictimFinder returns a random evictor with a fixed seed.
func NewRandomVictimFinder(seed int64) *RandomVictimFinder {
	return &RandomVictimFinder{rng: rand.New(rand.NewSource(seed))}
}

// FindVictim returns an invalid block if any, otherwise a random one.
func (e *RandomVictimFinder) FindVictim(set *Set) Block {
	for _, b := range set.Blocks {
		if !b.IsValid {
			return b
		}
	}

	return set.Blocks[e.rng.Intn(len(set.Blocks))]
}

// OnFill does nothing.
func (e *RandomVictimFinder) OnFill(*Set, int) {}

// OnHit does nothing.
func (e *RandomVictimFinder) OnHit(*Set, int) {}

// NewVictimFinder creates the victim finder for a policy name: "lru",
// "srrip" or "random".
func NewVictimFinder(policy string, seed int64) (VictimFinder, error) {
	switch policy {
	case "lru", "":
		return NewLRUVictimFinder(), nil
	case "srrip":
		return NewSRRIPVictimFinder(), nil
	case "random":
		return NewRandomVictimFinder(seed), nil
	default:
		return nil, fmt.Errorf("unknown replacement policy %q", policy)
	}
}
