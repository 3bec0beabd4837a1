package machine

// A BranchPredictor is a table of 2-bit saturating counters indexed by the
// branch address.
type BranchPredictor struct {
	counters []uint8
}

// NewBranchPredictor creates a predictor with n weakly not-taken entries.
func NewBranchPredictor(n int) *BranchPredictor {
	p := &BranchPredictor{counters: make([]uint8, n)}
	for i := range p.counters {
		p.counters[i] = 1
	}

	return p
}

func (p *BranchPredictor) index(pc uint64) int {
	return int(pc % uint64(len(p.counters)))
}

// Predict tells whether the branch at pc is predicted taken.
func (p *BranchPredictor) Predict(pc uint64) bool {
	return p.counters[p.index(pc)] >= 2
}

// Update trains the entry of pc with the resolved direction.
func (p *BranchPredictor) Update(pc uint64, taken bool) {
	i := p.index(pc)

	switch {
	case taken && p.counters[i] < 3:
		p.counters[i]++
	case !taken && p.counters[i] > 0:
		p.counters[i]--
	}
}

// A DependencePredictor guesses whether a load depends on an older store
// whose address is still unknown. After a violation the load is held back
// for Penalty predictions. A zero penalty never learns, as in simple
// in-order-issue designs.
type DependencePredictor struct {
	Penalty uint8

	waits map[uint64]uint8
}

// NewDependencePredictor creates a predictor with the given penalty.
func NewDependencePredictor(penalty uint8) *DependencePredictor {
	return &DependencePredictor{
		Penalty: penalty,
		waits:   make(map[uint64]uint8),
	}
}

// PredictDependent tells whether the load at pc must wait for older stores.
func (p *DependencePredictor) PredictDependent(pc uint64) bool {
	w := p.waits[pc]
	if w == 0 {
		return false
	}

	p.waits[pc] = w - 1

	return true
}

// Violation records that the load at pc bypassed a store it depended on.
func (p *DependencePredictor) Violation(pc uint64) {
	if p.Penalty == 0 {
		return
	}

	p.waits[pc] = p.Penalty
}
