package machine

import "github.com/sarchlab/cacheleak/memory"

// A SpeculativeCore runs gadgets on a machine. A mispredicted path executes
// for as many cycles as the mispredicted condition takes to resolve.
type SpeculativeCore struct {
	m          *Machine
	branches   *BranchPredictor
	deps       *DependencePredictor
	delay      uint64
	issueDelay uint64

	transientRuns uint64
	squashes      uint64
}

// NewSpeculativeCore creates a core on m whose calibrated delay takes delay
// cycles.
func NewSpeculativeCore(m *Machine, delay uint64) *SpeculativeCore {
	return &SpeculativeCore{
		m:          m,
		branches:   NewBranchPredictor(1024),
		deps:       NewDependencePredictor(0),
		delay:      delay,
		issueDelay: 1,
	}
}

// WithDependencePenalty makes the memory-dependence predictor hold a load
// back for penalty attempts after a violation.
func (c *SpeculativeCore) WithDependencePenalty(penalty uint8) *SpeculativeCore {
	c.deps = NewDependencePredictor(penalty)
	return c
}

// Machine returns the machine the core runs on.
func (c *SpeculativeCore) Machine() *Machine {
	return c.m
}

// DelayCycles returns the length of the calibrated delay.
func (c *SpeculativeCore) DelayCycles() uint64 {
	return c.delay
}

// CalibratedDelay spins for the calibrated number of cycles.
func (c *SpeculativeCore) CalibratedDelay() {
	c.m.Spin(c.delay)
}

// TransientRuns returns how many mispredicted paths leaked a value.
func (c *SpeculativeCore) TransientRuns() uint64 {
	return c.transientRuns
}

// Squashes returns how many mispredicted paths were squashed before their
// dependent load issued.
func (c *SpeculativeCore) Squashes() uint64 {
	return c.squashes
}

// speculate runs the transient sequence probe[load(addr)*stride] within a
// window of the given number of cycles. The probe load issues only if the
// first load completes before the window closes.
func (c *SpeculativeCore) speculate(
	window uint64,
	addr uint64,
	probe memory.Region,
	stride uint64,
) {
	need := c.m.expectedLatency(addr) + c.issueDelay
	if window < need {
		c.squashes++
		return
	}

	v := c.m.transientLoad(addr)
	c.m.transientLoad(probe.Base + uint64(v)*stride)
	c.transientRuns++
}
