// Package gadget defines what the attack loop needs from a speculation
// gadget. Gadgets are supplied by the target platform; the attack loop only
// sees these interfaces.
package gadget

// A Gadget performs one timed, delayed access that, on vulnerable hardware,
// transiently loads the probe slot selected by the byte at candidateIndex
// (relative to the candidate array).
//
// AttemptLeak has no architectural result. Its only effect is a change in
// which probe slot is cached, or none if the race was lost.
type Gadget interface {
	AttemptLeak(candidateIndex uint64)
}

// A Trainer is a gadget that primes a predictor before every attempt, such
// as branch-history training for bounds-check bypass.
type Trainer interface {
	Train()
}

// A DecoyReporter is a gadget that touches one probe slot architecturally.
// That slot is cached whether or not the leak succeeded, so it must not be
// counted as a hit.
type DecoyReporter interface {
	Decoy() (value byte, ok bool)
}

// A Delay widens the transient window with a bounded chain of slow,
// dependent operations. It never yields.
type Delay interface {
	CalibratedDelay()
}

// Fire runs one attempt: training first, if the gadget needs it.
func Fire(g Gadget, candidateIndex uint64) {
	if t, ok := g.(Trainer); ok {
		t.Train()
	}

	g.AttemptLeak(candidateIndex)
}

// DecoyOf returns the decoy of g, if it reports one.
func DecoyOf(g Gadget) (byte, bool) {
	d, ok := g.(DecoyReporter)
	if !ok {
		return 0, false
	}

	return d.Decoy()
}
