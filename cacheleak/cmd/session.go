package cmd

import (
	"github.com/sarchlab/cacheleak/attack"
	"github.com/sarchlab/cacheleak/config"
	"github.com/sarchlab/cacheleak/gadget"
	"github.com/sarchlab/cacheleak/logger"
	"github.com/sarchlab/cacheleak/machine"
	"github.com/sarchlab/cacheleak/memory"
)

// A session is a simulated target with a secret planted in it and the
// regions of one attack laid out.
type session struct {
	profile config.Profile
	machine *machine.Machine
	core    *machine.SpeculativeCore
	layout  attack.Layout
	cfg     attack.Config
	secret  memory.Region
	gadget  gadget.Gadget
}

func newSession(p config.Profile) *session {
	m := p.MachineBuilder().Build()
	cfg := p.AttackConfig()
	layout := attack.NewLayout(m, m, m.Params(), cfg)

	secret := m.PlaceSecret([]byte(p.Secret))
	cfg.TargetAddress = secret.Base
	cfg.SecretLength = len(p.Secret)

	core := machine.NewSpeculativeCore(m, p.Gadget.Delay).
		WithDependencePenalty(p.Gadget.DependencePenalty)

	s := &session{
		profile: p,
		machine: m,
		core:    core,
		layout:  layout,
		cfg:     cfg,
		secret:  secret,
	}

	switch p.Gadget.Kind {
	case config.GadgetBranch:
		evictor := layout.Evictor(m, m.Params(), cfg)
		g := machine.NewBranchGadget(core, evictor, layout.Guide,
			layout.Probe, layout.Stride)
		if p.Gadget.TrainTimes > 0 {
			g.WithTrainTimes(p.Gadget.TrainTimes)
		}

		s.gadget = g
	default:
		s.gadget = machine.NewStoreBypassGadget(core, layout.Guide,
			layout.Probe, layout.Stride)
	}

	return s
}

func (s *session) orchestrator(
	log logger.Logger,
	reporters ...attack.ResultSink,
) *attack.Orchestrator {
	b := attack.MakeBuilder().
		WithLogger(log).
		WithPlatform(s.machine).
		WithParams(s.machine.Params()).
		WithLayout(s.layout).
		WithGadget(s.gadget).
		WithConfig(s.cfg)

	for _, r := range reporters {
		b = b.WithReporter(r)
	}

	return b.Build()
}
