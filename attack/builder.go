package attack

import (
	"log"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/gadget"
	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/logger"
	"github.com/sarchlab/cacheleak/memory"
	"github.com/sarchlab/cacheleak/oracle"
)

// A Platform is what the orchestrator needs from the target machine.
type Platform interface {
	memory.Allocator
	memory.Loader
	memory.Storer
	oracle.CycleCounter
}

// Builder can build orchestrators.
type Builder struct {
	platform  Platform
	params    geometry.Params
	gadget    gadget.Gadget
	layout    *Layout
	cfg       Config
	reporters []ResultSink
	log       logger.Logger
}

// MakeBuilder creates a new builder with the default config.
func MakeBuilder() Builder {
	return Builder{
		cfg: DefaultConfig(),
	}
}

// WithPlatform sets the target machine.
func (b Builder) WithPlatform(p Platform) Builder {
	b.platform = p
	return b
}

// WithParams sets the geometry of the attacked cache.
func (b Builder) WithParams(params geometry.Params) Builder {
	b.params = params
	return b
}

// WithGadget sets the speculation gadget.
func (b Builder) WithGadget(g gadget.Gadget) Builder {
	b.gadget = g
	return b
}

// WithLayout makes the orchestrator take ownership of an existing layout
// instead of allocating one. Gadgets that must know the candidate and probe
// arrays are built against this layout.
func (b Builder) WithLayout(l Layout) Builder {
	b.layout = &l
	return b
}

// WithConfig sets the tunables and target.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithReporter adds a sink for results.
func (b Builder) WithReporter(r ResultSink) Builder {
	b.reporters = append(b.reporters, r)
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logger.Logger) Builder {
	b.log = l
	return b
}

// Build creates the orchestrator.
func (b Builder) Build() *Orchestrator {
	b.mustBeValid()

	layout := b.layoutOrAllocate()

	o := &Orchestrator{
		cfg:       b.cfg,
		params:    b.params,
		platform:  b.platform,
		gadget:    b.gadget,
		layout:    layout,
		reporters: b.reporters,
		log:       b.log,
		table:     aggregate.NewHitTable(b.cfg.Candidates),
		state:     StateInit,
	}

	if o.log == nil {
		o.log = logger.Discard()
	}

	o.evictor = layout.Evictor(b.platform, b.params, b.cfg)

	o.oracle = oracle.New(b.platform, b.platform, layout.Probe, layout.Stride,
		b.cfg.Threshold)

	o.attackIndex = b.cfg.TargetAddress - layout.Guide.Base

	return o
}

func (b Builder) layoutOrAllocate() Layout {
	if b.layout != nil {
		return *b.layout
	}

	return NewLayout(b.platform, b.platform, b.params, b.cfg)
}

func (b Builder) mustBeValid() {
	if b.platform == nil {
		log.Panic("orchestrator requires a platform")
	}

	if b.gadget == nil {
		log.Panic("orchestrator requires a gadget")
	}

	if err := b.params.Validate(); err != nil {
		log.Panic(err)
	}

	if err := b.cfg.Validate(); err != nil {
		log.Panic(err)
	}
}
