package machine

import (
	"log"
	"math/rand"

	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/memory"
)

// A Builder can build simulated machines.
type Builder struct {
	params   geometry.Params
	latency  LatencyModel
	policy   string
	seed     int64
	freq     Freq
	capacity uint64
}

// MakeBuilder creates a builder with a 2-way, 8-byte-block, 2048-set cache.
func MakeBuilder() Builder {
	return Builder{
		params:   geometry.MakeParams(2, 8, 2048),
		latency:  DefaultLatencyModel(),
		policy:   "lru",
		seed:     1,
		freq:     1 * GHz,
		capacity: 1 << 32,
	}
}

// WithParams sets the cache geometry.
func (b Builder) WithParams(params geometry.Params) Builder {
	b.params = params
	return b
}

// WithLatency sets the latency model.
func (b Builder) WithLatency(latency LatencyModel) Builder {
	b.latency = latency
	return b
}

// WithPolicy sets the replacement policy: "lru", "srrip" or "random".
func (b Builder) WithPolicy(policy string) Builder {
	b.policy = policy
	return b
}

// WithSeed sets the seed of every random source in the machine.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(freq Freq) Builder {
	b.freq = freq
	return b
}

// WithCapacity sets the size of the address space.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// Build creates a machine.
func (b Builder) Build() *Machine {
	if err := b.params.Validate(); err != nil {
		log.Panic(err)
	}

	if err := b.latency.Validate(); err != nil {
		log.Panic(err)
	}

	vf, err := NewVictimFinder(b.policy, b.seed)
	if err != nil {
		log.Panic(err)
	}

	return &Machine{
		params:   b.params,
		cache:    NewCache(b.params, vf),
		storage:  memory.NewStorage(b.capacity),
		latency:  b.latency,
		freq:     b.freq,
		rng:      rand.New(rand.NewSource(b.seed)),
		nextAddr: firstAddress,
		regions:  make(map[uint64]namedRegion),
	}
}
