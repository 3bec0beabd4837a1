// Package config loads machine profiles and attack tunables from YAML files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/attack"
	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/machine"
	"github.com/sarchlab/cacheleak/oracle"
)

// Gadget kinds.
const (
	GadgetBranch      = "branch"
	GadgetStoreBypass = "store-bypass"
)

// CacheProfile describes the data cache of the target.
type CacheProfile struct {
	Ways        int    `yaml:"ways"`
	BlockBytes  uint64 `yaml:"block_bytes"`
	Sets        uint64 `yaml:"sets"`
	AddressBits int    `yaml:"address_bits"`
	Policy      string `yaml:"policy"`
}

// LatencyProfile describes the memory timing of the simulated target.
type LatencyProfile struct {
	Hit             uint64  `yaml:"hit"`
	Miss            uint64  `yaml:"miss"`
	CounterOverhead uint64  `yaml:"counter_overhead"`
	Jitter          uint64  `yaml:"jitter"`
	SpuriousHitRate float64 `yaml:"spurious_hit_rate"`
	FreqMHz         float64 `yaml:"freq_mhz"`
}

// AttackProfile holds the attack tunables.
type AttackProfile struct {
	Rounds        int    `yaml:"rounds"`
	Threshold     uint64 `yaml:"threshold"`
	Multiplier    uint64 `yaml:"multiplier"`
	ExtendedSweep bool   `yaml:"extended_sweep"`
	Stride        uint64 `yaml:"stride"`
	Sentinel      byte   `yaml:"sentinel"`
	MixerA        uint64 `yaml:"mixer_a"`
	MixerB        uint64 `yaml:"mixer_b"`
	MarginRatio   uint64 `yaml:"margin_ratio"`
	MarginSlack   uint64 `yaml:"margin_slack"`
}

// GadgetProfile selects and tunes the simulated gadget.
type GadgetProfile struct {
	Kind              string `yaml:"kind"`
	Delay             uint64 `yaml:"delay"`
	TrainTimes        int    `yaml:"train_times"`
	DependencePenalty uint8  `yaml:"dependence_penalty"`
}

// A Profile is everything needed to run an attack on a simulated target.
type Profile struct {
	Name    string         `yaml:"name"`
	Seed    int64          `yaml:"seed"`
	Secret  string         `yaml:"secret"`
	Cache   CacheProfile   `yaml:"cache"`
	Latency LatencyProfile `yaml:"latency"`
	Attack  AttackProfile  `yaml:"attack"`
	Gadget  GadgetProfile  `yaml:"gadget"`
}

var builtins = map[string]Profile{
	"rsd": {
		Name:   "rsd",
		Seed:   1,
		Secret: "RISCV",
		Cache: CacheProfile{
			Ways: 2, BlockBytes: 8, Sets: 2048, AddressBits: 32,
			Policy: "lru",
		},
		Latency: LatencyProfile{
			Hit: 24, Miss: 60, CounterOverhead: 6, Jitter: 4, FreqMHz: 50,
		},
		Attack: AttackProfile{
			Rounds: 9, Threshold: 37, Multiplier: 2, Sentinel: 1,
			MixerA: 65, MixerB: 1, MarginRatio: 2, MarginSlack: 5,
		},
		Gadget: GadgetProfile{Kind: GadgetStoreBypass, Delay: 80},
	},
	"c910": {
		Name:   "c910",
		Seed:   1,
		Secret: "#Secret_Information!",
		Cache: CacheProfile{
			Ways: 2, BlockBytes: 8, Sets: 2048, AddressBits: 32,
			Policy: "lru",
		},
		Latency: LatencyProfile{
			Hit: 28, Miss: 70, CounterOverhead: 8, Jitter: 4, FreqMHz: 1000,
		},
		Attack: AttackProfile{
			Rounds: 40, Threshold: 43, Multiplier: 2, Sentinel: 1,
			MixerA: 65, MixerB: 1, MarginRatio: 2, MarginSlack: 5,
		},
		Gadget: GadgetProfile{
			Kind: GadgetBranch, Delay: 60,
			TrainTimes: machine.DefaultTrainTimes,
		},
	},
}

// Builtin returns a copy of a built-in profile.
func Builtin(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q, choose from %v",
			name, BuiltinNames())
	}

	return p, nil
}

// BuiltinNames lists the built-in profiles.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// DefaultProfile returns the store-bypass profile.
func DefaultProfile() Profile {
	return builtins["rsd"]
}

// Params returns the cache geometry.
func (p Profile) Params() geometry.Params {
	return geometry.MakeParams(p.Cache.Ways, p.Cache.BlockBytes, p.Cache.Sets).
		WithAddressBits(p.Cache.AddressBits)
}

// LatencyModel returns the latency model of the simulated target.
func (p Profile) LatencyModel() machine.LatencyModel {
	return machine.LatencyModel{
		HitLatency:      p.Latency.Hit,
		MissLatency:     p.Latency.Miss,
		CounterOverhead: p.Latency.CounterOverhead,
		Jitter:          p.Latency.Jitter,
		SpuriousHitRate: p.Latency.SpuriousHitRate,
	}
}

// MachineBuilder returns a builder for the simulated target.
func (p Profile) MachineBuilder() machine.Builder {
	return machine.MakeBuilder().
		WithParams(p.Params()).
		WithLatency(p.LatencyModel()).
		WithPolicy(p.Cache.Policy).
		WithSeed(p.Seed).
		WithFreq(machine.Freq(p.Latency.FreqMHz) * machine.MHz)
}

// AttackConfig returns the attack tunables. The target is left unset.
func (p Profile) AttackConfig() attack.Config {
	cfg := attack.DefaultConfig()
	cfg.Rounds = p.Attack.Rounds
	cfg.Threshold = p.Attack.Threshold
	cfg.Multiplier = p.Attack.Multiplier
	cfg.ExtendedSweep = p.Attack.ExtendedSweep
	cfg.Stride = p.Attack.Stride
	cfg.Sentinel = p.Attack.Sentinel
	cfg.Mixer = oracle.Mixer{
		A: p.Attack.MixerA,
		B: p.Attack.MixerB,
		N: aggregate.NumCandidates,
	}
	cfg.Margin = aggregate.MarginRule{
		Ratio: p.Attack.MarginRatio,
		Slack: p.Attack.MarginSlack,
	}

	return cfg
}

// Validate reports every inconsistency of the profile.
func (p Profile) Validate() error {
	var errs []error

	if err := p.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}

	if _, err := machine.NewVictimFinder(p.Cache.Policy, 0); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}

	if err := p.LatencyModel().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("latency: %w", err))
	}

	if p.Latency.FreqMHz <= 0 {
		errs = append(errs, errors.New("latency: frequency must be positive"))
	}

	if err := p.AttackConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("attack: %w", err))
	}

	a := p.Attack
	if a.MixerA <= 64 || a.MixerA%2 == 0 || a.MixerB == 0 {
		errs = append(errs, fmt.Errorf(
			"attack: mixer (%d, %d) does not permute the candidates",
			a.MixerA, a.MixerB))
	}

	switch p.Gadget.Kind {
	case GadgetBranch, GadgetStoreBypass:
	default:
		errs = append(errs, fmt.Errorf("gadget: unknown kind %q", p.Gadget.Kind))
	}

	if p.Secret == "" {
		errs = append(errs, errors.New("secret cannot be empty"))
	}

	return errors.Join(errs...)
}
