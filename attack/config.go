package attack

import (
	"errors"
	"fmt"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/eviction"
	"github.com/sarchlab/cacheleak/oracle"
)

// Config holds the tunables and the target of one attack.
type Config struct {
	// Rounds is the number of evict/leak/sample rounds per secret byte.
	Rounds int

	// Threshold is the latency, in cycles, under which a probe is a hit.
	Threshold uint64

	// TargetAddress is the address of the first secret byte.
	TargetAddress uint64

	// SecretLength is the number of bytes to recover.
	SecretLength int

	// Candidates is the number of candidate values, at most 256.
	Candidates int

	// Stride is the distance between probe slots. Zero means one cache block.
	Stride uint64

	// Sentinel fills the candidate array.
	Sentinel byte

	Multiplier    uint64
	ExtendedSweep bool
	Mixer         oracle.Mixer
	Margin        aggregate.MarginRule
}

// DefaultConfig returns the tunables of the RSD store-bypass attack.
func DefaultConfig() Config {
	return Config{
		Rounds:     9,
		Threshold:  37,
		Candidates: aggregate.NumCandidates,
		Sentinel:   1,
		Multiplier: eviction.DefaultMultiplier,
		Mixer:      oracle.DefaultMixer,
		Margin:     aggregate.DefaultMarginRule,
	}
}

// Validate reports configuration errors. The attack loop itself never
// checks its inputs.
func (c Config) Validate() error {
	if c.Rounds < 0 {
		return fmt.Errorf("rounds %d is negative", c.Rounds)
	}

	if c.Threshold == 0 {
		return errors.New("cache hit threshold cannot be 0")
	}

	if c.SecretLength < 0 {
		return fmt.Errorf("secret length %d is negative", c.SecretLength)
	}

	if c.Candidates < 1 || c.Candidates > aggregate.NumCandidates {
		return fmt.Errorf("candidate count %d out of range", c.Candidates)
	}

	if c.Multiplier < 2 {
		return fmt.Errorf("eviction multiplier %d is smaller than 2",
			c.Multiplier)
	}

	if c.Mixer.N < uint64(c.Candidates) {
		return fmt.Errorf("mixer covers %d values but there are %d candidates",
			c.Mixer.N, c.Candidates)
	}

	if c.Sentinel == 0 {
		return errors.New("sentinel 0 would leave the candidate array on " +
			"the zero page")
	}

	return nil
}
