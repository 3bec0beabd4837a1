package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "CACHELEAK_"

// Load reads a YAML profile. Fields the file leaves out keep the value of
// the profile it names with "base", or of the default profile.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML profile.
func Parse(data []byte) (Profile, error) {
	var header struct {
		Base string `yaml:"base"`
	}

	if err := yaml.Unmarshal(data, &header); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}

	p := DefaultProfile()
	if header.Base != "" {
		base, err := Builtin(header.Base)
		if err != nil {
			return Profile{}, err
		}

		p = base
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}

	return p, nil
}

// Marshal encodes a profile as YAML.
func Marshal(p Profile) ([]byte, error) {
	return yaml.Marshal(p)
}

// LoadDotEnv reads environment files into the process environment. Missing
// files are skipped. Variables that are already set win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}

	return nil
}

// A LookupFunc finds the value of an environment variable.
type LookupFunc func(key string) (string, bool)

type override struct {
	name  string
	apply func(p *Profile, v string) error
}

var overrides = []override{
	{"ROUNDS", func(p *Profile, v string) error {
		return parseInt(v, &p.Attack.Rounds)
	}},
	{"THRESHOLD", func(p *Profile, v string) error {
		return parseUint(v, &p.Attack.Threshold)
	}},
	{"MULTIPLIER", func(p *Profile, v string) error {
		return parseUint(v, &p.Attack.Multiplier)
	}},
	{"EXTENDED_SWEEP", func(p *Profile, v string) (err error) {
		p.Attack.ExtendedSweep, err = strconv.ParseBool(v)
		return err
	}},
	{"SEED", func(p *Profile, v string) (err error) {
		p.Seed, err = strconv.ParseInt(v, 0, 64)
		return err
	}},
	{"SECRET", func(p *Profile, v string) error {
		p.Secret = v
		return nil
	}},
	{"POLICY", func(p *Profile, v string) error {
		p.Cache.Policy = v
		return nil
	}},
	{"GADGET", func(p *Profile, v string) error {
		p.Gadget.Kind = v
		return nil
	}},
	{"DELAY", func(p *Profile, v string) error {
		return parseUint(v, &p.Gadget.Delay)
	}},
	{"JITTER", func(p *Profile, v string) error {
		return parseUint(v, &p.Latency.Jitter)
	}},
}

// ApplyEnv overrides profile fields with CACHELEAK_* variables.
func ApplyEnv(p Profile, lookup LookupFunc) (Profile, error) {
	for _, o := range overrides {
		key := EnvPrefix + o.name

		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}

		if err := o.apply(&p, v); err != nil {
			return p, fmt.Errorf("%s=%q: %w", key, v, err)
		}
	}

	return p, nil
}

// Resolve loads the named built-in profile, or the YAML file at path if it
// is not a built-in, applies the environment and validates the result.
func Resolve(nameOrPath string, lookup LookupFunc) (Profile, error) {
	var (
		p   Profile
		err error
	)

	switch {
	case nameOrPath == "":
		p = DefaultProfile()
	case isBuiltin(nameOrPath):
		p, err = Builtin(nameOrPath)
	default:
		p, err = Load(nameOrPath)
	}

	if err != nil {
		return Profile{}, err
	}

	p, err = ApplyEnv(p, lookup)
	if err != nil {
		return Profile{}, err
	}

	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid profile %s: %w", p.Name, err)
	}

	return p, nil
}

func isBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	*dst = n

	return nil
}

func parseUint(v string, dst *uint64) error {
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return err
	}

	*dst = n

	return nil
}
