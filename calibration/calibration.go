// Package calibration measures how long cached and uncached loads take on a
// platform and derives a cache-hit threshold from the two populations.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/cacheleak/memory"
	"github.com/sarchlab/cacheleak/oracle"
)

// TModerate is the Welch t value above which two latency populations are
// considered distinguishable.
const TModerate = 5.0

// ErrNotSeparable is returned when hit and miss latencies overlap.
var ErrNotSeparable = errors.New("hit and miss latencies overlap")

// An Evictor removes a range of addresses from the cache.
type Evictor interface {
	Evict(target, size uint64)
}

// Summary describes one latency population.
type Summary struct {
	Samples int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
	P5      float64
	P95     float64
}

// Summarize computes the summary of a latency population.
func Summarize(latencies []float64) Summary {
	if len(latencies) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)

	mean, variance := stat.MeanVariance(sorted, nil)

	return Summary{
		Samples: len(sorted),
		Mean:    mean,
		StdDev:  math.Sqrt(variance),
		Min:     floats.Min(sorted),
		Max:     floats.Max(sorted),
		P5:      stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}

// WelchT returns Welch's t statistic of two populations. Larger absolute
// values mean the populations are easier to tell apart.
func WelchT(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)

	den := math.Sqrt(varA/float64(len(a)) + varB/float64(len(b)))
	if den == 0 {
		if meanA == meanB {
			return 0
		}

		return math.Inf(1)
	}

	return math.Abs(meanA-meanB) / den
}

// Calibration is the outcome of a calibration run.
type Calibration struct {
	Hit       Summary
	Miss      Summary
	Threshold uint64
	T         float64
}

// Separable tells whether the populations are far enough apart to attack.
func (c Calibration) Separable() bool {
	return c.Hit.P95 < c.Miss.P5 && c.T > TModerate
}

// String returns a one-line description of the calibration.
func (c Calibration) String() string {
	return fmt.Sprintf(
		"hit %.1f±%.1f, miss %.1f±%.1f, threshold %d, t=%.1f",
		c.Hit.Mean, c.Hit.StdDev, c.Miss.Mean, c.Miss.StdDev,
		c.Threshold, c.T)
}

// A Calibrator times loads from a probe address.
type Calibrator struct {
	counter oracle.CycleCounter
	loader  memory.Loader
	evictor Evictor
}

// NewCalibrator creates a calibrator.
func NewCalibrator(
	counter oracle.CycleCounter,
	loader memory.Loader,
	evictor Evictor,
) *Calibrator {
	return &Calibrator{
		counter: counter,
		loader:  loader,
		evictor: evictor,
	}
}

func (c *Calibrator) time(addr uint64) float64 {
	start := c.counter.ReadCycles()
	c.loader.Load(addr)
	end := c.counter.ReadCycles()

	return float64(end - start)
}

// Measure collects samples hit latencies and samples miss latencies of the
// block holding addr.
func (c *Calibrator) Measure(addr, blockBytes uint64, samples int) (
	hits, misses []float64,
) {
	hits = make([]float64, 0, samples)
	misses = make([]float64, 0, samples)

	for i := 0; i < samples; i++ {
		c.loader.Load(addr)
		hits = append(hits, c.time(addr))

		c.evictor.Evict(addr, blockBytes)
		misses = append(misses, c.time(addr))
	}

	return hits, misses
}

// Calibrate measures the block holding addr and suggests the threshold
// halfway between the slow tail of hits and the fast tail of misses.
func (c *Calibrator) Calibrate(addr, blockBytes uint64, samples int) (
	Calibration, error,
) {
	if samples < 2 {
		return Calibration{}, fmt.Errorf("need at least 2 samples, got %d",
			samples)
	}

	hits, misses := c.Measure(addr, blockBytes, samples)

	return FromSamples(hits, misses)
}

// FromSamples derives a calibration from measured populations.
func FromSamples(hits, misses []float64) (Calibration, error) {
	cal := Calibration{
		Hit:  Summarize(hits),
		Miss: Summarize(misses),
		T:    WelchT(hits, misses),
	}

	if cal.Hit.P95 >= cal.Miss.P5 {
		return cal, fmt.Errorf("hit p95 %.1f >= miss p5 %.1f: %w",
			cal.Hit.P95, cal.Miss.P5, ErrNotSeparable)
	}

	cal.Threshold = uint64(math.Ceil((cal.Hit.P95 + cal.Miss.P5) / 2))

	return cal, nil
}
