package machine

import (
	"log"
	"time"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks
func (f Freq) Period() time.Duration {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return time.Duration(float64(time.Second) / float64(f))
}

// Duration converts a number of cycles to wall-clock time.
func (f Freq) Duration(cycles uint64) time.Duration {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return time.Duration(float64(cycles) * float64(time.Second) / float64(f))
}
