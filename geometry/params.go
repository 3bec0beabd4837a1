// Package geometry maps addresses onto the tag, set and offset fields of a
// set-associative cache.
package geometry

import (
	"errors"
	"fmt"
	"math/bits"
)

// Params describes the geometry of one cache level of the target machine.
type Params struct {
	WaysPerSet  int
	BlockBytes  uint64
	SetCount    uint64
	AddressBits int
}

// MakeParams creates the geometry of a cache with a 32-bit address space.
func MakeParams(waysPerSet int, blockBytes, setCount uint64) Params {
	return Params{
		WaysPerSet:  waysPerSet,
		BlockBytes:  blockBytes,
		SetCount:    setCount,
		AddressBits: 32,
	}
}

// WithAddressBits returns a copy of the params using the given address width.
func (p Params) WithAddressBits(n int) Params {
	p.AddressBits = n
	return p
}

// BlockBits returns log2 of the block size.
func (p Params) BlockBits() int {
	return bits.TrailingZeros64(p.BlockBytes)
}

// SetBits returns log2 of the number of sets.
func (p Params) SetBits() int {
	return bits.TrailingZeros64(p.SetCount)
}

// CapacityBytes returns the number of bytes the cache can hold.
func (p Params) CapacityBytes() uint64 {
	return p.SetCount * uint64(p.WaysPerSet) * p.BlockBytes
}

// WayStride returns the distance between two addresses that map to the same
// set with the same offset.
func (p Params) WayStride() uint64 {
	return p.SetCount * p.BlockBytes
}

// FullMask returns the all-ones constant of the address width.
func (p Params) FullMask() uint64 {
	if p.AddressBits >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << p.AddressBits) - 1
}

// Validate checks that the params describe a cache that can exist.
func (p Params) Validate() error {
	if p.WaysPerSet < 1 {
		return errors.New("ways per set must be at least 1")
	}

	if !isPowerOfTwo(p.BlockBytes) {
		return fmt.Errorf("block size %d is not a power of two", p.BlockBytes)
	}

	if !isPowerOfTwo(p.SetCount) {
		return fmt.Errorf("set count %d is not a power of two", p.SetCount)
	}

	if p.AddressBits < 1 || p.AddressBits > 64 {
		return fmt.Errorf("address width %d is out of range", p.AddressBits)
	}

	hi, capacity := bits.Mul64(p.SetCount*p.BlockBytes, uint64(p.WaysPerSet))
	if hi != 0 || capacity-1 > p.FullMask() {
		return fmt.Errorf(
			"capacity of %d sets x %d ways x %d bytes does not fit in %d bits",
			p.SetCount, p.WaysPerSet, p.BlockBytes, p.AddressBits)
	}

	if p.BlockBits()+p.SetBits() > p.AddressBits {
		return errors.New("set and offset fields exceed the address width")
	}

	return nil
}

// String returns a short description such as "2-way 64B x 512 sets".
func (p Params) String() string {
	return fmt.Sprintf("%d-way %dB x %d sets", p.WaysPerSet, p.BlockBytes,
		p.SetCount)
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
