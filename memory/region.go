// Package memory provides the address-space abstractions shared by the
// attack machinery and the simulated target.
package memory

import "fmt"

// A Region is a contiguous range of addresses.
type Region struct {
	Base uint64
	Size uint64
}

// End returns the first address after the region.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

// Contains tells whether addr lies inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr < r.End()
}

// At returns the address of the i-th byte of the region.
func (r Region) At(i uint64) uint64 {
	return r.Base + i
}

// String returns the region as a half-open range.
func (r Region) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Base, r.End())
}

// A Loader performs ordinary byte loads.
type Loader interface {
	Load(addr uint64) byte
}

// A Storer performs ordinary byte stores.
type Storer interface {
	Store(addr uint64, value byte)
}

// An Allocator hands out regions of the address space. Every region it
// returns is already written with non-zero bytes so that it is backed by its
// own frames rather than a shared zero page.
type Allocator interface {
	Allocate(name string, size uint64, align uint64) Region
}

// A Releaser takes back regions handed out by an Allocator.
type Releaser interface {
	Release(r Region)
}
