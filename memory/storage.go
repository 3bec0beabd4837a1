package memory

import (
	"errors"
)

// ErrBeyondCapacity is returned when an access falls outside the storage.
var ErrBeyondCapacity = errors.New(
	"accessing address beyond the storage capacity")

// A Storage keeps the bytes of the simulated target.
//
// The storage manages its data in units that play the role of pages. A unit
// that has never been written is backed by the shared zero page and reports
// itself as not resident; the first write gives the unit its own frame.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4096
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// UnitSize returns the size of a storage unit.
func (s *Storage) UnitSize() uint64 {
	return s.unitSize
}

// Capacity returns the number of addressable bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Storage) getOrCreateUnit(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, ErrBeyondCapacity
	}

	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit, nil
}

// IsResident tells whether the unit holding the address has its own frame.
func (s *Storage) IsResident(address uint64) bool {
	baseAddr, _ := s.parseAddress(address)
	_, ok := s.data[baseAddr]

	return ok
}

// Read copies len bytes starting at address. Reading never makes a unit
// resident.
func (s *Storage) Read(address uint64, len uint64) ([]byte, error) {
	if address+len > s.capacity || address+len < address {
		return nil, ErrBeyondCapacity
	}

	res := make([]byte, len)
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < len {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(len-dataOffset, s.unitSize-inUnitAddr)

		if unit, ok := s.data[baseAddr]; ok {
			copy(res[dataOffset:dataOffset+lenToRead],
				unit[inUnitAddr:inUnitAddr+lenToRead])
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write copies data into the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit, err := s.getOrCreateUnit(currAddr)
		if err != nil {
			return err
		}

		_, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(uint64(len(data))-dataOffset, s.unitSize-inUnitAddr)

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// Fill writes value into every byte of the region.
func (s *Storage) Fill(r Region, value byte) error {
	chunk := make([]byte, s.unitSize)
	for i := range chunk {
		chunk[i] = value
	}

	for offset := uint64(0); offset < r.Size; offset += s.unitSize {
		n := min(s.unitSize, r.Size-offset)
		if err := s.Write(r.Base+offset, chunk[:n]); err != nil {
			return err
		}
	}

	return nil
}
