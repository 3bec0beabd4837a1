package geometry

// AddressMasks partition an address into its offset, set and tag fields.
type AddressMasks struct {
	Offset uint64
	Set    uint64
	Tag    uint64
}

// Masks derives the field masks from the params.
func (p Params) Masks() AddressMasks {
	full := p.FullMask()
	offset := ^(full << p.BlockBits()) & full
	tag := (full << (p.SetBits() + p.BlockBits())) & full

	return AddressMasks{
		Offset: offset,
		Set:    ^(tag | offset) & full,
		Tag:    tag,
	}
}

// OffsetOf returns the byte offset of the address inside its block.
func (p Params) OffsetOf(addr uint64) uint64 {
	return addr & p.Masks().Offset
}

// SetIndexOf returns the index of the set the address maps to.
func (p Params) SetIndexOf(addr uint64) uint64 {
	return (addr & p.Masks().Set) >> p.BlockBits()
}

// TagOf returns the tag field of the address, shifted down to bit 0.
func (p Params) TagOf(addr uint64) uint64 {
	return (addr & p.Masks().Tag) >> (p.SetBits() + p.BlockBits())
}

// BlockAddr clears the offset bits of the address.
func (p Params) BlockAddr(addr uint64) uint64 {
	return addr &^ p.Masks().Offset & p.FullMask()
}

// Compose builds an address from its fields. Field values wider than their
// field are truncated.
func (p Params) Compose(tag, setIndex, offset uint64) uint64 {
	m := p.Masks()
	blockBits := p.BlockBits()
	setBits := p.SetBits()

	return (tag<<(setBits+blockBits))&m.Tag |
		(setIndex<<blockBits)&m.Set |
		offset&m.Offset
}
