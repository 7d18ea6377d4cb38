// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package dwarfdata

// PieceKind is the flavour of one ValuePiece, per §3.4.
type PieceKind int

const (
	// PieceInvalid marks a zero-value ValuePiece.
	PieceInvalid PieceKind = iota
	// PieceUnknown means the location is unknown but the size is valid.
	PieceUnknown
	// PieceMemory means the piece lives at a target memory address.
	PieceMemory
	// PieceRegister means the piece lives in a register.
	PieceRegister
	// PieceImplicit means the piece's bytes are held directly, computed
	// rather than addressable (e.g. DW_OP_implicit_value,
	// DW_OP_stack_value).
	PieceImplicit
)

// ValuePiece is one contiguous chunk of a (possibly composite) value
// location, per §3.4: a byte size, a bit size, a bit offset, and a
// writable flag, plus the address/register/bytes payload for its kind.
type ValuePiece struct {
	Kind PieceKind

	Address  uint64 // PieceMemory
	Register int    // PieceRegister
	Bytes    []byte // PieceImplicit

	Size      uint64 // size in whole bytes
	BitSize   uint8  // additional bits beyond Size*8
	BitOffset uint8  // offset in bits within the addressed unit
	Writable  bool
}

// IsValid reports whether the piece carries a usable location.
func (p ValuePiece) IsValid() bool { return p.Kind != PieceInvalid }

// TotalBits returns the piece's full bit width.
func (p ValuePiece) TotalBits() uint64 { return p.Size*8 + uint64(p.BitSize) }

// dropBits removes n bits from one end of a piece, shrinking it to its
// remaining width. fromHighEnd selects which end of the piece's own bit
// range to drop: true drops the most-significant bits, false the
// least-significant. A memory piece's Address only needs to move when
// the dropped bits sit at the lower address: that happens when dropping
// the most-significant bits of a big-endian piece (MSB stored at the
// lowest address) or the least-significant bits of a little-endian piece
// (LSB stored at the lowest address), matching ValuePieceLocation's
// Normalize (ValueLocation.cpp).
func dropBits(p ValuePiece, n uint64, fromHighEnd, bigEndian bool) ValuePiece {
	total := p.TotalBits()
	if n >= total {
		p.Size, p.BitSize = 0, 0
		return p
	}

	if p.Kind == PieceMemory && fromHighEnd == bigEndian {
		p.Address += n / 8
	}

	remaining := total - n
	p.Size = remaining / 8
	p.BitSize = uint8(remaining % 8)
	p.BitOffset = 0
	return p
}

// ValueLocation is an ordered sequence of value pieces plus an
// endianness flag and an aggregate writable flag, per §3.4.
type ValueLocation struct {
	Pieces    []ValuePiece
	BigEndian bool
}

// NewValueLocation creates an empty ValueLocation with the given
// endianness.
func NewValueLocation(bigEndian bool) *ValueLocation {
	return &ValueLocation{BigEndian: bigEndian}
}

// AddPiece appends piece without normalizing it, matching the donor
// behaviour that lets the DWARF expression evaluator build up a location
// piece-by-piece before any sub-range operation touches it.
func (v *ValueLocation) AddPiece(piece ValuePiece) {
	v.Pieces = append(v.Pieces, piece)
}

// Writable reports whether every piece in the location is writable.
func (v *ValueLocation) Writable() bool {
	if len(v.Pieces) == 0 {
		return false
	}
	for _, p := range v.Pieces {
		if !p.Writable {
			return false
		}
	}
	return true
}

func (v *ValueLocation) totalBits() uint64 {
	var total uint64
	for _, p := range v.Pieces {
		total += p.TotalBits()
	}
	return total
}

// SubRange builds a new ValueLocation covering the sub-range
// [bitOffset, bitOffset+bitSize) of v, honouring endianness: for
// big-endian, pieces are skipped from the most-significant-bit side;
// for little-endian, from the least-significant-bit side. The first and
// last retained pieces are cut to exactly fit. A request that starts at
// or beyond the location's total bit width yields an empty location.
//
// This is the mechanism §3.7's composite index path narrows with: each
// subscript in an index path resolves to a (bitOffset, bitSize) pair for
// the corresponding array element or struct member, and SubRange is
// called once per subscript.
func (v *ValueLocation) SubRange(bitOffset, bitSize uint64) *ValueLocation {
	out := NewValueLocation(v.BigEndian)

	total := v.totalBits()
	if bitOffset >= total {
		return out
	}
	if bitOffset+bitSize > total {
		bitSize = total - bitOffset
	}
	if bitSize == 0 {
		return out
	}

	// bigEndian: the first piece in the list holds the most-significant
	// bits, so the requested range is found by skipping bitOffset bits
	// from the front and keeping bitSize bits from there.
	//
	// little-endian: the first piece holds the least-significant bits, so
	// the requested range sits bitsToSkip bits from the front, where
	// bitsToSkip accounts for the low-order bits past the requested range.
	var bitsToSkip uint64
	if v.BigEndian {
		bitsToSkip = bitOffset
	} else {
		bitsToSkip = total - bitOffset - bitSize
	}

	i := 0
	var piece ValuePiece
	for ; i < len(v.Pieces); i++ {
		piece = v.Pieces[i]
		if piece.TotalBits() > bitsToSkip {
			break
		}
		bitsToSkip -= piece.TotalBits()
	}
	if i >= len(v.Pieces) {
		return out
	}

	if bitsToSkip > 0 {
		// Drop the skipped bits from whichever end of this piece faces
		// the front of the list: the high end for big-endian, the low
		// end for little-endian.
		piece = dropBits(piece, bitsToSkip, v.BigEndian, v.BigEndian)
	}

	for bitSize > 0 {
		pieceBits := piece.TotalBits()
		if pieceBits > bitSize {
			// Cut the piece down to exactly bitSize, dropping the
			// remainder from the back of the list's direction: the low
			// end for big-endian (keep the leading/most-significant
			// bits), the high end for little-endian (keep the
			// trailing/least-significant bits).
			piece = dropBits(piece, pieceBits-bitSize, !v.BigEndian, v.BigEndian)
			bitSize = 0
		} else {
			bitSize -= pieceBits
		}
		out.AddPiece(piece)
		i++
		if bitSize == 0 || i >= len(v.Pieces) {
			break
		}
		piece = v.Pieces[i]
	}

	return out
}

// IndexPath is an ordered list of integer subscripts used to descend
// into nested array/structure types, per §3.7's composite index path
// supplement.
type IndexPath []int

// Subscript is one element of an index path into a composite DIE type
// (array or structure): the bit offset and bit size of the element or
// member it selects, which the caller computes from the type layer
// (array element size / stride, or member bit offset/size).
type Subscript struct {
	BitOffset uint64
	BitSize   uint64
}

// ResolveIndexPath narrows loc by successively applying each Subscript
// in path via SubRange, producing the value location of the nested
// element or member the path addresses.
func ResolveIndexPath(loc *ValueLocation, path []Subscript) *ValueLocation {
	cur := loc
	for _, s := range path {
		cur = cur.SubRange(s.BitOffset, s.BitSize)
	}
	return cur
}
