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

package dwarfdata_test

import (
	"testing"

	"github.com/quietloop/dwarfengine/dwarfdata"
	"github.com/quietloop/dwarfengine/test"
)

func TestValueLocationSubRangeLittleEndian(t *testing.T) {
	loc := dwarfdata.NewValueLocation(false)
	loc.AddPiece(dwarfdata.ValuePiece{Kind: dwarfdata.PieceMemory, Address: 0x1000, Size: 4})
	loc.AddPiece(dwarfdata.ValuePiece{Kind: dwarfdata.PieceMemory, Address: 0x1004, Size: 4})

	// bitOffset is measured from the most significant bit of the whole
	// value; for a little-endian target the MSB lives in the
	// higher-addressed piece, so the top 32 bits select the second piece.
	sub := loc.SubRange(0, 32)
	test.ExpectEquality(t, len(sub.Pieces), 1)
	test.ExpectEquality(t, sub.Pieces[0].Address, uint64(0x1004))
	test.ExpectEquality(t, sub.Pieces[0].Size, uint64(4))
}

func TestValueLocationSubRangeBeyondWidth(t *testing.T) {
	loc := dwarfdata.NewValueLocation(false)
	loc.AddPiece(dwarfdata.ValuePiece{Kind: dwarfdata.PieceMemory, Address: 0x2000, Size: 4})

	sub := loc.SubRange(64, 8)
	test.ExpectEquality(t, len(sub.Pieces), 0)
}

func TestValueLocationWritable(t *testing.T) {
	loc := dwarfdata.NewValueLocation(false)
	loc.AddPiece(dwarfdata.ValuePiece{Kind: dwarfdata.PieceMemory, Address: 0x3000, Size: 4, Writable: true})
	test.ExpectEquality(t, loc.Writable(), true)

	loc.AddPiece(dwarfdata.ValuePiece{Kind: dwarfdata.PieceRegister, Register: 3, Size: 4, Writable: false})
	test.ExpectEquality(t, loc.Writable(), false)
}

func TestResolveIndexPath(t *testing.T) {
	loc := dwarfdata.NewValueLocation(false)
	loc.AddPiece(dwarfdata.ValuePiece{Kind: dwarfdata.PieceMemory, Address: 0x4000, Size: 12})

	// arr[1] of a 3-element, 4-byte-stride int array living at 0x4000.
	narrowed := dwarfdata.ResolveIndexPath(loc, []dwarfdata.Subscript{
		{BitOffset: 32, BitSize: 32},
	})
	test.ExpectEquality(t, len(narrowed.Pieces), 1)
	test.ExpectEquality(t, narrowed.Pieces[0].Address, uint64(0x4004))
	test.ExpectEquality(t, narrowed.Pieces[0].Size, uint64(4))
}
