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

package reader_test

import (
	"encoding/binary"
	"testing"

	"github.com/quietloop/dwarfengine/reader"
	"github.com/quietloop/dwarfengine/test"
)

func TestFixedWidth(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := reader.New(data, binary.LittleEndian, 4)

	test.ExpectEquality(t, r.Read8(0), uint8(0x01))
	test.ExpectEquality(t, r.Read16(0), uint16(0x0302))
	test.ExpectEquality(t, r.Read32(0), uint32(0x07060504))
	test.ExpectFailure(t, r.HasOverflow())
}

func TestOverflowIsSticky(t *testing.T) {
	data := []byte{0x01, 0x02}
	r := reader.New(data, binary.LittleEndian, 4)

	test.ExpectEquality(t, r.Read32(0xdeadbeef), uint32(0xdeadbeef))
	test.ExpectSuccess(t, r.HasOverflow())

	// once overflowed, every subsequent read returns its default
	test.ExpectEquality(t, r.Read8(0xff), uint8(0xff))
	test.ExpectSuccess(t, r.HasOverflow())
}

func TestULEB128(t *testing.T) {
	// page 218, figure 46 of the DWARF4 Standard: 624485 encodes as
	// 0xe5 0x8e 0x26
	data := []byte{0xe5, 0x8e, 0x26}
	r := reader.New(data, binary.LittleEndian, 4)
	test.ExpectEquality(t, r.ReadULEB128(0), uint64(624485))
}

func TestSLEB128(t *testing.T) {
	// page 218, figure 47 of the DWARF4 Standard: -624485 encodes as
	// 0x9b 0xf1 0x59
	data := []byte{0x9b, 0xf1, 0x59}
	r := reader.New(data, binary.LittleEndian, 4)
	test.ExpectEquality(t, r.ReadSLEB128(0), int64(-624485))
}

func TestReadString(t *testing.T) {
	data := []byte("hello\x00world")
	r := reader.New(data, binary.LittleEndian, 4)
	test.ExpectEquality(t, r.ReadString(""), "hello")
	test.ExpectEquality(t, r.Read8(0), uint8('w'))
}

func TestReadStringMissingTerminator(t *testing.T) {
	data := []byte("no terminator")
	r := reader.New(data, binary.LittleEndian, 4)
	test.ExpectEquality(t, r.ReadString("default"), "default")
	test.ExpectSuccess(t, r.HasOverflow())
}

func TestInitialLength32(t *testing.T) {
	data := []byte{0x10, 0x00, 0x00, 0x00}
	r := reader.New(data, binary.LittleEndian, 4)
	length, is64 := r.ReadInitialLength()
	test.ExpectEquality(t, length, uint64(0x10))
	test.ExpectFailure(t, is64)
}

func TestInitialLength64(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	r := reader.New(data, binary.LittleEndian, 4)
	length, is64 := r.ReadInitialLength()
	test.ExpectEquality(t, length, uint64(0x20))
	test.ExpectSuccess(t, is64)
}

func TestRestrictedReader(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	r := reader.New(data, binary.LittleEndian, 4)
	r.Skip(2)
	sub := r.RestrictedReader(r.Offset(), 3)
	test.ExpectEquality(t, sub.Read8(0), uint8(2))
	test.ExpectEquality(t, sub.Read8(0), uint8(3))
	test.ExpectEquality(t, sub.Read8(0), uint8(4))
	// the sub-reader cannot read past its restricted range
	test.ExpectEquality(t, sub.Read8(0xff), uint8(0xff))
	test.ExpectSuccess(t, sub.HasOverflow())
}

func TestRestrictedReaderOutOfRange(t *testing.T) {
	data := []byte{0, 1, 2}
	r := reader.New(data, binary.LittleEndian, 4)
	sub := r.RestrictedReader(1, 10)
	test.ExpectSuccess(t, sub.HasOverflow())
}

func TestAddressSize(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data, 0x1122334455667788)
	r := reader.New(data, binary.LittleEndian, 8)
	test.ExpectEquality(t, r.ReadAddress(0), uint64(0x1122334455667788))
}
