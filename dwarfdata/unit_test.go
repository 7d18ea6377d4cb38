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
	"encoding/binary"
	"testing"

	"github.com/quietloop/dwarfengine/dwarfdata"
	"github.com/quietloop/dwarfengine/logger"
	"github.com/quietloop/dwarfengine/test"
)

// buildSingleDIEAbbrevs builds an abbreviation table with one code: a
// childless compile unit carrying DW_AT_name (string).
func buildSingleDIEAbbrevs() []byte {
	var b []byte
	b = append(b, 0x01)
	b = append(b, byte(dwarfdata.TagCompileUnit))
	b = append(b, 0x00)
	b = append(b, byte(dwarfdata.AttrName), byte(dwarfdata.FormString))
	b = append(b, 0x00, 0x00)
	b = append(b, 0x00)
	return b
}

// buildDwarf4Unit encodes one minimal DWARF4 compilation unit: header
// (initial length, version 4, abbrev_offset 0, address_size 4) followed
// by a single childless compile_unit DIE named name.
func buildDwarf4Unit(name string) []byte {
	var body []byte
	body = append(body, 0x01)
	body = append(body, name...)
	body = append(body, 0x00)

	var header []byte
	header = append(header, 0, 0)       // version placeholder, patched below
	header = append(header, 0, 0, 0, 0) // abbrev_offset = 0
	header = append(header, 4)          // address_size

	unitContent := append(header, body...)
	binary.LittleEndian.PutUint16(unitContent[0:2], 4)

	length := len(unitContent)
	var out []byte
	out = append(out, 0, 0, 0, 0) // initial length placeholder
	binary.LittleEndian.PutUint32(out[0:4], uint32(length))
	out = append(out, unitContent...)
	return out
}

func TestManagerParseInfoAndResolveGlobalRef(t *testing.T) {
	abbrevData := buildSingleDIEAbbrevs()
	unitData := buildDwarf4Unit("unit.c")

	cache := dwarfdata.NewAbbrevTableCache(abbrevData)
	mgr := dwarfdata.NewManager(cache, logger.NewLogger(16))

	err := mgr.ParseInfo(unitData, binary.LittleEndian)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, len(mgr.CompUnits), 1)

	cu := mgr.CompUnits[0]
	test.ExpectEquality(t, cu.Root.Name(), "unit.c")
	test.ExpectEquality(t, cu.Version, uint16(4))
	test.ExpectEquality(t, cu.AddressSize, 4)

	dieOffset := uint64(cu.HeaderOffset) + cu.Root.Offset
	resolved, err := mgr.ResolveGlobalRef(dieOffset)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, resolved, cu.Root)
}

func TestManagerResolveGlobalRefMissing(t *testing.T) {
	abbrevData := buildSingleDIEAbbrevs()
	unitData := buildDwarf4Unit("unit.c")

	cache := dwarfdata.NewAbbrevTableCache(abbrevData)
	mgr := dwarfdata.NewManager(cache, logger.NewLogger(16))
	err := mgr.ParseInfo(unitData, binary.LittleEndian)
	test.ExpectSuccess(t, err == nil)

	_, err = mgr.ResolveGlobalRef(0xffffff)
	test.ExpectFailure(t, err == nil)
}
