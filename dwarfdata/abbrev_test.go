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

// buildAbbrevTable encodes a tiny abbreviation table with two codes:
//  1. DW_TAG_compile_unit, has children, one attribute (DW_AT_name, FormString)
//  2. DW_TAG_subprogram, no children, one attribute (DW_AT_low_pc, FormAddr)
func buildAbbrevTable() []byte {
	var b []byte
	b = append(b, 0x01) // code 1
	b = append(b, byte(dwarfdata.TagCompileUnit))
	b = append(b, 0x01) // has_children = true
	b = append(b, byte(dwarfdata.AttrName))
	b = append(b, byte(dwarfdata.FormString))
	b = append(b, 0x00, 0x00) // attribute list terminator

	b = append(b, 0x02) // code 2
	b = append(b, byte(dwarfdata.TagSubprogram))
	b = append(b, 0x00) // has_children = false
	b = append(b, byte(dwarfdata.AttrLowpc))
	b = append(b, byte(dwarfdata.FormAddr))
	b = append(b, 0x00, 0x00)

	b = append(b, 0x00) // table terminator
	return b
}

func TestParseAbbrevTable(t *testing.T) {
	data := buildAbbrevTable()
	tbl, err := dwarfdata.ParseAbbrevTable(data, 0)
	test.ExpectSuccess(t, err == nil)

	e1, ok := tbl.Entry(1)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, e1.Tag, dwarfdata.TagCompileUnit)
	test.ExpectEquality(t, e1.HasChildren, true)
	test.ExpectEquality(t, len(e1.Attrs), 1)

	e2, ok := tbl.Entry(2)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, e2.Tag, dwarfdata.TagSubprogram)
	test.ExpectEquality(t, e2.HasChildren, false)

	_, ok = tbl.Entry(3)
	test.ExpectFailure(t, ok)
}

func TestAbbrevTableCacheReusesTable(t *testing.T) {
	data := buildAbbrevTable()
	cache := dwarfdata.NewAbbrevTableCache(data)

	t1, err := cache.Get(0)
	test.ExpectSuccess(t, err == nil)
	t2, err := cache.Get(0)
	test.ExpectSuccess(t, err == nil)

	if t1 != t2 {
		t.Errorf("expected cached table to be reused, got distinct instances")
	}
}
