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
	"github.com/quietloop/dwarfengine/reader"
	"github.com/quietloop/dwarfengine/test"
)

// buildDIETreeAbbrevs encodes a table with:
//   - code 1: DW_TAG_compile_unit, has children, DW_AT_name (string)
//   - code 2: DW_TAG_subprogram, no children, DW_AT_name (string),
//     DW_AT_sibling (ref4)
func buildDIETreeAbbrevs() []byte {
	var b []byte
	b = append(b, 0x01)
	b = append(b, byte(dwarfdata.TagCompileUnit))
	b = append(b, 0x01)
	b = append(b, byte(dwarfdata.AttrName), byte(dwarfdata.FormString))
	b = append(b, 0x00, 0x00)

	b = append(b, 0x02)
	b = append(b, byte(dwarfdata.TagSubprogram))
	b = append(b, 0x00)
	b = append(b, byte(dwarfdata.AttrName), byte(dwarfdata.FormString))
	b = append(b, byte(dwarfdata.AttrSibling), byte(dwarfdata.FormRef4))
	b = append(b, 0x00, 0x00)

	b = append(b, 0x00)
	return b
}

// buildDIETreeContent encodes: root compile_unit "main.c" with two
// subprogram children "foo" and "bar", null-terminated, with the first
// child's sibling attribute pointing at the second child's offset.
func buildDIETreeContent() []byte {
	var content []byte

	content = append(content, 0x01) // root: code 1
	content = append(content, "main.c"...)
	content = append(content, 0x00)

	fooOffset := len(content)
	_ = fooOffset
	content = append(content, 0x02) // child: code 2 (foo)
	content = append(content, "foo"...)
	content = append(content, 0x00)
	siblingFieldPos := len(content)
	content = append(content, 0, 0, 0, 0) // sibling placeholder, patched below

	barOffset := len(content)
	content = append(content, 0x02) // child: code 2 (bar)
	content = append(content, "bar"...)
	content = append(content, 0x00)
	content = append(content, 0, 0, 0, 0) // sibling field, unused

	content = append(content, 0x00) // end of root's children

	binary.LittleEndian.PutUint32(content[siblingFieldPos:], uint32(barOffset))

	return content
}

func TestParseDIETree(t *testing.T) {
	abbrevData := buildDIETreeAbbrevs()
	abbrevs, err := dwarfdata.ParseAbbrevTable(abbrevData, 0)
	test.ExpectSuccess(t, err == nil)

	content := buildDIETreeContent()
	r := reader.New(content, binary.LittleEndian, 4)

	log := logger.NewLogger(16)
	root, entries, err := dwarfdata.ParseDIETree(r, abbrevs, false, log)
	test.ExpectSuccess(t, err == nil)

	test.ExpectEquality(t, root.Tag, dwarfdata.TagCompileUnit)
	test.ExpectEquality(t, root.Name(), "main.c")
	test.ExpectEquality(t, len(root.Children), 2)
	test.ExpectEquality(t, len(entries), 3)

	foo := root.Children[0]
	bar := root.Children[1]
	test.ExpectEquality(t, foo.Name(), "foo")
	test.ExpectEquality(t, bar.Name(), "bar")

	if foo.Sibling() != bar {
		t.Errorf("expected foo's sibling to resolve to bar")
	}

	found, ok := dwarfdata.EntryForOffset(entries, bar.Offset)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, found, bar)
}

func TestParseDIETreeUnknownAbbrevCode(t *testing.T) {
	abbrevData := buildDIETreeAbbrevs()
	abbrevs, err := dwarfdata.ParseAbbrevTable(abbrevData, 0)
	test.ExpectSuccess(t, err == nil)

	content := []byte{0x09} // code 9 never declared
	r := reader.New(content, binary.LittleEndian, 4)

	_, _, err = dwarfdata.ParseDIETree(r, abbrevs, false, nil)
	test.ExpectFailure(t, err == nil)
}
