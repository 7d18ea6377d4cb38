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

import (
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// AbbrevAttr is one (name, form[, implicit_const]) pair in an abbreviation
// entry's attribute list.
type AbbrevAttr struct {
	Name             Attr
	Form             Form
	ImplicitConst    int64
	HasImplicitConst bool
}

// AbbrevEntry describes one abbreviation code: the tag it produces,
// whether DIEs using it have children, and its ordered attribute list.
type AbbrevEntry struct {
	Code        uint64
	Tag         Tag
	HasChildren bool
	Attrs       []AbbrevAttr
}

// AbbrevTable is one parsed `.debug_abbrev` table, indexed by abbreviation
// code. Tables are shared across every compilation unit that references
// the same `.debug_abbrev` offset, matching §4.3.
type AbbrevTable struct {
	Offset  int64
	entries map[uint64]*AbbrevEntry
}

// Entry returns the abbreviation entry for code, or (nil, false) if code
// does not appear in this table.
func (t *AbbrevTable) Entry(code uint64) (*AbbrevEntry, bool) {
	e, ok := t.entries[code]
	return e, ok
}

// ParseAbbrevTable parses one `.debug_abbrev` table starting at offset
// within data. Parsing stops at the null entry (code == 0) that
// terminates the table, per §4.3.
func ParseAbbrevTable(data []byte, offset int64) (*AbbrevTable, error) {
	r := reader.New(data, nil, 4)
	r.SeekAbsolute(offset)

	t := &AbbrevTable{
		Offset:  offset,
		entries: make(map[uint64]*AbbrevEntry),
	}

	for {
		code := r.ReadULEB128(0)
		if r.HasOverflow() {
			return nil, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.AbbrevBadCode, code))
		}
		if code == 0 {
			break
		}

		tag := Tag(r.ReadULEB128(0))
		hasChildren := r.Read8(0) != 0

		entry := &AbbrevEntry{
			Code:        code,
			Tag:         tag,
			HasChildren: hasChildren,
		}

		for {
			name := Attr(r.ReadULEB128(0))
			form := Form(r.ReadULEB128(0))
			if name == 0 && form == 0 {
				break
			}

			a := AbbrevAttr{Name: name, Form: form}
			if form == FormImplicitConst {
				a.ImplicitConst = r.ReadSLEB128(0)
				a.HasImplicitConst = true
			}
			entry.Attrs = append(entry.Attrs, a)

			if r.HasOverflow() {
				return nil, dwarferrors.Wrap(dwarferrors.BadData,
					dwarferrors.Errorf(dwarferrors.AbbrevBadCode, code))
			}
		}

		if _, dup := t.entries[code]; dup {
			return nil, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.AbbrevDuplicate, code, offset))
		}
		t.entries[code] = entry
	}

	return t, nil
}

// AbbrevTableCache owns every distinct AbbrevTable parsed so far, keyed by
// its offset into `.debug_abbrev`, so units sharing a table do not
// duplicate the parse.
type AbbrevTableCache struct {
	data   []byte
	tables map[int64]*AbbrevTable
}

// NewAbbrevTableCache creates a cache over the raw bytes of the
// `.debug_abbrev` section.
func NewAbbrevTableCache(data []byte) *AbbrevTableCache {
	return &AbbrevTableCache{
		data:   data,
		tables: make(map[int64]*AbbrevTable),
	}
}

// Get returns the AbbrevTable at offset, parsing it on first access.
func (c *AbbrevTableCache) Get(offset int64) (*AbbrevTable, error) {
	if t, ok := c.tables[offset]; ok {
		return t, nil
	}
	t, err := ParseAbbrevTable(c.data, offset)
	if err != nil {
		return nil, err
	}
	c.tables[offset] = t
	return t, nil
}
