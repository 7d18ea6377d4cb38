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
	"encoding/binary"
	"sort"

	"github.com/quietloop/dwarfengine/logger"

	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// FileEntry is one entry of a unit's source-file table: a name and an
// index into its include-directory table.
type FileEntry struct {
	Name    string
	DirIdx  uint64
	ModTime uint64
	Length  uint64
}

// Unit is the data shared by compilation units and type units: header
// placement, address/offset format, the DIE graph, and the source-file
// tables a line-number program refers back into, per §3.1.
type Unit struct {
	HeaderOffset  int64
	ContentOffset int64
	TotalSize     int64
	AbbrevOffset  int64
	AddressSize   int
	Dwarf64       bool
	Version       uint16

	Abbrevs *AbbrevTable

	BaseAddress uint64
	MaxAddress  uint64
	Language    uint64

	IncludeDirs []string
	Files       []FileEntry

	Root    *DIE
	Entries []*DIE // ascending by offset, per §3.1

	// LineProgramOffset is the unit's DW_AT_stmt_list value: the byte
	// offset into `.debug_line` of this unit's line-number program. The
	// parsed program itself is owned by the file façade (package
	// dwarffile), which imports both dwarfdata and the line-program
	// package and so is the one place both can be named.
	LineProgramOffset uint64
	HasLineProgram    bool
}

// ContainsAbsoluteOffset reports whether offset falls within this unit's
// byte range in `.debug_info`.
func (u *Unit) ContainsAbsoluteOffset(offset int64) bool {
	return offset >= u.HeaderOffset && offset < u.HeaderOffset+u.TotalSize
}

// EntryForOffset looks up a DIE by unit-relative offset via binary
// search, per §3.1's invariant that Entries is ascending.
func (u *Unit) EntryForOffset(offset uint64) (*DIE, bool) {
	return EntryForOffset(u.Entries, offset)
}

// CompilationUnit is a Unit plus the attributes specific to
// `.debug_info` compilation units (dwarf_unit_kind_compilation).
type CompilationUnit struct {
	Unit
}

// TypeUnit is a Unit plus the 64-bit type signature and type-DIE offset
// specific to `.debug_types` entries.
type TypeUnit struct {
	Unit
	Signature  uint64
	TypeOffset uint64 // unit-relative offset of the exported type DIE
}

// TypeDIE returns the DIE the type unit's signature refers to.
func (t *TypeUnit) TypeDIE() (*DIE, bool) {
	return t.EntryForOffset(t.TypeOffset)
}

// Manager owns every compilation unit and type unit parsed from one
// ELF image's `.debug_info`/`.debug_types` sections, and answers the
// cross-unit lookups described in §4.5: binary search by header offset
// for global references, and signature lookup for type-unit references.
type Manager struct {
	CompUnits []*CompilationUnit
	TypeUnits map[uint64]*TypeUnit

	abbrevs *AbbrevTableCache
	log     *logger.Log
}

// NewManager creates an empty Manager backed by the given abbreviation
// table cache.
func NewManager(abbrevs *AbbrevTableCache, log *logger.Log) *Manager {
	return &Manager{
		TypeUnits: make(map[uint64]*TypeUnit),
		abbrevs:   abbrevs,
		log:       log,
	}
}

// The DWARF version range and the address sizes accepted by this engine,
// per §4.5.
const maxSupportedVersion = 5
const minSupportedVersion = 2

func addressSizeSupported(n int) bool { return n == 4 || n == 8 }

// ParseInfo parses every compilation unit in data (the raw bytes of
// `.debug_info`) into m.
func (m *Manager) ParseInfo(data []byte, byteOrder binary.ByteOrder) error {
	pos := int64(0)
	for pos < int64(len(data)) {
		u, consumed, err := m.parseCompUnitHeader(data, byteOrder, pos)
		if err != nil {
			return err
		}
		if err := m.parseUnitBody(&u.Unit, data, byteOrder); err != nil {
			return err
		}
		m.CompUnits = append(m.CompUnits, u)
		pos += consumed
	}
	m.sortCompUnits()
	return nil
}

// ParseTypes parses every type unit in data (the raw bytes of
// `.debug_types`) into m, inserting each into the signature map.
func (m *Manager) ParseTypes(data []byte, byteOrder binary.ByteOrder) error {
	pos := int64(0)
	for pos < int64(len(data)) {
		tu, consumed, err := m.parseTypeUnitHeader(data, byteOrder, pos)
		if err != nil {
			return err
		}
		if err := m.parseUnitBody(&tu.Unit, data, byteOrder); err != nil {
			return err
		}
		m.TypeUnits[tu.Signature] = tu
		pos += consumed
	}
	return nil
}

// parseCompUnitHeader reads one `.debug_info` unit header starting at
// pos and returns the partially-initialized unit plus the total number
// of bytes (including the initial length field) the unit occupies.
func (m *Manager) parseCompUnitHeader(data []byte, byteOrder binary.ByteOrder, pos int64) (*CompilationUnit, int64, error) {
	r := reader.New(data, byteOrder, 4)
	r.SeekAbsolute(pos)

	headerOffset := pos
	length, dwarf64 := r.ReadInitialLength()
	lengthFieldSize := int64(4)
	if dwarf64 {
		lengthFieldSize = 12
	}
	totalSize := lengthFieldSize + int64(length)

	version := r.Read16(0)
	if version < minSupportedVersion || version > maxSupportedVersion {
		return nil, 0, dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.UnitBadVersion, version))
	}

	u := &CompilationUnit{}
	u.HeaderOffset = headerOffset
	u.TotalSize = totalSize
	u.Dwarf64 = dwarf64
	u.Version = version

	if version >= 5 {
		// DWARF5: unit_type, address_size, abbrev_offset
		r.Read8(0) // unit_type, not distinguished by this engine
		addrSize := r.Read8(0)
		if !addressSizeSupported(int(addrSize)) {
			return nil, 0, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.UnitBadAddressSize, addrSize))
		}
		u.AddressSize = int(addrSize)
		u.AbbrevOffset = int64(readSecOffset(r, dwarf64))
	} else {
		// DWARF2-4: abbrev_offset, address_size
		u.AbbrevOffset = int64(readSecOffset(r, dwarf64))
		addrSize := r.Read8(0)
		if !addressSizeSupported(int(addrSize)) {
			return nil, 0, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.UnitBadAddressSize, addrSize))
		}
		u.AddressSize = int(addrSize)
	}

	u.ContentOffset = r.Offset()

	if r.HasOverflow() {
		return nil, 0, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "compilation unit header"))
	}

	return u, totalSize, nil
}

// parseTypeUnitHeader reads one `.debug_types` unit header, which is a
// compilation-unit header extended with a 64-bit signature and a
// type-DIE offset.
func (m *Manager) parseTypeUnitHeader(data []byte, byteOrder binary.ByteOrder, pos int64) (*TypeUnit, int64, error) {
	cu, totalSize, err := m.parseCompUnitHeaderTypeVariant(data, byteOrder, pos)
	if err != nil {
		return nil, 0, err
	}
	return cu, totalSize, nil
}

// parseCompUnitHeaderTypeVariant duplicates parseCompUnitHeader's field
// order but additionally reads the signature and type-offset fields that
// sit between address_size and the DIE content in a `.debug_types` unit.
func (m *Manager) parseCompUnitHeaderTypeVariant(data []byte, byteOrder binary.ByteOrder, pos int64) (*TypeUnit, int64, error) {
	r := reader.New(data, byteOrder, 4)
	r.SeekAbsolute(pos)

	headerOffset := pos
	length, dwarf64 := r.ReadInitialLength()
	lengthFieldSize := int64(4)
	if dwarf64 {
		lengthFieldSize = 12
	}
	totalSize := lengthFieldSize + int64(length)

	version := r.Read16(0)
	if version < minSupportedVersion || version > maxSupportedVersion {
		return nil, 0, dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.UnitBadVersion, version))
	}

	tu := &TypeUnit{}
	tu.HeaderOffset = headerOffset
	tu.TotalSize = totalSize
	tu.Dwarf64 = dwarf64
	tu.Version = version

	if version >= 5 {
		r.Read8(0) // unit_type
		addrSize := r.Read8(0)
		if !addressSizeSupported(int(addrSize)) {
			return nil, 0, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.UnitBadAddressSize, addrSize))
		}
		tu.AddressSize = int(addrSize)
		tu.AbbrevOffset = int64(readSecOffset(r, dwarf64))
		tu.Signature = r.Read64(0)
		tu.TypeOffset = readSecOffset(r, dwarf64)
	} else {
		tu.AbbrevOffset = int64(readSecOffset(r, dwarf64))
		addrSize := r.Read8(0)
		if !addressSizeSupported(int(addrSize)) {
			return nil, 0, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.UnitBadAddressSize, addrSize))
		}
		tu.AddressSize = int(addrSize)
		tu.Signature = r.Read64(0)
		tu.TypeOffset = readSecOffset(r, dwarf64)
	}

	tu.ContentOffset = r.Offset()

	if r.HasOverflow() {
		return nil, 0, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "type unit header"))
	}

	return tu, totalSize, nil
}

// parseUnitBody parses the DIE tree for u's content, using the
// abbreviation table named by u.AbbrevOffset.
func (m *Manager) parseUnitBody(u *Unit, data []byte, byteOrder binary.ByteOrder) error {
	abbrevs, err := m.abbrevs.Get(u.AbbrevOffset)
	if err != nil {
		return err
	}
	u.Abbrevs = abbrevs

	// DIE offsets are recorded relative to the unit's header offset, since
	// that is what local reference forms (ref1/ref2/ref4/ref8/ref_udata)
	// encode; parsing from a sub-reader anchored at HeaderOffset makes
	// ParseDIETree's recorded offsets line up with those reference values
	// without any separate translation step.
	unit := reader.New(data, byteOrder, u.AddressSize).RestrictedReader(u.HeaderOffset, u.TotalSize)
	unit.SeekAbsolute(u.ContentOffset - u.HeaderOffset)

	root, entries, err := ParseDIETree(unit, abbrevs, u.Dwarf64, m.log)
	if err != nil {
		return err
	}
	u.Root = root
	u.Entries = entries

	if lowpc, ok := root.Attr(AttrLowpc); ok && lowpc.Class == ClassAddress {
		u.BaseAddress = lowpc.Addr
	}
	if language, ok := root.Attr(AttrLanguage); ok && language.Class == ClassConstantUnsigned {
		u.Language = language.Const
	}
	if stmtList, ok := root.Attr(AttrStmtList); ok {
		// Pre-DWARF4 producers encode DW_AT_stmt_list with FormData4/
		// FormData8 rather than FormSecOffset; both land here as either
		// class depending on which form classByForm mapped it to.
		switch stmtList.Class {
		case ClassSecOffset:
			u.LineProgramOffset = stmtList.SecOffs
			u.HasLineProgram = true
		case ClassConstantUnsigned:
			u.LineProgramOffset = stmtList.Const
			u.HasLineProgram = true
		}
	}
	if compDir, ok := root.Attr(AttrCompDir); ok && compDir.Class == ClassString {
		u.IncludeDirs = append(u.IncludeDirs, compDir.Str)
	}

	return nil
}

func (m *Manager) sortCompUnits() {
	sort.Slice(m.CompUnits, func(i, j int) bool {
		return m.CompUnits[i].HeaderOffset < m.CompUnits[j].HeaderOffset
	})
}

// UnitForOffset binary-searches compilation units by header offset for
// the one containing the given absolute `.debug_info` offset, per
// §4.5's global reference resolution.
func (m *Manager) UnitForOffset(offset int64) (*CompilationUnit, bool) {
	idx := sort.Search(len(m.CompUnits), func(i int) bool {
		return m.CompUnits[i].HeaderOffset+m.CompUnits[i].TotalSize > offset
	})
	if idx < len(m.CompUnits) && m.CompUnits[idx].ContainsAbsoluteOffset(offset) {
		return m.CompUnits[idx], true
	}
	return nil, false
}

// ResolveGlobalRef resolves an absolute `.debug_info` offset to a DIE:
// binary-search units by header offset, then look up the DIE by
// (offset - unit.HeaderOffset) in that unit's entry array.
func (m *Manager) ResolveGlobalRef(offset uint64) (*DIE, error) {
	u, ok := m.UnitForOffset(int64(offset))
	if !ok {
		return nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.UnitGlobalRefUnknown, offset))
	}
	relative := uint64(int64(offset) - u.HeaderOffset)
	d, ok := u.EntryForOffset(relative)
	if !ok {
		return nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.DIEOffsetNotFound, offset))
	}
	return d, nil
}

// ResolveSignatureRef resolves a type-unit signature to its exported
// type DIE.
func (m *Manager) ResolveSignatureRef(signature uint64) (*DIE, error) {
	tu, ok := m.TypeUnits[signature]
	if !ok {
		return nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.UnitSignatureUnknown, signature))
	}
	d, ok := tu.TypeDIE()
	if !ok {
		return nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.DIEOffsetNotFound, tu.TypeOffset))
	}
	return d, nil
}

// ResolveRef resolves any Ref (local, global, or signature) relative to
// the unit it was read from, per §3.3.
func (m *Manager) ResolveRef(owner *Unit, ref Ref) (*DIE, error) {
	switch ref.Kind {
	case RefLocal:
		d, ok := owner.EntryForOffset(ref.Offset)
		if !ok {
			return nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
				dwarferrors.Errorf(dwarferrors.DIEOffsetNotFound, ref.Offset))
		}
		return d, nil
	case RefGlobal:
		return m.ResolveGlobalRef(ref.Offset)
	case RefSignature:
		return m.ResolveSignatureRef(ref.Signature)
	}
	return nil, dwarferrors.Wrap(dwarferrors.BadData,
		dwarferrors.Errorf(dwarferrors.DIEOffsetNotFound, ref.Offset))
}
