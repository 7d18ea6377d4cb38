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

package line

import (
	"path"

	"github.com/quietloop/dwarfengine/dwarfdata"
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

const maxSupportedVersion = 5
const minSupportedVersion = 2

// Header holds the decoded statement-program prologue, per §4.6: the
// fields needed to drive the opcode state machine plus the unit's
// directory and file-name tables.
type Header struct {
	Version uint16
	Dwarf64 bool

	MinInstructionLength int
	MaxOpsPerInstruction int
	DefaultIsStmt        bool
	LineBase             int
	LineRange            int
	OpcodeBase           int
	OpcodeLengths        []int

	IncludeDirs []string
	Files       []dwarfdata.FileEntry

	// ProgramOffset and EndOffset bound the opcode stream within the
	// reader the header was parsed from.
	ProgramOffset int64
	EndOffset     int64
}

// parseHeader decodes one statement-program prologue starting at r's
// current position. compDir seeds directory index 0 for the legacy
// (pre-DWARF5) directory table. debugStr/debugLineStr resolve
// DW_FORM_strp/DW_FORM_line_strp offsets encountered in a DWARF5 format
// descriptor; either may be nil if the corresponding section is absent.
func parseHeader(r *reader.Reader, addressSize int, compDir string, debugStr, debugLineStr []byte) (*Header, error) {
	hdrOffset := r.Offset()
	unitLength, dwarf64 := r.ReadInitialLength()
	lengthFieldSize := int64(4)
	if dwarf64 {
		lengthFieldSize = 12
	}
	endOffset := hdrOffset + lengthFieldSize + int64(unitLength)

	h := &Header{Dwarf64: dwarf64}
	h.Version = r.Read16(0)
	if h.Version < minSupportedVersion || h.Version > maxSupportedVersion {
		return nil, dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.LineBadVersion, h.Version))
	}

	if h.Version >= 5 {
		r.Read8(0) // address_size, already known to the caller
		if seg := r.Read8(0); seg != 0 {
			return nil, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.UnitBadSegmentSize, seg))
		}
	}

	var headerLength uint64
	if dwarf64 {
		headerLength = r.Read64(0)
	} else {
		headerLength = uint64(r.Read32(0))
	}
	h.ProgramOffset = r.Offset() + int64(headerLength)

	h.MinInstructionLength = int(r.Read8(0))
	if h.Version >= 4 {
		h.MaxOpsPerInstruction = int(r.Read8(0))
		if h.MaxOpsPerInstruction != 1 {
			return nil, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.UnitBadOpIndex, h.MaxOpsPerInstruction))
		}
	} else {
		h.MaxOpsPerInstruction = 1
	}
	h.DefaultIsStmt = r.Read8(0) != 0
	h.LineBase = int(int8(r.Read8(0)))
	h.LineRange = int(r.Read8(0))
	h.OpcodeBase = int(r.Read8(0))

	h.OpcodeLengths = make([]int, h.OpcodeBase)
	for i := 1; i < h.OpcodeBase; i++ {
		h.OpcodeLengths[i] = int(r.Read8(0))
	}
	for i, length := range h.OpcodeLengths {
		if known, ok := knownOpcodeLengths[i]; ok && known != length {
			return nil, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.LineBadOpcode, i))
		}
	}

	if h.Version >= 5 {
		if err := h.parseDirsAndFilesV5(r, addressSize, debugStr, debugLineStr); err != nil {
			return nil, err
		}
	} else {
		h.parseDirsAndFilesLegacy(r, compDir)
	}

	h.EndOffset = endOffset
	if r.HasOverflow() {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "line header"))
	}
	return h, nil
}

// parseDirsAndFilesLegacy decodes the DWARF2-4 include-directory and
// file-name tables: two NUL-terminated-string lists, each ended by an
// empty string.
func (h *Header) parseDirsAndFilesLegacy(r *reader.Reader, compDir string) {
	h.IncludeDirs = append(h.IncludeDirs, compDir)

	for {
		dir := r.ReadString("")
		if dir == "" {
			break
		}
		if !path.IsAbs(dir) {
			dir = path.Join(h.IncludeDirs[0], dir)
		}
		h.IncludeDirs = append(h.IncludeDirs, dir)
	}

	// File numbering starts at 1; leave index 0 unused.
	h.Files = make([]dwarfdata.FileEntry, 1)
	for {
		name := r.ReadString("")
		if name == "" {
			break
		}
		dirIdx := r.ReadULEB128(0)
		mtime := r.ReadULEB128(0)
		length := r.ReadULEB128(0)
		h.Files = append(h.Files, dwarfdata.FileEntry{Name: name, DirIdx: dirIdx, ModTime: mtime, Length: length})
	}
}

// lnctFormat is one (content_code, form) pair from a DWARF5 format
// descriptor list.
type lnctFormat struct {
	Code uint64
	Form dwarfdata.Form
}

// parseDirsAndFilesV5 decodes the DWARF5 directory_entry_format /
// file_name_entry_format tables, section 6.2.4.1. Each table is a list
// of (content_code, form) descriptors followed by a count and that many
// entries, each entry carrying one value per descriptor.
func (h *Header) parseDirsAndFilesV5(r *reader.Reader, addressSize int, debugStr, debugLineStr []byte) error {
	dirFormats, err := readFormatDescriptors(r)
	if err != nil {
		return err
	}
	dirCount := r.ReadULEB128(0)
	for i := uint64(0); i < dirCount; i++ {
		entry, err := readLNCTEntry(r, dirFormats, addressSize, debugStr, debugLineStr)
		if err != nil {
			return err
		}
		h.IncludeDirs = append(h.IncludeDirs, entry.path)
	}

	fileFormats, err := readFormatDescriptors(r)
	if err != nil {
		return err
	}
	fileCount := r.ReadULEB128(0)
	for i := uint64(0); i < fileCount; i++ {
		entry, err := readLNCTEntry(r, fileFormats, addressSize, debugStr, debugLineStr)
		if err != nil {
			return err
		}
		h.Files = append(h.Files, dwarfdata.FileEntry{
			Name:    entry.path,
			DirIdx:  entry.dirIndex,
			ModTime: entry.timestamp,
			Length:  entry.size,
		})
	}
	return nil
}

func readFormatDescriptors(r *reader.Reader) ([]lnctFormat, error) {
	count := int(r.Read8(0))
	formats := make([]lnctFormat, count)
	for i := range formats {
		formats[i] = lnctFormat{
			Code: r.ReadULEB128(0),
			Form: dwarfdata.Form(r.ReadULEB128(0)),
		}
	}
	return formats, nil
}

// lnctEntry is one decoded directory or file-name table row; DWARF5
// entries carry file index 0 as a real, meaningful row (the primary
// source file), unlike the legacy tables' 1-based numbering.
type lnctEntry struct {
	path      string
	dirIndex  uint64
	timestamp uint64
	size      uint64
}

func readLNCTEntry(r *reader.Reader, formats []lnctFormat, addressSize int, debugStr, debugLineStr []byte) (lnctEntry, error) {
	var entry lnctEntry
	for _, f := range formats {
		switch f.Code {
		case lnctPath:
			s, err := readFormString(r, f.Form, debugStr, debugLineStr)
			if err != nil {
				return entry, err
			}
			entry.path = s
		case lnctDirectoryIndex:
			entry.dirIndex = readFormUint(r, f.Form, addressSize)
		case lnctTimestamp:
			entry.timestamp = readFormUint(r, f.Form, addressSize)
		case lnctSize:
			entry.size = readFormUint(r, f.Form, addressSize)
		case lnctMD5:
			// DW_FORM_data16, skipped: this engine doesn't verify checksums.
			readFormUint(r, f.Form, addressSize)
		default:
			// Unknown vendor content code: skip it in whatever form says.
			readFormUint(r, f.Form, addressSize)
		}
	}
	return entry, nil
}

// readFormString decodes a string-valued form for a DWARF5 format
// descriptor entry.
func readFormString(r *reader.Reader, form dwarfdata.Form, debugStr, debugLineStr []byte) (string, error) {
	switch form {
	case dwarfdata.FormString:
		return r.ReadString(""), nil
	case dwarfdata.FormStrp:
		off := r.Read32(0)
		return lookupString(debugStr, int64(off)), nil
	case dwarfdata.FormLineStrp:
		off := r.Read32(0)
		return lookupString(debugLineStr, int64(off)), nil
	default:
		return "", dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.DIEUnknownForm, uint64(form), uint64(lnctPath)))
	}
}

// readFormUint decodes an integer-valued form for a DWARF5 format
// descriptor entry.
func readFormUint(r *reader.Reader, form dwarfdata.Form, addressSize int) uint64 {
	switch form {
	case dwarfdata.FormData1:
		return uint64(r.Read8(0))
	case dwarfdata.FormData2:
		return uint64(r.Read16(0))
	case dwarfdata.FormData4:
		return uint64(r.Read32(0))
	case dwarfdata.FormData8:
		return r.Read64(0)
	case dwarfdata.FormData16:
		r.Skip(16)
		return 0
	case dwarfdata.FormUdata:
		return r.ReadULEB128(0)
	case dwarfdata.FormBlock:
		n := r.ReadULEB128(0)
		r.Skip(int64(n))
		return 0
	default:
		return r.ReadULEB128(0)
	}
}

// lookupString reads a NUL-terminated string at offset within section,
// returning "" if section is nil or the offset is out of range.
func lookupString(section []byte, offset int64) string {
	if section == nil || offset < 0 || offset >= int64(len(section)) {
		return ""
	}
	end := offset
	for end < int64(len(section)) && section[end] != 0 {
		end++
	}
	return string(section[offset:end])
}
