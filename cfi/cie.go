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

package cfi

import (
	"encoding/binary"

	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// cieIDValue is the CIE-pointer sentinel that marks a frame-section entry
// as a CIE rather than an FDE: in .debug_frame it is the all-ones value
// for the entry's offset format; in .eh_frame it is zero.
func cieIDValue(ehFrame, dwarf64 bool) uint64 {
	if ehFrame {
		return 0
	}
	if dwarf64 {
		return 0xffffffffffffffff
	}
	return 0xffffffff
}

// cie is a parsed Common Information Entry: the alignment factors and
// return-address register shared by every FDE that refers to it, plus
// its own instruction stream (the architectural default rules) and
// augmentation.
type cie struct {
	version               uint8
	aug                   *augmentation
	codeAlignment         uint64
	dataAlignment         int64
	returnAddressRegister int
	instructions          []byte
}

// parseCIE decodes the CIE at offset within section. ehFrame selects the
// .eh_frame discriminator/encoding conventions over .debug_frame's.
func parseCIE(section []byte, byteOrder binary.ByteOrder, addressSize int, offset int64, ehFrame bool, bases addressBases) (*cie, error) {
	if offset < 0 || offset >= int64(len(section)) {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.FDENoCIE, offset))
	}

	r := reader.New(section, byteOrder, addressSize)
	r.SeekAbsolute(offset)

	length, dwarf64 := r.ReadInitialLength()
	entryEnd := r.Offset() + int64(length)

	var id uint64
	if dwarf64 {
		id = r.Read64(0)
	} else {
		id = uint64(r.Read32(0))
	}
	if id != cieIDValue(ehFrame, dwarf64) {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.FDENoCIE, offset))
	}

	version := r.Read8(0)
	if version != 1 {
		return nil, dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.CIEBadVersion, version))
	}

	aug := parseAugmentationString(r)
	if aug.isGCC2EH() {
		r.Skip(int64(addressSize))
	}

	c := &cie{version: version, aug: aug}
	c.codeAlignment = r.ReadULEB128(0)
	c.dataAlignment = r.ReadSLEB128(0)
	c.returnAddressRegister = int(r.ReadULEB128(0))

	if err := aug.parseAugmentationData(r, bases); err != nil {
		return nil, err
	}

	if r.HasOverflow() {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "cie header"))
	}

	instrStart := r.Offset()
	if instrStart > entryEnd {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "cie instructions"))
	}
	c.instructions = section[instrStart:entryEnd]
	return c, nil
}
