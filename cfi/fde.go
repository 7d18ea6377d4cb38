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
	"sort"

	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// fdeRecord locates one FDE's byte range within a frame section, indexed
// by the range of PCs it covers, per §4.8.3.
type fdeRecord struct {
	start, end uint64
	fdeOffset  int64
	cieOffset  int64
	ehFrame    bool
}

func (f fdeRecord) contains(pc uint64) bool { return pc >= f.start && pc < f.end }

// buildIndex scans one frame section end to end, recording every FDE's
// covered address range. GCC has been observed to duplicate entries at
// different offsets within a section; the first one found for a given
// start address wins and later duplicates are dropped.
func buildIndex(section []byte, byteOrder binary.ByteOrder, addressSize int, ehFrame bool, bases func(fieldOffset int64) addressBases) ([]fdeRecord, error) {
	var records []fdeRecord
	seen := make(map[uint64]bool)

	r := reader.New(section, byteOrder, addressSize)
	for r.Len() > 0 {
		entryOffset := r.Offset()
		length, dwarf64 := r.ReadInitialLength()
		if length == 0 {
			break
		}
		lengthOffset := r.Offset()
		entryEnd := lengthOffset + int64(length)

		var id uint64
		if dwarf64 {
			id = r.Read64(0)
		} else {
			id = uint64(r.Read32(0))
		}

		if id == cieIDValue(ehFrame, dwarf64) {
			// A CIE: nothing to index, skip to the next entry.
			r.SeekAbsolute(entryEnd)
			continue
		}

		cieOffset := int64(id)
		if ehFrame {
			// The CIE pointer is a backward offset from the field itself.
			if id > uint64(lengthOffset) {
				return nil, dwarferrors.Wrap(dwarferrors.BadData,
					dwarferrors.Errorf(dwarferrors.FDENoCIE, id))
			}
			cieOffset = lengthOffset - int64(id)
		}

		fieldOffset := r.Offset()
		referencedCIE, err := parseCIE(section, byteOrder, addressSize, cieOffset, ehFrame, bases(fieldOffset))
		if err != nil {
			return nil, err
		}

		start, err := readEncodedAddress(r, referencedCIE.aug.addressEncoding, bases(fieldOffset), false)
		if err != nil {
			return nil, err
		}
		length2, err := readEncodedAddress(r, referencedCIE.aug.addressEncoding, bases(fieldOffset), true)
		if err != nil {
			return nil, err
		}
		if r.HasOverflow() {
			return nil, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.ReaderOverflow, "fde header"))
		}

		if !seen[start] {
			seen[start] = true
			records = append(records, fdeRecord{
				start:     start,
				end:       start + length2,
				fdeOffset: entryOffset,
				cieOffset: cieOffset,
				ehFrame:   ehFrame,
			})
		}

		r.SeekAbsolute(entryEnd)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].start < records[j].start })
	return records, nil
}

// parseFDEInstructions re-reads the FDE's header to locate its
// instruction stream: the initial length, CIE pointer, address range
// (encoded per the CIE's augmentation) and, for an augmented CIE, the
// FDE's own augmentation data block, all of which precede the
// instructions proper.
func parseFDEInstructions(section []byte, byteOrder binary.ByteOrder, addressSize int, record fdeRecord, c *cie) ([]byte, error) {
	r := reader.New(section, byteOrder, addressSize)
	r.SeekAbsolute(record.fdeOffset)

	length, dwarf64 := r.ReadInitialLength()
	entryEnd := r.Offset() + int64(length)

	if dwarf64 {
		r.Read64(0)
	} else {
		r.Read32(0)
	}

	if _, err := readEncodedAddress(r, c.aug.addressEncoding, addressBases{}, false); err != nil {
		return nil, err
	}
	if _, err := readEncodedAddress(r, c.aug.addressEncoding, addressBases{}, true); err != nil {
		return nil, err
	}

	c.aug.skipFDEAugmentationData(r)

	if r.HasOverflow() {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "fde header"))
	}

	instrStart := r.Offset()
	if instrStart > entryEnd {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "fde instructions"))
	}
	return section[instrStart:entryEnd], nil
}

// findFDE returns the record covering pc, or false if none does. The
// index is sorted by start address, so a binary search locates the
// rightmost candidate whose start is at or before pc and then checks
// containment.
func findFDE(index []fdeRecord, pc uint64) (fdeRecord, bool) {
	i := sort.Search(len(index), func(i int) bool { return index[i].start > pc })
	if i == 0 {
		return fdeRecord{}, false
	}
	candidate := index[i-1]
	if !candidate.contains(pc) {
		return fdeRecord{}, false
	}
	return candidate, true
}
