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

	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// AddressRange is a half-open range [Low, High) of target addresses.
type AddressRange struct {
	Low  uint64
	High uint64
}

// Contains reports whether pc falls within the range.
func (r AddressRange) Contains(pc uint64) bool {
	return pc >= r.Low && pc < r.High
}

// allOnes returns the address-size all-ones sentinel used by the
// base-address-selection entry.
func allOnes(addressSize int) uint64 {
	if addressSize == 4 {
		return 0xffffffff
	}
	return 0xffffffffffffffff
}

// ParseRangeList parses a `.debug_ranges` list at offset, with
// baseAddress as the initial base (typically the unit's low_pc), per
// §4.7.
//
// A pair of zeros terminates the list. A pair whose first value equals
// the address-size all-ones sentinel is a base-address-selection entry;
// the list's running base address becomes the pair's second value. Every
// other pair contributes [base+start, base+end).
func ParseRangeList(data []byte, byteOrder binary.ByteOrder, offset int64, addressSize int, baseAddress uint64) ([]AddressRange, error) {
	r := reader.New(data, byteOrder, addressSize)
	r.SeekAbsolute(offset)

	sentinel := allOnes(addressSize)
	base := baseAddress
	var ranges []AddressRange

	for {
		start := r.ReadAddress(0)
		end := r.ReadAddress(0)
		if r.HasOverflow() {
			return nil, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.RangeBadEntry, offset))
		}
		if start == 0 && end == 0 {
			break
		}
		if start == sentinel {
			base = end
			continue
		}
		ranges = append(ranges, AddressRange{Low: base + start, High: base + end})
	}

	return ranges, nil
}

// RangeListContains reports whether any range in the list contains pc.
func RangeListContains(ranges []AddressRange, pc uint64) bool {
	for _, r := range ranges {
		if r.Contains(pc) {
			return true
		}
	}
	return false
}
