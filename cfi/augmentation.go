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
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// Itanium exception-header address encoding, split into a value-format
// low nibble and an offset-base high nibble, per §4.8.2.
const (
	addrFormatAbsolute        = 0x00
	addrFormatULEB128         = 0x01
	addrFormatUnsigned16      = 0x02
	addrFormatUnsigned32      = 0x03
	addrFormatUnsigned64      = 0x04
	addrFormatSignedBit       = 0x08
	addrFormatSLEB128         = addrFormatULEB128 | addrFormatSignedBit
	addrFormatSigned16        = addrFormatUnsigned16 | addrFormatSignedBit
	addrFormatSigned32        = addrFormatUnsigned32 | addrFormatSignedBit
	addrFormatSigned64        = addrFormatUnsigned64 | addrFormatSignedBit
	addrFormatOmit       byte = 0xff

	addrBasePCRelative       = 0x10
	addrBaseTextRelative     = 0x20
	addrBaseDataRelative     = 0x30
	addrBaseFunctionRelative = 0x40
	addrBaseAligned          = 0x50
	addrBaseIndirect         = 0x80
)

// addressBases resolves the offset-base half of an Itanium encoded
// address to a target address, for whichever base the encoding selects.
// pcRelAnchor is the load address of the encoded field itself; textBase
// and dataBase are the load addresses of the text and data segments.
type addressBases struct {
	pcRelAnchor uint64
	textBase    uint64
	dataBase    uint64
}

// forType resolves addrType to a base address. ok is false for
// addrBaseFunctionRelative, addrBaseAligned and addrBaseIndirect: this
// engine has no owning-FDE address or field-alignment context to resolve
// the first two against, and no second memory dereference for the third,
// so it reports them as unsupported rather than silently basing the
// address at 0.
func (b addressBases) forType(addrType byte) (uint64, bool) {
	switch addrType {
	case 0x00:
		return 0, true
	case addrBasePCRelative:
		return b.pcRelAnchor, true
	case addrBaseTextRelative:
		return b.textBase, true
	case addrBaseDataRelative:
		return b.dataBase, true
	default:
		return 0, false
	}
}

// augmentation is a parsed CIE augmentation string plus, for a
// 'z'-prefixed string, the decoded augmentation data block, per §4.8.1.
type augmentation struct {
	raw string

	hasData bool

	hasLSDA      bool
	lsdaEncoding byte

	hasPersonality      bool
	personalityEncoding byte
	personalityRoutine  uint64

	hasAddressFormat bool
	addressEncoding  byte
}

// parseAugmentationString reads the augmentation string. The caller
// still owes two further steps before the CIE is usable: skipping the
// GCC 2 "eh" exception-table pointer (isGCC2EH) right after this call and
// before the alignment factors, and calling parseAugmentationData after
// the alignment factors for a 'z'-prefixed string.
func parseAugmentationString(r *reader.Reader) *augmentation {
	return &augmentation{raw: r.ReadString(""), addressEncoding: addrFormatAbsolute}
}

// isGCC2EH reports the legacy GCC 2 "eh" augmentation, which places one
// target-address-sized exception-table pointer immediately before the
// alignment factors that this engine has no use for.
func (a *augmentation) isGCC2EH() bool { return a.raw == "eh" }

// parseAugmentationData parses the augmentation data block described by
// a 'z'-prefixed augmentation string. It must be called with r positioned
// right after the CIE's alignment factors and return-address register,
// per §4.8.1.
func (a *augmentation) parseAugmentationData(r *reader.Reader, bases addressBases) error {
	if a.raw == "" || a.isGCC2EH() {
		return nil
	}

	if a.raw[0] != 'z' {
		return dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.CIEBadAugmentation, a.raw[0]))
	}
	a.hasData = true

	length := r.ReadULEB128(0)
	dataEnd := r.Offset() + int64(length)

	for i := 1; i < len(a.raw); i++ {
		switch a.raw[i] {
		case 'L':
			a.hasLSDA = true
			a.lsdaEncoding = r.Read8(0)
		case 'P':
			a.hasPersonality = true
			a.personalityEncoding = r.Read8(0)
			routine, err := readEncodedAddress(r, a.personalityEncoding, bases, false)
			if err != nil {
				return err
			}
			a.personalityRoutine = routine
		case 'R':
			a.hasAddressFormat = true
			a.addressEncoding = r.Read8(0)
		default:
			return dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.CIEBadAugmentation, a.raw[i]))
		}
	}

	// The augmentation data block's declared length governs how far to
	// skip, in case this engine didn't recognise every character (it
	// would have already returned above, but a future vendor character
	// added to the "known, ignorable" set could rely on this).
	r.SeekAbsolute(dataEnd)
	if r.HasOverflow() {
		return dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ReaderOverflow, "cie augmentation data"))
	}
	return nil
}

// addressType returns the offset-base nibble of the FDE address encoding.
func (a *augmentation) addressType() byte {
	return a.addressEncoding & 0x70
}

// skipFDEAugmentationData skips the FDE's own augmentation data block, if
// the CIE's augmentation string declared one is present.
func (a *augmentation) skipFDEAugmentationData(r *reader.Reader) {
	if !a.hasData {
		return
	}
	length := r.ReadULEB128(0)
	r.Skip(int64(length))
}

// readEncodedAddress reads one Itanium-encoded address per §4.8.2:
// valueOnly suppresses adding the offset-base term, used when decoding
// an FDE's address-range field (a width, not an address).
func readEncodedAddress(r *reader.Reader, encoding byte, bases addressBases, valueOnly bool) (uint64, error) {
	var base uint64
	if !valueOnly {
		b, ok := bases.forType(encoding & 0x70)
		if !ok {
			return 0, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.AddrBaseUnsupported, encoding&0x70))
		}
		base = b
	}

	switch encoding & 0x0f {
	case addrFormatAbsolute:
		return base + r.ReadAddress(0), nil
	case addrFormatULEB128:
		return base + r.ReadULEB128(0), nil
	case addrFormatSLEB128:
		return uint64(int64(base) + r.ReadSLEB128(0)), nil
	case addrFormatUnsigned16:
		return base + uint64(r.Read16(0)), nil
	case addrFormatSigned16:
		return uint64(int64(base) + int64(int16(r.Read16(0)))), nil
	case addrFormatUnsigned32:
		return base + uint64(r.Read32(0)), nil
	case addrFormatSigned32:
		return uint64(int64(base) + int64(int32(r.Read32(0)))), nil
	case addrFormatUnsigned64:
		return base + r.Read64(0), nil
	case addrFormatSigned64:
		return uint64(int64(base) + int64(r.Read64(0))), nil
	default:
		return 0, dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.CIEBadAugmentation, encoding))
	}
}
