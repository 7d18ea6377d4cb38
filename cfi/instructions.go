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

// Packed opcodes: the top two bits of the opcode byte select one of
// these, and the low six bits are the operand, per DWARF4 table 7.23.
const (
	cfaAdvanceLoc = 0x1
	cfaOffset     = 0x2
	cfaRestore    = 0x3
)

// Extended opcodes, taken from the low six bits of an opcode byte whose
// top two bits are zero.
const (
	cfaNop              = 0x00
	cfaSetLoc           = 0x01
	cfaAdvanceLoc1      = 0x02
	cfaAdvanceLoc2      = 0x03
	cfaAdvanceLoc4      = 0x04
	cfaOffsetExtended   = 0x05
	cfaRestoreExtended  = 0x06
	cfaUndefined        = 0x07
	cfaSameValue        = 0x08
	cfaRegister         = 0x09
	cfaRememberState    = 0x0a
	cfaRestoreState     = 0x0b
	cfaDefCfa           = 0x0c
	cfaDefCfaRegister   = 0x0d
	cfaDefCfaOffset     = 0x0e
	cfaDefCfaExpression = 0x0f
	cfaExpression       = 0x10
	cfaOffsetExtendedSf = 0x11
	cfaDefCfaSf         = 0x12
	cfaDefCfaOffsetSf   = 0x13
	cfaValOffset        = 0x14
	cfaValOffsetSf      = 0x15
	cfaValExpression    = 0x16

	// vendor extensions
	cfaMIPSAdvanceLoc8           = 0x1d
	cfaGNUWindowSave             = 0x2d
	cfaGNUArgsSize               = 0x2e
	cfaGNUNegativeOffsetExtended = 0x2f
)

// runInstructions replays one CIE's or FDE's instruction stream against
// c, starting at whatever location c currently holds. It stops early,
// reporting stopped=true, as soon as an advance instruction would move
// the location past c.targetLocation — at that point the rule set
// already describes the target PC and the remaining instructions (which
// describe later PCs) must not be applied.
func runInstructions(c *context, instructions []byte, byteOrder binary.ByteOrder, addressSize int, aug *augmentation, bases addressBases) (stopped bool, err error) {
	r := reader.New(instructions, byteOrder, addressSize)

	for r.Len() > 0 {
		opcode := r.Read8(0)

		if packed := opcode >> 6; packed != 0 {
			operand := int(opcode & 0x3f)
			switch packed {
			case cfaAdvanceLoc:
				if !c.advanceLocation(uint64(operand)) {
					return true, nil
				}
			case cfaOffset:
				offset := r.ReadULEB128(0)
				if rule := c.ruleSet.RegisterRule(operand); rule != nil {
					rule.SetToLocationOffset(int64(offset) * c.dataAlignment)
				}
			case cfaRestore:
				c.restoreRegisterRule(operand)
			}
			if r.HasOverflow() {
				return false, dwarferrors.Wrap(dwarferrors.BadData,
					dwarferrors.Errorf(dwarferrors.ReaderOverflow, "cfi instructions"))
			}
			continue
		}

		switch opcode {
		case cfaNop:

		case cfaSetLoc:
			location, err := readEncodedAddress(r, aug.addressEncoding, bases, false)
			if err != nil {
				return false, err
			}
			apply, err := c.setLocationAbsolute(location)
			if err != nil {
				return false, err
			}
			if !apply {
				return true, nil
			}

		case cfaAdvanceLoc1:
			if !c.advanceLocation(uint64(r.Read8(0))) {
				return true, nil
			}

		case cfaAdvanceLoc2:
			if !c.advanceLocation(uint64(r.Read16(0))) {
				return true, nil
			}

		case cfaAdvanceLoc4:
			if !c.advanceLocation(uint64(r.Read32(0))) {
				return true, nil
			}

		case cfaOffsetExtended:
			reg := int(r.ReadULEB128(0))
			offset := r.ReadULEB128(0)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToLocationOffset(int64(offset) * c.dataAlignment)
			}

		case cfaRestoreExtended:
			c.restoreRegisterRule(int(r.ReadULEB128(0)))

		case cfaUndefined:
			if rule := c.ruleSet.RegisterRule(int(r.ReadULEB128(0))); rule != nil {
				rule.SetToUndefined()
			}

		case cfaSameValue:
			if rule := c.ruleSet.RegisterRule(int(r.ReadULEB128(0))); rule != nil {
				rule.SetToSameValue()
			}

		case cfaRegister:
			reg1 := int(r.ReadULEB128(0))
			reg2 := int(r.ReadULEB128(0))
			if rule := c.ruleSet.RegisterRule(reg1); rule != nil {
				rule.SetToRegister(reg2)
			}

		case cfaRememberState:
			c.pushRuleSet()

		case cfaRestoreState:
			if err := c.popRuleSet(); err != nil {
				return false, err
			}

		case cfaDefCfa:
			reg := int(r.ReadULEB128(0))
			offset := r.ReadULEB128(0)
			c.ruleSet.CFA.SetToRegisterOffset(reg, int64(offset))

		case cfaDefCfaRegister:
			reg := int(r.ReadULEB128(0))
			if c.ruleSet.CFA.Type != CFARuleRegisterOffset {
				return false, dwarferrors.Wrap(dwarferrors.BadData,
					dwarferrors.Errorf(dwarferrors.CFIBadInstruction, opcode))
			}
			c.ruleSet.CFA.SetRegister(reg)

		case cfaDefCfaOffset:
			offset := r.ReadULEB128(0)
			if c.ruleSet.CFA.Type != CFARuleRegisterOffset {
				return false, dwarferrors.Wrap(dwarferrors.BadData,
					dwarferrors.Errorf(dwarferrors.CFIBadInstruction, opcode))
			}
			c.ruleSet.CFA.SetOffset(int64(offset))

		case cfaDefCfaExpression:
			block := readBlock(r, instructions)
			c.ruleSet.CFA.SetToExpression(block)

		case cfaExpression:
			reg := int(r.ReadULEB128(0))
			block := readBlock(r, instructions)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToLocationExpression(block)
			}

		case cfaOffsetExtendedSf:
			reg := int(r.ReadULEB128(0))
			offset := r.ReadSLEB128(0)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToLocationOffset(offset * c.dataAlignment)
			}

		case cfaDefCfaSf:
			reg := int(r.ReadULEB128(0))
			offset := r.ReadSLEB128(0)
			c.ruleSet.CFA.SetToRegisterOffset(reg, offset*c.dataAlignment)

		case cfaDefCfaOffsetSf:
			offset := r.ReadSLEB128(0)
			if c.ruleSet.CFA.Type != CFARuleRegisterOffset {
				return false, dwarferrors.Wrap(dwarferrors.BadData,
					dwarferrors.Errorf(dwarferrors.CFIBadInstruction, opcode))
			}
			c.ruleSet.CFA.SetOffset(offset * c.dataAlignment)

		case cfaValOffset:
			reg := int(r.ReadULEB128(0))
			offset := r.ReadULEB128(0)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToValueOffset(int64(offset) * c.dataAlignment)
			}

		case cfaValOffsetSf:
			reg := int(r.ReadULEB128(0))
			offset := r.ReadSLEB128(0)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToValueOffset(offset * c.dataAlignment)
			}

		case cfaValExpression:
			reg := int(r.ReadULEB128(0))
			block := readBlock(r, instructions)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToValueExpression(block)
			}

		case cfaMIPSAdvanceLoc8:
			if !c.advanceLocation(r.Read64(0)) {
				return true, nil
			}

		case cfaGNUWindowSave:
			// SPARC register-window save has no representation in this
			// engine's architecture-neutral rule set; harmless elsewhere.

		case cfaGNUArgsSize:
			r.ReadULEB128(0) // stack argument size, irrelevant to unwinding

		case cfaGNUNegativeOffsetExtended:
			// Obsolete predecessor of offset_extended_sf.
			reg := int(r.ReadULEB128(0))
			offset := r.ReadSLEB128(0)
			if rule := c.ruleSet.RegisterRule(reg); rule != nil {
				rule.SetToLocationOffset(offset * c.dataAlignment)
			}

		default:
			return false, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.CFIBadInstruction, opcode))
		}

		if r.HasOverflow() {
			return false, dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.ReaderOverflow, "cfi instructions"))
		}
	}

	return false, nil
}

// readBlock reads a ULEB128-prefixed block and returns the sub-slice of
// instructions it names, without copying.
func readBlock(r *reader.Reader, instructions []byte) []byte {
	n := r.ReadULEB128(0)
	start := r.Offset()
	r.Skip(int64(n))
	end := r.Offset()
	if r.HasOverflow() || start < 0 || end > int64(len(instructions)) {
		return nil
	}
	return instructions[start:end]
}
