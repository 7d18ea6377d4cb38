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

// Standard opcodes, DWARF4 section 6.2.5.2 (DW_LNS_*).
const (
	opCopy             = 0x01
	opAdvancePC        = 0x02
	opAdvanceLine      = 0x03
	opSetFile          = 0x04
	opSetColumn        = 0x05
	opNegateStmt       = 0x06
	opSetBasicBlock    = 0x07
	opConstAddPC       = 0x08
	opFixedAdvancePC   = 0x09
	opSetPrologueEnd   = 0x0a
	opSetEpilogueBegin = 0x0b
	opSetISA           = 0x0c
)

// Extended opcodes, DWARF4 section 6.2.5.3 (DW_LNE_*).
const (
	opExtEndSequence      = 0x01
	opExtSetAddress       = 0x02
	opExtDefineFile       = 0x03
	opExtSetDiscriminator = 0x04
)

// knownOpcodeLengths gives the number of ULEB128 arguments a standard
// opcode takes, per the header's standard_opcode_lengths table. Used to
// validate the header and to skip arguments of a vendor-extended standard
// opcode this engine doesn't otherwise interpret.
var knownOpcodeLengths = map[int]int{
	opCopy:             0,
	opAdvancePC:        1,
	opAdvanceLine:      1,
	opSetFile:          1,
	opSetColumn:        1,
	opNegateStmt:       0,
	opSetBasicBlock:    0,
	opConstAddPC:       0,
	opSetPrologueEnd:   0,
	opSetEpilogueBegin: 0,
	opSetISA:           1,
	// opFixedAdvancePC takes a halfword rather than a ULEB128 argument;
	// the header's own claim for its length is not meaningful, so it's
	// deliberately absent here.
}

// DWARF5 line and directory entry format content codes (DW_LNCT_*),
// section 6.2.4.1.
const (
	lnctPath           = 0x1
	lnctDirectoryIndex = 0x2
	lnctTimestamp      = 0x3
	lnctSize           = 0x4
	lnctMD5            = 0x5
)
