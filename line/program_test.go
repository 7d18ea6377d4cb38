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

package line_test

import (
	"encoding/binary"
	"testing"

	"github.com/quietloop/dwarfengine/line"
	"github.com/quietloop/dwarfengine/test"
)

// buildV4LineSection builds a minimal DWARF4 .debug_line section with one
// program: set_address 0x2000; advance_line 10; copy; advance_pc 4;
// copy; end_sequence.
func buildV4LineSection() []byte {
	var program []byte
	program = append(program, 0x00, 0x05, 0x02) // DW_LNE_set_address, length 5
	program = append(program, 0x00, 0x20, 0x00, 0x00)
	program = append(program, 0x03, 0x0a)       // DW_LNS_advance_line 10
	program = append(program, 0x01)             // DW_LNS_copy
	program = append(program, 0x02, 0x04)       // DW_LNS_advance_pc 4
	program = append(program, 0x01)             // DW_LNS_copy
	program = append(program, 0x00, 0x01, 0x01) // DW_LNE_end_sequence

	var prologueTail []byte
	prologueTail = append(prologueTail, 1)                                  // minimum_instruction_length
	prologueTail = append(prologueTail, 1)                                  // maximum_operations_per_instruction
	prologueTail = append(prologueTail, 1)                                  // default_is_stmt
	prologueTail = append(prologueTail, 0xfb)                               // line_base = -5
	prologueTail = append(prologueTail, 14)                                 // line_range
	prologueTail = append(prologueTail, 13)                                 // opcode_base
	prologueTail = append(prologueTail, 0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1) // standard_opcode_lengths[1..12]
	prologueTail = append(prologueTail, 0x00)                               // include_directories terminator
	prologueTail = append(prologueTail, "test.c"...)
	prologueTail = append(prologueTail, 0x00, 0x00, 0x00, 0x00) // dir_idx, mtime, length
	prologueTail = append(prologueTail, 0x00)                   // file_names terminator

	headerLength := uint32(len(prologueTail))

	var unit []byte
	unit = append(unit, 0, 0) // version placeholder
	binary.LittleEndian.PutUint16(unit[0:2], 4)
	unit = append(unit, 0, 0, 0, 0) // header_length placeholder
	binary.LittleEndian.PutUint32(unit[2:6], headerLength)
	unit = append(unit, prologueTail...)
	unit = append(unit, program...)

	var section []byte
	section = append(section, 0, 0, 0, 0) // unit_length placeholder
	binary.LittleEndian.PutUint32(section[0:4], uint32(len(unit)))
	section = append(section, unit...)
	return section
}

func TestLineProgramEmitsRows(t *testing.T) {
	section := buildV4LineSection()

	prog, err := line.NewProgram(section, binary.LittleEndian, 0, 4, "/src", nil, nil)
	test.ExpectSuccess(t, err == nil)

	var r1, r2, r3 line.Row
	test.ExpectSuccess(t, prog.GetNextRow(&r1) == nil)
	test.ExpectEquality(t, r1.Address, uint64(0x2000))
	test.ExpectEquality(t, r1.Line, 11)
	test.ExpectEquality(t, r1.EndSequence, false)

	test.ExpectSuccess(t, prog.GetNextRow(&r2) == nil)
	test.ExpectEquality(t, r2.Address, uint64(0x2004))
	test.ExpectEquality(t, r2.Line, 11)
	test.ExpectEquality(t, r2.EndSequence, false)

	test.ExpectSuccess(t, prog.GetNextRow(&r3) == nil)
	test.ExpectEquality(t, r3.Address, uint64(0x2004))
	test.ExpectEquality(t, r3.Line, 11)
	test.ExpectEquality(t, r3.EndSequence, true)

	err = prog.GetNextRow(&line.Row{})
	test.ExpectEquality(t, err, line.ErrEndOfTable)
}

func TestLineProgramRestartsAfterEndSequence(t *testing.T) {
	section := buildV4LineSection()
	prog, err := line.NewProgram(section, binary.LittleEndian, 0, 4, "/src", nil, nil)
	test.ExpectSuccess(t, err == nil)

	var row line.Row
	for i := 0; i < 3; i++ {
		test.ExpectSuccess(t, prog.GetNextRow(&row) == nil)
	}
	test.ExpectEquality(t, row.EndSequence, true)

	initial := prog.GetInitialState()
	test.ExpectEquality(t, initial.Line, 1)
	test.ExpectEquality(t, initial.IsStmt, true)
}

func TestLineProgramRowForPC(t *testing.T) {
	section := buildV4LineSection()
	prog, err := line.NewProgram(section, binary.LittleEndian, 0, 4, "/src", nil, nil)
	test.ExpectSuccess(t, err == nil)

	row, err := prog.RowForPC(0x2002)
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, row.Address, uint64(0x2000))
	test.ExpectEquality(t, row.Line, 11)

	_, err = prog.RowForPC(0x9000)
	test.ExpectFailure(t, err == nil)
}
