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

// Package line interprets the DWARF line-number program: the statement
// machine described in DWARF4 section 6.2 that maps machine addresses
// back to source (file, line, column) triples. It supports both the
// legacy (DWARF2-4) and the DWARF5 directory/file-name table encodings,
// per §4.6.
package line

import (
	"encoding/binary"
	stderrors "errors"

	"github.com/quietloop/dwarfengine/dwarfdata"
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// Row is one row of a line-number table, per §3.5.
type Row struct {
	Address uint64
	OpIndex int

	FileIndex uint64
	File      *dwarfdata.FileEntry

	Line   int
	Column int

	IsStmt        bool
	BasicBlock    bool
	PrologueEnd   bool
	EpilogueBegin bool
	ISA           int
	Discriminator int

	EndSequence bool
}

// ErrEndOfTable is returned by GetNextRow when the program has been
// fully consumed; it is a graceful stop condition, not a malformed-data
// error.
var ErrEndOfTable = stderrors.New("line: end of table")

// Program is a parsed statement-program prologue plus the machinery to
// run its opcode stream and emit Rows, per §4.6.
type Program struct {
	header *Header

	section     []byte
	byteOrder   binary.ByteOrder
	addressSize int

	r     *reader.Reader
	state Row

	initialFileCount int
}

// NewProgram parses the statement-program prologue for one compilation
// unit's line-number program and returns a Program positioned at its
// first opcode. section is the full contents of `.debug_line`; offset is
// the unit's DW_AT_stmt_list value. compDir seeds directory 0 for the
// legacy directory table. debugStr/debugLineStr resolve DWARF5
// DW_FORM_strp/DW_FORM_line_strp string references and may be nil.
func NewProgram(section []byte, byteOrder binary.ByteOrder, offset int64, addressSize int, compDir string, debugStr, debugLineStr []byte) (*Program, error) {
	if offset > int64(len(section)) {
		offset = int64(len(section))
	}

	r := reader.New(section, byteOrder, addressSize)
	r.SeekAbsolute(offset)

	header, err := parseHeader(r, addressSize, compDir, debugStr, debugLineStr)
	if err != nil {
		return nil, err
	}

	p := &Program{
		header:           header,
		section:          section,
		byteOrder:        byteOrder,
		addressSize:      addressSize,
		initialFileCount: len(header.Files),
	}
	p.Reset()
	return p, nil
}

// Header returns the program's decoded prologue.
func (p *Program) Header() *Header { return p.header }

// GetInitialState returns the row the statement machine starts (and
// restarts, after every is_sequence_end row) from.
func (p *Program) GetInitialState() Row {
	return Row{
		FileIndex: 1,
		Line:      1,
		IsStmt:    p.header.DefaultIsStmt,
	}
}

// Reset repositions the program at its first opcode with the machine in
// its initial state, per §4.6's restart-on-end_sequence behaviour.
func (p *Program) Reset() {
	p.r = reader.New(p.section[:p.header.EndOffset], p.byteOrder, p.addressSize)
	p.r.SeekAbsolute(p.header.ProgramOffset)
	p.header.Files = p.header.Files[:p.initialFileCount]
	p.resetState()
}

func (p *Program) resetState() {
	p.state = p.GetInitialState()
	p.updateFile()
}

func (p *Program) updateFile() {
	if p.state.FileIndex < uint64(len(p.header.Files)) {
		p.state.File = &p.header.Files[p.state.FileIndex]
	} else {
		p.state.File = nil
	}
}

// GetNextRow advances the state machine, executing opcodes until one
// emits a row, and writes that row to *row. It returns ErrEndOfTable
// when the opcode stream is exhausted.
func (p *Program) GetNextRow(row *Row) error {
	if p.r.HasOverflow() {
		return dwarferrors.Wrap(dwarferrors.BadData, dwarferrors.Errorf(dwarferrors.ReaderOverflow, "line program"))
	}
	for {
		if p.r.Offset() >= int64(len(p.section[:p.header.EndOffset])) {
			return ErrEndOfTable
		}
		emit, err := p.step(row)
		if err != nil {
			return err
		}
		if p.r.HasOverflow() {
			return dwarferrors.Wrap(dwarferrors.BadData, dwarferrors.Errorf(dwarferrors.ReaderOverflow, "line program"))
		}
		if emit {
			return nil
		}
	}
}

// advancePC advances the operation pointer (Address, OpIndex) by
// opAdvance operations, per DWARF4 section 6.2.5.1's VLIW arithmetic.
// max_ops_per_instruction is rejected by parseHeader for anything other
// than 1, but the arithmetic here is generic so it behaves correctly
// regardless.
func (p *Program) advancePC(opAdvance int) {
	opIndex := p.state.OpIndex + opAdvance
	p.state.Address += uint64(p.header.MinInstructionLength * (opIndex / p.header.MaxOpsPerInstruction))
	p.state.OpIndex = opIndex % p.header.MaxOpsPerInstruction
}

// step executes one opcode, updating p.state. If the opcode emits a row,
// *row is set to the emitted row and step returns (true, nil).
func (p *Program) step(row *Row) (bool, error) {
	opcode := int(p.r.Read8(0))

	if opcode >= p.header.OpcodeBase {
		adjusted := opcode - p.header.OpcodeBase
		p.advancePC(adjusted / p.header.LineRange)
		p.state.Line += p.header.LineBase + adjusted%p.header.LineRange
		return p.emit(row), nil
	}

	switch opcode {
	case 0:
		return p.stepExtended(row)

	case opCopy:
		return p.emit(row), nil

	case opAdvancePC:
		p.advancePC(int(p.r.ReadULEB128(0)))

	case opAdvanceLine:
		p.state.Line += int(p.r.ReadSLEB128(0))

	case opSetFile:
		p.state.FileIndex = p.r.ReadULEB128(0)
		p.updateFile()

	case opSetColumn:
		p.state.Column = int(p.r.ReadULEB128(0))

	case opNegateStmt:
		p.state.IsStmt = !p.state.IsStmt

	case opSetBasicBlock:
		p.state.BasicBlock = true

	case opConstAddPC:
		p.advancePC((255 - p.header.OpcodeBase) / p.header.LineRange)

	case opFixedAdvancePC:
		p.state.Address += uint64(p.r.Read16(0))
		p.state.OpIndex = 0

	case opSetPrologueEnd:
		p.state.PrologueEnd = true

	case opSetEpilogueBegin:
		p.state.EpilogueBegin = true

	case opSetISA:
		p.state.ISA = int(p.r.ReadULEB128(0))

	default:
		// Vendor-extended standard opcode this engine doesn't interpret:
		// skip the arguments the prologue says it takes.
		n := 0
		if opcode < len(p.header.OpcodeLengths) {
			n = p.header.OpcodeLengths[opcode]
		}
		for i := 0; i < n; i++ {
			p.r.ReadULEB128(0)
		}
	}
	return false, nil
}

// stepExtended executes one extended opcode (DW_LNE_*), length-prefixed
// so that an unrecognised vendor extension can still be skipped safely.
func (p *Program) stepExtended(row *Row) (bool, error) {
	length := p.r.ReadULEB128(0)
	startOffset := p.r.Offset()
	opcode := p.r.Read8(0)

	switch opcode {
	case opExtEndSequence:
		p.state.EndSequence = true
		*row = p.state
		p.resetState()
		p.r.SeekAbsolute(startOffset + int64(length))
		return true, nil

	case opExtSetAddress:
		p.state.Address = p.r.ReadAddress(0)
		p.state.OpIndex = 0

	case opExtDefineFile:
		name := p.r.ReadString("")
		dirIdx := p.r.ReadULEB128(0)
		mtime := p.r.ReadULEB128(0)
		fileLength := p.r.ReadULEB128(0)
		p.header.Files = append(p.header.Files, dwarfdata.FileEntry{
			Name: name, DirIdx: dirIdx, ModTime: mtime, Length: fileLength,
		})
		p.updateFile()

	case opExtSetDiscriminator:
		p.state.Discriminator = int(p.r.ReadULEB128(0))
	}

	p.r.SeekAbsolute(startOffset + int64(length))
	return false, nil
}

// emit copies the current state into *row, clears the per-row flags
// that don't persist across rows, and reports true so the caller
// returns the row to its own caller.
func (p *Program) emit(row *Row) bool {
	*row = p.state
	p.state.BasicBlock = false
	p.state.PrologueEnd = false
	p.state.EpilogueBegin = false
	p.state.Discriminator = 0
	return true
}

// RowForPC scans the program from its start for the row covering pc,
// returning EntryNotFound if no row does. DWARF line tables only permit
// forward, sequential scans, so in the worst case this is linear in the
// size of the program; callers that need repeated fast lookups should
// build their own index over a single full iteration.
func (p *Program) RowForPC(pc uint64) (Row, error) {
	p.Reset()
	notFound := dwarferrors.Wrap(dwarferrors.EntryNotFound, dwarferrors.Errorf(dwarferrors.LineNoRowForPC, pc))

	var current Row
	if err := p.GetNextRow(&current); err != nil {
		if err == ErrEndOfTable {
			return Row{}, notFound
		}
		return Row{}, err
	}
	if current.Address > pc {
		return Row{}, notFound
	}

	for {
		var next Row
		err := p.GetNextRow(&next)
		if err == ErrEndOfTable {
			if current.EndSequence {
				return Row{}, notFound
			}
			return current, nil
		}
		if err != nil {
			return Row{}, err
		}
		if next.Address > pc {
			if current.EndSequence {
				return Row{}, notFound
			}
			return current, nil
		}
		current = next
	}
}
