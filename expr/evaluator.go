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

package expr

import (
	"github.com/quietloop/dwarfengine/dwarfdata"
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// bounds the evaluator accepts before giving up on a runaway or
// maliciously crafted expression, per §4.9.
const (
	maxStackDepth = 1024
	maxOperations = 10000
)

// entryKind classifies a stack entry by what produced it, so that a
// terminating operator (DW_OP_piece, DW_OP_bit_piece, or simply running
// off the end of a non-composite expression) knows what kind of
// location description the top of the stack describes. This generalises
// the donor's loclistStackClass, widened from "is this a value or an
// address" to the full register/memory/implicit distinction §4.9
// requires for EvaluateLocation.
type entryKind int

const (
	entryAddress entryKind = iota
	entryRegister
	entryImplicit
)

// stackEntry is one value on the evaluator's stack.
type stackEntry struct {
	kind     entryKind
	value    uint64
	register int
	bytes    []byte
}

// exprOperator is one decoded, ready-to-run DWARF expression operator,
// generalising the donor's loclistOperator{operator string, resolve
// func(*loclist) (loclistStack, error)} to a 64-bit stack machine: name
// is kept for diagnostics, apply executes the operator against the
// evaluator's stack, having already consumed its operands from the
// instruction stream at decode time.
type exprOperator struct {
	name  string
	apply func(ev *Evaluator) error
}

// Evaluator runs one DWARF expression against a Context. It is not
// reused across expressions: construct one with NewEvaluator per
// evaluation.
type Evaluator struct {
	ctx Context
	r   *reader.Reader

	stack []stackEntry
	ops   int

	pieces []dwarfdata.ValuePiece
}

// NewEvaluator constructs an Evaluator for one expression over ctx. If
// initial.Present, initial.Value is pushed before any operator runs
// (used by the CFI engine to seed the canonical frame address for a
// def_cfa_expression/expression/val_expression rule).
func NewEvaluator(ctx Context, initial InitialValue) *Evaluator {
	ev := &Evaluator{ctx: ctx}
	if initial.Present {
		ev.stack = append(ev.stack, stackEntry{kind: entryAddress, value: initial.Value})
	}
	return ev
}

func (ev *Evaluator) push(e stackEntry) error {
	if len(ev.stack) >= maxStackDepth {
		return dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.ExprStackOverflow, maxStackDepth))
	}
	ev.stack = append(ev.stack, e)
	return nil
}

func (ev *Evaluator) pushValue(v uint64) error {
	return ev.push(stackEntry{kind: entryAddress, value: v})
}

func (ev *Evaluator) pop() (stackEntry, error) {
	n := len(ev.stack)
	if n == 0 {
		return stackEntry{}, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ExprStackUnderflow))
	}
	e := ev.stack[n-1]
	ev.stack = ev.stack[:n-1]
	return e, nil
}

func (ev *Evaluator) popValue() (uint64, error) {
	e, err := ev.pop()
	return e.value, err
}

func (ev *Evaluator) peek() (stackEntry, error) {
	n := len(ev.stack)
	if n == 0 {
		return stackEntry{}, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ExprStackUnderflow))
	}
	return ev.stack[n-1], nil
}

// pushRegisterOffset implements bregN/bregx: push the current value of
// register reg plus a signed offset.
func (ev *Evaluator) pushRegisterOffset(reg int, offset int64) error {
	if ev.ctx.Target == nil {
		return dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.RegisterUnavailable, reg))
	}
	base, ok := ev.ctx.Target.GetRegisterValue(reg)
	if !ok {
		return dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.RegisterUnavailable, reg))
	}
	return ev.pushValue(uint64(int64(base) + offset))
}

// deref pops an address and pushes the size-byte value read from memory
// at it, per ctx.ByteOrder. size is in {1, 2, 4, 8}.
func (ev *Evaluator) deref(size int) error {
	address, err := ev.popValue()
	if err != nil {
		return err
	}
	if ev.ctx.Target == nil {
		return dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.MemoryUnavailable, size, address))
	}
	buf := make([]byte, size)
	n, err := ev.ctx.Target.ReadMemory(address, buf)
	if err != nil {
		return err
	}
	if n < size {
		return dwarferrors.Wrap(dwarferrors.NoMemory,
			dwarferrors.Errorf(dwarferrors.MemoryUnavailable, size, address))
	}
	var v uint64
	switch size {
	case 1:
		v = uint64(buf[0])
	case 2:
		v = uint64(ev.ctx.ByteOrder.Uint16(buf))
	case 4:
		v = uint64(ev.ctx.ByteOrder.Uint32(buf))
	default:
		v = ev.ctx.ByteOrder.Uint64(buf)
	}
	return ev.pushValue(v)
}

// pickFromTop pushes a copy of the stack entry index positions below the
// top (index 0 duplicates the top itself, matching DW_OP_pick; DW_OP_over
// is the fixed case index == 1).
func (ev *Evaluator) pickFromTop(index int) error {
	n := len(ev.stack)
	if index < 0 || index >= n {
		return dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.ExprStackUnderflow))
	}
	return ev.push(ev.stack[n-1-index])
}

// call implements call2/call4/call_ref: resolves offset to another
// expression via ctx.CallTarget and runs it inline against the same
// stack, per §4.9.1. The operation-count cap is shared with the
// enclosing evaluation so a chain of calls cannot bypass it.
func (ev *Evaluator) call(offset uint64) error {
	if ev.ctx.CallTarget == nil {
		return dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.ExprCallNotFound, offset))
	}
	sub, ok := ev.ctx.CallTarget.ResolveCall(offset)
	if !ok {
		return dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.ExprCallNotFound, offset))
	}

	savedReader := ev.r
	defer func() { ev.r = savedReader }()

	ev.r = reader.New(sub, ev.ctx.ByteOrder, ev.ctx.AddressSize)
	for ev.r.Len() > 0 {
		ev.ops++
		if ev.ops > maxOperations {
			return dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.ExprTooManyOps, maxOperations))
		}
		op, err := decodeOperator(ev.r, ev.ctx)
		if err != nil {
			return err
		}
		if err := op.apply(ev); err != nil {
			return err
		}
	}
	return nil
}

// run decodes and executes expression in order, dispatching
// DW_OP_piece/DW_OP_bit_piece to close off a composite piece and
// otherwise leaving the final result on the stack. bra/skip move r's
// cursor directly and are the only operators that do not simply consume
// their own operands and fall through.
func (ev *Evaluator) run(expression []byte) error {
	ev.r = reader.New(expression, ev.ctx.ByteOrder, ev.ctx.AddressSize)

	for ev.r.Len() > 0 {
		ev.ops++
		if ev.ops > maxOperations {
			return dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.ExprTooManyOps, maxOperations))
		}

		op, err := decodeOperator(ev.r, ev.ctx)
		if err != nil {
			return err
		}
		if err := op.apply(ev); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate runs expression and returns the top of the final stack as a
// single address, per §4.9's Evaluate entry point. It is used for
// expressions that always produce a plain value: CFI CFA/register rules,
// DW_AT_data_member_location, and similar.
func Evaluate(ctx Context, expression []byte, initial InitialValue) (uint64, error) {
	ev := NewEvaluator(ctx, initial)
	if err := ev.run(expression); err != nil {
		return 0, err
	}
	top, err := ev.peek()
	if err != nil {
		return 0, err
	}
	return top.value, nil
}

// EvaluateLocation runs expression and returns a value location, per
// §4.9's EvaluateLocation entry point. A non-composite expression yields
// a single piece whose kind depends on the final opcode: regN/regx
// produce a register piece, DW_OP_stack_value/DW_OP_implicit_value
// produce an implicit piece holding the computed bytes, and anything
// else produces a memory piece at the top of the stack. A composite
// expression -- one or more simple sub-expressions each terminated by
// DW_OP_piece or DW_OP_bit_piece -- instead yields the pieces those
// operators recorded as they ran; the sizes of those pieces come from
// the piece operators themselves and do not need patching by the
// caller. A single non-composite implicit piece carries the length of
// its bytes; the size of a single register or memory piece is left zero:
// it is the caller's responsibility, knowing the object's type, to fill
// it in before using ValueLocation.SubRange.
func EvaluateLocation(ctx Context, expression []byte, initial InitialValue) (*dwarfdata.ValueLocation, error) {
	ev := NewEvaluator(ctx, initial)
	if err := ev.run(expression); err != nil {
		return nil, err
	}

	loc := dwarfdata.NewValueLocation(ctx.BigEndian)

	if len(ev.pieces) > 0 {
		for _, p := range ev.pieces {
			loc.AddPiece(p)
		}
		return loc, nil
	}

	top, err := ev.pop()
	if err != nil {
		return nil, err
	}
	loc.AddPiece(entryToPiece(top))
	return loc, nil
}

// closePiece implements the shared tail of DW_OP_piece/DW_OP_bit_piece:
// whatever simple location description the stack holds becomes one
// piece of size byteSize bytes plus bitSize extra bits at bitOffset,
// and the stack is cleared for the next piece's sub-expression. An
// empty stack (DW_OP_piece with nothing pushed before it) is the
// DWARF2-compatibility idiom for "this piece has no location", recorded
// as PieceUnknown.
func (ev *Evaluator) closePiece(byteSize, bitSize, bitOffset uint64) error {
	var piece dwarfdata.ValuePiece
	if len(ev.stack) == 0 {
		piece = dwarfdata.ValuePiece{Kind: dwarfdata.PieceUnknown}
	} else {
		top, err := ev.pop()
		if err != nil {
			return err
		}
		piece = entryToPiece(top)
	}
	piece.Size = byteSize
	piece.BitSize = uint8(bitSize)
	piece.BitOffset = uint8(bitOffset)
	ev.pieces = append(ev.pieces, piece)
	ev.stack = ev.stack[:0]
	return nil
}

// entryToPiece converts a final stack entry to the ValuePiece it
// describes. An implicit piece's Size is the length of its bytes;
// register and memory pieces carry no size, which the caller fills in
// for a non-composite result once it knows the object's type.
func entryToPiece(e stackEntry) dwarfdata.ValuePiece {
	switch e.kind {
	case entryRegister:
		return dwarfdata.ValuePiece{Kind: dwarfdata.PieceRegister, Register: e.register, Writable: true}
	case entryImplicit:
		return dwarfdata.ValuePiece{Kind: dwarfdata.PieceImplicit, Bytes: e.bytes, Size: uint64(len(e.bytes))}
	default:
		return dwarfdata.ValuePiece{Kind: dwarfdata.PieceMemory, Address: e.value, Writable: true}
	}
}
