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
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// DWARF expression opcodes, per §4.9.1 / DWARF4 Table 7.9. Numbering
// matches the donor's decodeLoclistOperation exactly; this table just
// extends it to opcodes the donor's 32-bit ARM-observed subset never
// needed to implement.
const (
	opAddr              = 0x03
	opDeref             = 0x06
	opConst1u           = 0x08
	opConst1s           = 0x09
	opConst2u           = 0x0a
	opConst2s           = 0x0b
	opConst4u           = 0x0c
	opConst4s           = 0x0d
	opConst8u           = 0x0e
	opConst8s           = 0x0f
	opConstu            = 0x10
	opConsts            = 0x11
	opDup               = 0x12
	opDrop              = 0x13
	opOver              = 0x14
	opPick              = 0x15
	opSwap              = 0x16
	opRot               = 0x17
	opXderef            = 0x18
	opAbs               = 0x19
	opAnd               = 0x1a
	opDiv               = 0x1b
	opMinus             = 0x1c
	opMod               = 0x1d
	opMul               = 0x1e
	opNeg               = 0x1f
	opNot               = 0x20
	opOr                = 0x21
	opPlus              = 0x22
	opPlusUconst        = 0x23
	opShl               = 0x24
	opShr               = 0x25
	opShra              = 0x26
	opXor               = 0x27
	opBra               = 0x28
	opEq                = 0x29
	opGe                = 0x2a
	opGt                = 0x2b
	opLe                = 0x2c
	opLt                = 0x2d
	opNe                = 0x2e
	opSkip              = 0x2f
	opLit0              = 0x30
	opLit31             = 0x4f
	opReg0              = 0x50
	opReg31             = 0x6f
	opBreg0             = 0x70
	opBreg31            = 0x8f
	opRegx              = 0x90
	opFbreg             = 0x91
	opBregx             = 0x92
	opPiece             = 0x93
	opDerefSize         = 0x94
	opXderefSize        = 0x95
	opNop               = 0x96
	opPushObjectAddress = 0x97
	opCall2             = 0x98
	opCall4             = 0x99
	opCallRef           = 0x9a
	opFormTLSAddress    = 0x9b
	opCallFrameCFA      = 0x9c
	opBitPiece          = 0x9d
	opImplicitValue     = 0x9e
	opStackValue        = 0x9f
)

func errUnsupported(opcode uint8) error {
	return dwarferrors.Wrap(dwarferrors.Unsupported,
		dwarferrors.Errorf(dwarferrors.ExprBadOpcode, opcode))
}

// decodeOperator reads one operator's opcode and operands from r and
// returns a closure ready to execute it against an Evaluator, mirroring
// the donor's decodeLoclistOperation one opcode at a time rather than
// pre-scanning the whole expression: the donor built a list of operators
// up front only because it needed to replay a location-list derivation
// for display purposes, a concern this evaluator does not have.
func decodeOperator(r *reader.Reader, ctx Context) (exprOperator, error) {
	opcode := r.Read8(0)

	switch {
	case opcode >= opLit0 && opcode <= opLit31:
		v := uint64(opcode - opLit0)
		return exprOperator{"lit", func(ev *Evaluator) error { return ev.pushValue(v) }}, nil

	case opcode >= opReg0 && opcode <= opReg31:
		reg := int(opcode - opReg0)
		return exprOperator{"reg", func(ev *Evaluator) error {
			return ev.push(stackEntry{kind: entryRegister, register: reg})
		}}, nil

	case opcode >= opBreg0 && opcode <= opBreg31:
		reg := int(opcode - opBreg0)
		offset := r.ReadSLEB128(0)
		return exprOperator{"breg", func(ev *Evaluator) error { return ev.pushRegisterOffset(reg, offset) }}, nil
	}

	switch opcode {
	case opAddr:
		addr := r.ReadAddress(0) + ctx.RelocationDelta
		return exprOperator{"addr", func(ev *Evaluator) error { return ev.pushValue(addr) }}, nil

	case opDeref:
		return exprOperator{"deref", func(ev *Evaluator) error { return ev.deref(ev.ctx.AddressSize) }}, nil

	case opConst1u:
		v := uint64(r.Read8(0))
		return constOperator(v), nil
	case opConst1s:
		v := uint64(int64(int8(r.Read8(0))))
		return constOperator(v), nil
	case opConst2u:
		v := uint64(r.Read16(0))
		return constOperator(v), nil
	case opConst2s:
		v := uint64(int64(int16(r.Read16(0))))
		return constOperator(v), nil
	case opConst4u:
		v := uint64(r.Read32(0))
		return constOperator(v), nil
	case opConst4s:
		v := uint64(int64(int32(r.Read32(0))))
		return constOperator(v), nil
	case opConst8u:
		v := r.Read64(0)
		return constOperator(v), nil
	case opConst8s:
		v := r.Read64(0)
		return constOperator(v), nil
	case opConstu:
		v := r.ReadULEB128(0)
		return constOperator(v), nil
	case opConsts:
		v := uint64(r.ReadSLEB128(0))
		return constOperator(v), nil

	case opDup:
		return exprOperator{"dup", func(ev *Evaluator) error {
			top, err := ev.peek()
			if err != nil {
				return err
			}
			return ev.push(top)
		}}, nil

	case opDrop:
		return exprOperator{"drop", func(ev *Evaluator) error { _, err := ev.pop(); return err }}, nil

	case opOver:
		return exprOperator{"over", func(ev *Evaluator) error { return ev.pickFromTop(1) }}, nil

	case opPick:
		index := int(r.Read8(0))
		return exprOperator{"pick", func(ev *Evaluator) error { return ev.pickFromTop(index) }}, nil

	case opSwap:
		return exprOperator{"swap", func(ev *Evaluator) error {
			a, err := ev.pop()
			if err != nil {
				return err
			}
			b, err := ev.pop()
			if err != nil {
				return err
			}
			if err := ev.push(a); err != nil {
				return err
			}
			return ev.push(b)
		}}, nil

	case opRot:
		return exprOperator{"rot", func(ev *Evaluator) error {
			x1, err := ev.pop()
			if err != nil {
				return err
			}
			x2, err := ev.pop()
			if err != nil {
				return err
			}
			x3, err := ev.pop()
			if err != nil {
				return err
			}
			if err := ev.push(x1); err != nil {
				return err
			}
			if err := ev.push(x3); err != nil {
				return err
			}
			return ev.push(x2)
		}}, nil

	case opXderef:
		return exprOperator{"xderef", func(ev *Evaluator) error {
			if _, err := ev.pop(); err != nil { // address space identifier, discarded
				return err
			}
			return ev.deref(ev.ctx.AddressSize)
		}}, nil

	case opAbs:
		return arithOperator1("abs", func(a int64) int64 {
			if a < 0 {
				return -a
			}
			return a
		}), nil
	case opAnd:
		return arithOperator2("and", func(a, b uint64) uint64 { return a & b }), nil
	case opDiv:
		return exprOperator{"div", func(ev *Evaluator) error {
			b, err := ev.popValue()
			if err != nil {
				return err
			}
			a, err := ev.popValue()
			if err != nil {
				return err
			}
			if int64(b) == 0 {
				return dwarferrors.Wrap(dwarferrors.BadData, dwarferrors.Errorf(dwarferrors.ExprStackUnderflow))
			}
			return ev.pushValue(uint64(int64(a) / int64(b)))
		}}, nil
	case opMinus:
		return arithOperator2("minus", func(a, b uint64) uint64 { return a - b }), nil
	case opMod:
		return exprOperator{"mod", func(ev *Evaluator) error {
			b, err := ev.popValue()
			if err != nil {
				return err
			}
			a, err := ev.popValue()
			if err != nil {
				return err
			}
			if b == 0 {
				return dwarferrors.Wrap(dwarferrors.BadData, dwarferrors.Errorf(dwarferrors.ExprStackUnderflow))
			}
			return ev.pushValue(a % b)
		}}, nil
	case opMul:
		return arithOperator2("mul", func(a, b uint64) uint64 { return a * b }), nil
	case opNeg:
		return arithOperator1("neg", func(a int64) int64 { return -a }), nil
	case opNot:
		return exprOperator{"not", func(ev *Evaluator) error {
			a, err := ev.popValue()
			if err != nil {
				return err
			}
			return ev.pushValue(^a)
		}}, nil
	case opOr:
		return arithOperator2("or", func(a, b uint64) uint64 { return a | b }), nil
	case opPlus:
		return arithOperator2("plus", func(a, b uint64) uint64 { return a + b }), nil
	case opPlusUconst:
		c := r.ReadULEB128(0)
		return exprOperator{"plus_uconst", func(ev *Evaluator) error {
			a, err := ev.popValue()
			if err != nil {
				return err
			}
			return ev.pushValue(a + c)
		}}, nil
	case opShl:
		return arithOperator2("shl", func(a, b uint64) uint64 { return a << (b & 63) }), nil
	case opShr:
		return arithOperator2("shr", func(a, b uint64) uint64 { return a >> (b & 63) }), nil
	case opShra:
		return exprOperator{"shra", func(ev *Evaluator) error {
			b, err := ev.popValue()
			if err != nil {
				return err
			}
			a, err := ev.popValue()
			if err != nil {
				return err
			}
			return ev.pushValue(uint64(int64(a) >> (b & 63)))
		}}, nil
	case opXor:
		return arithOperator2("xor", func(a, b uint64) uint64 { return a ^ b }), nil

	case opBra:
		offset := int16(r.Read16(0))
		target := r.Offset() + int64(offset)
		return exprOperator{"bra", func(ev *Evaluator) error {
			v, err := ev.popValue()
			if err != nil {
				return err
			}
			if v != 0 {
				ev.r.SeekAbsolute(target)
			}
			return nil
		}}, nil

	case opEq:
		return cmpOperator("eq", func(a, b int64) bool { return a == b }), nil
	case opGe:
		return cmpOperator("ge", func(a, b int64) bool { return a >= b }), nil
	case opGt:
		return cmpOperator("gt", func(a, b int64) bool { return a > b }), nil
	case opLe:
		return cmpOperator("le", func(a, b int64) bool { return a <= b }), nil
	case opLt:
		return cmpOperator("lt", func(a, b int64) bool { return a < b }), nil
	case opNe:
		return cmpOperator("ne", func(a, b int64) bool { return a != b }), nil

	case opSkip:
		offset := int16(r.Read16(0))
		target := r.Offset() + int64(offset)
		return exprOperator{"skip", func(ev *Evaluator) error {
			ev.r.SeekAbsolute(target)
			return nil
		}}, nil

	case opRegx:
		reg := int(r.ReadULEB128(0))
		return exprOperator{"regx", func(ev *Evaluator) error {
			return ev.push(stackEntry{kind: entryRegister, register: reg})
		}}, nil

	case opFbreg:
		offset := r.ReadSLEB128(0)
		return exprOperator{"fbreg", func(ev *Evaluator) error {
			if ev.ctx.FrameBase == nil {
				return dwarferrors.Wrap(dwarferrors.Unsupported, dwarferrors.Errorf(dwarferrors.ExprNoFrameBase))
			}
			base, err := ev.ctx.FrameBase()
			if err != nil {
				return err
			}
			return ev.pushValue(uint64(int64(base) + offset))
		}}, nil

	case opBregx:
		reg := int(r.ReadULEB128(0))
		offset := r.ReadSLEB128(0)
		return exprOperator{"bregx", func(ev *Evaluator) error { return ev.pushRegisterOffset(reg, offset) }}, nil

	case opPiece:
		size := r.ReadULEB128(0)
		return exprOperator{"piece", func(ev *Evaluator) error { return ev.closePiece(size, 0, 0) }}, nil

	case opDerefSize:
		size := int(r.Read8(0))
		return exprOperator{"deref_size", func(ev *Evaluator) error { return ev.deref(size) }}, nil

	case opXderefSize:
		size := int(r.Read8(0))
		return exprOperator{"xderef_size", func(ev *Evaluator) error {
			if _, err := ev.pop(); err != nil { // address space identifier, discarded
				return err
			}
			return ev.deref(size)
		}}, nil

	case opNop:
		return exprOperator{"nop", func(ev *Evaluator) error { return nil }}, nil

	case opPushObjectAddress:
		return exprOperator{"push_object_address", func(ev *Evaluator) error {
			if !ev.ctx.HasObjectAddress {
				return dwarferrors.Wrap(dwarferrors.Unsupported, dwarferrors.Errorf(dwarferrors.ExprNoObjectAddr))
			}
			return ev.pushValue(ev.ctx.ObjectAddress)
		}}, nil

	case opCall2:
		offset := uint64(r.Read16(0))
		return exprOperator{"call2", func(ev *Evaluator) error { return ev.call(offset) }}, nil
	case opCall4:
		offset := uint64(r.Read32(0))
		return exprOperator{"call4", func(ev *Evaluator) error { return ev.call(offset) }}, nil
	case opCallRef:
		offset := r.ReadAddress(0)
		return exprOperator{"call_ref", func(ev *Evaluator) error { return ev.call(offset) }}, nil

	case opFormTLSAddress:
		return exprOperator{"form_tls_address", func(ev *Evaluator) error {
			v, err := ev.popValue()
			if err != nil {
				return err
			}
			if ev.ctx.TLS == nil {
				return dwarferrors.Wrap(dwarferrors.Unsupported, dwarferrors.Errorf(dwarferrors.ExprNoObjectAddr))
			}
			resolved, err := ev.ctx.TLS(v)
			if err != nil {
				return err
			}
			return ev.pushValue(resolved)
		}}, nil

	case opCallFrameCFA:
		return exprOperator{"call_frame_cfa", func(ev *Evaluator) error {
			if !ev.ctx.HasCFA {
				return dwarferrors.Wrap(dwarferrors.Unsupported, dwarferrors.Errorf(dwarferrors.ExprNoObjectAddr))
			}
			return ev.pushValue(ev.ctx.CFA)
		}}, nil

	case opBitPiece:
		bitSize := r.ReadULEB128(0)
		bitOffset := r.ReadULEB128(0)
		return exprOperator{"bit_piece", func(ev *Evaluator) error {
			return ev.closePiece(bitSize/8, bitSize%8, bitOffset)
		}}, nil

	case opImplicitValue:
		data := readImplicitValue(r)
		return exprOperator{"implicit_value", func(ev *Evaluator) error {
			if data == nil {
				return dwarferrors.Wrap(dwarferrors.BadData, dwarferrors.Errorf(dwarferrors.ReaderOverflow, "implicit_value"))
			}
			return ev.push(stackEntry{kind: entryImplicit, bytes: data})
		}}, nil

	case opStackValue:
		return exprOperator{"stack_value", func(ev *Evaluator) error {
			top, err := ev.pop()
			if err != nil {
				return err
			}
			bytes := make([]byte, 8)
			ev.ctx.ByteOrder.PutUint64(bytes, top.value)
			return ev.push(stackEntry{kind: entryImplicit, value: top.value, bytes: bytes})
		}}, nil
	}

	return exprOperator{}, errUnsupported(opcode)
}

// readImplicitValue reads a DW_OP_implicit_value operand: a ULEB128
// length followed by that many bytes of immediate data. Returns nil if
// the declared length runs past the end of the expression.
func readImplicitValue(r *reader.Reader) []byte {
	length := r.ReadULEB128(0)
	b := r.Bytes(int(length))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func constOperator(v uint64) exprOperator {
	return exprOperator{"const", func(ev *Evaluator) error { return ev.pushValue(v) }}
}

func arithOperator1(name string, f func(int64) int64) exprOperator {
	return exprOperator{name, func(ev *Evaluator) error {
		a, err := ev.popValue()
		if err != nil {
			return err
		}
		return ev.pushValue(uint64(f(int64(a))))
	}}
}

func arithOperator2(name string, f func(a, b uint64) uint64) exprOperator {
	return exprOperator{name, func(ev *Evaluator) error {
		b, err := ev.popValue()
		if err != nil {
			return err
		}
		a, err := ev.popValue()
		if err != nil {
			return err
		}
		return ev.pushValue(f(a, b))
	}}
}

func cmpOperator(name string, f func(a, b int64) bool) exprOperator {
	return exprOperator{name, func(ev *Evaluator) error {
		b, err := ev.popValue()
		if err != nil {
			return err
		}
		a, err := ev.popValue()
		if err != nil {
			return err
		}
		var result uint64
		if f(int64(a), int64(b)) {
			result = 1
		}
		return ev.pushValue(result)
	}}
}
