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

package expr_test

import (
	"encoding/binary"
	"testing"

	"github.com/quietloop/dwarfengine/dwarfdata"
	"github.com/quietloop/dwarfengine/expr"
	"github.com/quietloop/dwarfengine/target"
	"github.com/quietloop/dwarfengine/test"
)

// fakeTarget is a minimal target.RegisterTarget over in-memory maps, the
// same shape cfi_test.go exercises the CFI engine with.
type fakeTarget struct {
	registers map[int]uint64
	memory    map[uint64]uint64
}

func (f *fakeTarget) ReadMemory(address uint64, buf []byte) (int, error) {
	v, ok := f.memory[address]
	if !ok {
		return 0, nil
	}
	binary.LittleEndian.PutUint64(buf, v)
	if len(buf) < 8 {
		return len(buf), nil
	}
	return 8, nil
}

func (f *fakeTarget) CountRegisters() int                          { return 17 }
func (f *fakeTarget) RegisterValueType(index int) target.ValueType { return target.ValueTypeU64 }
func (f *fakeTarget) GetRegisterValue(index int) (uint64, bool) {
	v, ok := f.registers[index]
	return v, ok
}
func (f *fakeTarget) SetRegisterValue(index int, value uint64) bool {
	f.registers[index] = value
	return true
}
func (f *fakeTarget) IsCalleePreservedRegister(index int) bool { return false }
func (f *fakeTarget) ReadValueFromMemory(address uint64, valueType target.ValueType) (uint64, error) {
	return f.memory[address], nil
}

func baseContext(tgt target.RegisterTarget) expr.Context {
	return expr.Context{
		ByteOrder:   binary.LittleEndian,
		AddressSize: 8,
		Target:      tgt,
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	// DW_OP_lit10 DW_OP_lit20 DW_OP_plus DW_OP_lit5 DW_OP_mul => (10+20)*5
	code := []byte{0x30 + 10, 0x30 + 20, 0x22, 0x30 + 5, 0x1e}
	v, err := expr.Evaluate(baseContext(nil), code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, v, uint64(150))
}

func TestEvaluateFbregAndDeref(t *testing.T) {
	tgt := &fakeTarget{memory: map[uint64]uint64{0x1ff0: 0xcafef00d}}
	ctx := baseContext(tgt)
	ctx.FrameBase = func() (uint64, error) { return 0x2000, nil }

	// DW_OP_fbreg -16, DW_OP_deref
	code := []byte{0x91, 0x70, 0x06}
	v, err := expr.Evaluate(ctx, code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, v, uint64(0xcafef00d))
}

func TestEvaluateBregAndRegisterLocation(t *testing.T) {
	tgt := &fakeTarget{registers: map[int]uint64{0: 0x4000}}
	ctx := baseContext(tgt)

	// DW_OP_breg0 +8
	code := []byte{0x70, 0x08}
	v, err := expr.Evaluate(ctx, code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, v, uint64(0x4008))
}

func TestEvaluateLocationRegister(t *testing.T) {
	ctx := baseContext(nil)
	// DW_OP_reg3
	code := []byte{0x50 + 3}
	loc, err := expr.EvaluateLocation(ctx, code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, len(loc.Pieces), 1)
	test.ExpectEquality(t, loc.Pieces[0].Kind, dwarfdata.PieceRegister)
	test.ExpectEquality(t, loc.Pieces[0].Register, 3)
}

func TestEvaluateLocationComposite(t *testing.T) {
	ctx := baseContext(nil)
	// DW_OP_reg0 DW_OP_piece(4) DW_OP_reg1 DW_OP_piece(4)
	code := []byte{0x50 + 0, 0x93, 0x04, 0x50 + 1, 0x93, 0x04}
	loc, err := expr.EvaluateLocation(ctx, code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, len(loc.Pieces), 2)
	test.ExpectEquality(t, loc.Pieces[0].Register, 0)
	test.ExpectEquality(t, loc.Pieces[1].Register, 1)
	test.ExpectEquality(t, loc.Pieces[0].Size, uint64(4))
}

func TestEvaluateCallFrameCFA(t *testing.T) {
	ctx := baseContext(nil)
	ctx.CFA = 0x7000
	ctx.HasCFA = true
	code := []byte{0x9c} // DW_OP_call_frame_cfa
	v, err := expr.Evaluate(ctx, code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, v, uint64(0x7000))
}

func TestEvaluateStackUnderflowFails(t *testing.T) {
	ctx := baseContext(nil)
	code := []byte{0x22} // DW_OP_plus with nothing pushed
	_, err := expr.Evaluate(ctx, code, expr.InitialValue{})
	test.ExpectFailure(t, err == nil)
}

func TestEvaluateBranch(t *testing.T) {
	ctx := baseContext(nil)
	// DW_OP_lit1 DW_OP_bra +1 DW_OP_lit0 DW_OP_lit9
	// lit1 pushes a nonzero value, so bra jumps past the one-byte lit0
	// straight to lit9.
	code := []byte{
		0x30 + 1,   // lit1
		0x28, 1, 0, // bra +1
		0x30 + 0, // lit0 (skipped over)
		0x30 + 9, // lit9 (landed on)
	}
	v, err := expr.Evaluate(ctx, code, expr.InitialValue{})
	test.ExpectSuccess(t, err == nil)
	test.ExpectEquality(t, v, uint64(9))
}
