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

package cfi_test

import (
	"encoding/binary"
	"testing"

	"github.com/quietloop/dwarfengine/cfi"
	"github.com/quietloop/dwarfengine/target"
	"github.com/quietloop/dwarfengine/test"
)

// buildDebugFrameSection builds a minimal x86-64-shaped .debug_frame
// section: one CIE (code alignment 1, data alignment -8, return address
// register 16, initial rules def_cfa(7, 8) and offset(16, -1 unit)),
// followed by one FDE covering [0x2000, 0x2010) whose instructions mimic
// a push-rbp/mov-rbp,rsp prologue: advance_loc 1; def_cfa_offset 16;
// advance_loc 3; def_cfa_register 6.
func buildDebugFrameSection() []byte {
	cieInstructions := []byte{
		0x0c, 0x07, 0x08, // DW_CFA_def_cfa(reg=7, offset=8)
		0x90, 0x01, // DW_CFA_offset(reg=16, factored offset=1)
	}
	var cieBody []byte
	cieBody = append(cieBody, 0xff, 0xff, 0xff, 0xff) // CIE_id (.debug_frame sentinel)
	cieBody = append(cieBody, 1)                      // version
	cieBody = append(cieBody, 0)                      // augmentation string ""
	cieBody = append(cieBody, 1)                      // code_alignment_factor
	cieBody = append(cieBody, 0x78)                   // data_alignment_factor = -8 (SLEB128)
	cieBody = append(cieBody, 16)                     // return_address_register
	cieBody = append(cieBody, cieInstructions...)

	var cie []byte
	cie = append(cie, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(cie[0:4], uint32(len(cieBody)))
	cie = append(cie, cieBody...)

	fdeInstructions := []byte{
		0x41,       // DW_CFA_advance_loc(1)
		0x0e, 0x10, // DW_CFA_def_cfa_offset(16)
		0x43,       // DW_CFA_advance_loc(3)
		0x0d, 0x06, // DW_CFA_def_cfa_register(6)
	}
	var fdeBody []byte
	fdeBody = append(fdeBody, 0, 0, 0, 0) // CIE_pointer = 0 (offset of the CIE above)
	fdeBody = append(fdeBody, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(fdeBody[4:12], 0x2000) // initial_location
	fdeBody = append(fdeBody, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(fdeBody[12:20], 0x10) // address_range
	fdeBody = append(fdeBody, fdeInstructions...)

	var fde []byte
	fde = append(fde, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(fde[0:4], uint32(len(fdeBody)))
	fde = append(fde, fdeBody...)

	var section []byte
	section = append(section, cie...)
	section = append(section, fde...)
	return section
}

const (
	regRBP = 6
	regRSP = 7
	regRA  = 16
)

// fakeTarget is a minimal target.RegisterTarget for exercising Engine
// without a real stopped process.
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
	return len(buf), nil
}

func (f *fakeTarget) CountRegisters() int { return 17 }

func (f *fakeTarget) RegisterValueType(index int) target.ValueType {
	switch index {
	case regRBP, regRSP, regRA:
		return target.ValueTypeU64
	default:
		return target.ValueTypeNone
	}
}

func (f *fakeTarget) GetRegisterValue(index int) (uint64, bool) {
	v, ok := f.registers[index]
	return v, ok
}

func (f *fakeTarget) SetRegisterValue(index int, value uint64) bool {
	f.registers[index] = value
	return true
}

func (f *fakeTarget) IsCalleePreservedRegister(index int) bool {
	return index == regRBP
}

func (f *fakeTarget) ReadValueFromMemory(address uint64, valueType target.ValueType) (uint64, error) {
	return f.memory[address], nil
}

// fakeInit installs "same value" as the architectural default for the
// handful of registers this test cares about, leaving everything else
// undefined, the way a real target's calling-convention table would.
type fakeInit struct{}

func (fakeInit) InitRegisterRules(ctx interface{}) {
	rs := ctx.(*cfi.RuleSet)
	rs.RegisterRule(regRBP).SetToSameValue()
	rs.RegisterRule(regRSP).SetToSameValue()
}

func TestUnwindFrameComputesCFAAndReturnAddress(t *testing.T) {
	section := buildDebugFrameSection()

	engine, err := cfi.New(section, nil, binary.LittleEndian, 8, 0, 0, nil)
	test.ExpectSuccess(t, err == nil)

	tgt := &fakeTarget{
		registers: map[int]uint64{regRBP: 0x1000, regRSP: 0x3000},
		memory:    map[uint64]uint64{0x1008: 0xdeadbeef},
	}

	cfa, regs, err := engine.UnwindFrame(0x2004, fakeInit{}, tgt)
	test.ExpectSuccess(t, err == nil)

	// By 0x2004 the prologue has run def_cfa_offset(16) then
	// def_cfa_register(6), so CFA = rbp + 16.
	test.ExpectEquality(t, cfa, uint64(0x1010))

	// The CIE's DW_CFA_offset(16, 1) rule resolves to cfa + 1*(-8).
	ra, ok := regs[regRA]
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, ra.Value, uint64(0xdeadbeef))

	rbp, ok := regs[regRBP]
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, rbp.Value, uint64(0x1000))
}

func TestUnwindFrameNoFDECoversAddress(t *testing.T) {
	section := buildDebugFrameSection()

	engine, err := cfi.New(section, nil, binary.LittleEndian, 8, 0, 0, nil)
	test.ExpectSuccess(t, err == nil)

	tgt := &fakeTarget{registers: map[int]uint64{}, memory: map[uint64]uint64{}}
	_, _, err = engine.UnwindFrame(0x9000, fakeInit{}, tgt)
	test.ExpectFailure(t, err == nil)
}

// buildFunctionRelativePersonalitySection builds a .debug_frame CIE whose
// "zP" augmentation encodes its personality pointer with a function-
// relative offset base, followed by one referencing FDE. No registered
// base resolves DW_EH_PE_funcrel, so indexing this section must fail
// rather than silently treating the base as absolute.
func buildFunctionRelativePersonalitySection() []byte {
	var cieBody []byte
	cieBody = append(cieBody, 0xff, 0xff, 0xff, 0xff) // CIE_id (.debug_frame sentinel)
	cieBody = append(cieBody, 1)                      // version
	cieBody = append(cieBody, "zP"...)
	cieBody = append(cieBody, 0) // augmentation string terminator
	cieBody = append(cieBody, 1) // code_alignment_factor
	cieBody = append(cieBody, 0x78)
	cieBody = append(cieBody, 16) // return_address_register
	cieBody = append(cieBody, 1)  // augmentation data length
	cieBody = append(cieBody, 0x40)

	var cie []byte
	cie = append(cie, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(cie[0:4], uint32(len(cieBody)))
	cie = append(cie, cieBody...)

	var fdeBody []byte
	fdeBody = append(fdeBody, 0, 0, 0, 0) // CIE_pointer = 0
	fdeBody = append(fdeBody, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(fdeBody[4:12], 0x3000) // initial_location
	fdeBody = append(fdeBody, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint64(fdeBody[12:20], 0x10) // address_range

	var fde []byte
	fde = append(fde, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(fde[0:4], uint32(len(fdeBody)))
	fde = append(fde, fdeBody...)

	var section []byte
	section = append(section, cie...)
	section = append(section, fde...)
	return section
}

func TestNewRejectsFunctionRelativePersonalityEncoding(t *testing.T) {
	section := buildFunctionRelativePersonalitySection()

	_, err := cfi.New(section, nil, binary.LittleEndian, 8, 0, 0, nil)
	test.ExpectFailure(t, err == nil)
}
