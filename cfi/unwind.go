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
	"github.com/quietloop/dwarfengine/target"
)

// ExpressionEvaluator evaluates a DWARF location expression against a
// stopped target and returns the resulting value. It exists so this
// package never imports the expression evaluator directly (which would
// need to import this package's rule types right back), per the same
// import-cycle avoidance the target package documents for RuleInitializer.
type ExpressionEvaluator func(expression []byte, cfa uint64, input target.RegisterTarget) (uint64, error)

// section holds one frame section's bytes and FDE index.
type section struct {
	data    []byte
	ehFrame bool
	index   []fdeRecord
}

// Engine unwinds call frames using whichever of .debug_frame and
// .eh_frame sections are available for an object. A lookup first tries
// .eh_frame, since it is present in stripped binaries that omit
// .debug_frame, then falls back to .debug_frame.
type Engine struct {
	byteOrder   binary.ByteOrder
	addressSize int

	textBase uint64
	dataBase uint64

	sections []section

	evalExpr ExpressionEvaluator
}

// New builds an Engine from the raw .debug_frame and/or .eh_frame section
// bytes of an object; either may be nil if the section is absent.
// textBase and dataBase are the runtime load addresses of the object's
// text and data segments, used to resolve text-relative and
// data-relative encoded addresses. evalExpr is consulted only for rules
// built from DW_CFA_def_cfa_expression/expression/val_expression; it may
// be nil if the object is known not to use them.
func New(debugFrame, ehFrame []byte, byteOrder binary.ByteOrder, addressSize int, textBase, dataBase uint64, evalExpr ExpressionEvaluator) (*Engine, error) {
	e := &Engine{
		byteOrder:   byteOrder,
		addressSize: addressSize,
		textBase:    textBase,
		dataBase:    dataBase,
		evalExpr:    evalExpr,
	}

	if ehFrame != nil {
		idx, err := buildIndex(ehFrame, byteOrder, addressSize, true, e.basesAt)
		if err != nil {
			return nil, err
		}
		e.sections = append(e.sections, section{data: ehFrame, ehFrame: true, index: idx})
	}
	if debugFrame != nil {
		idx, err := buildIndex(debugFrame, byteOrder, addressSize, false, e.basesAt)
		if err != nil {
			return nil, err
		}
		e.sections = append(e.sections, section{data: debugFrame, ehFrame: false, index: idx})
	}

	return e, nil
}

// basesAt returns the address bases for an encoded-address field. This
// engine does not track a per-section or per-field load address, so
// fieldOffset is not used: pc-relative encodings resolve against
// textBase, the same base text-relative encodings use.
func (e *Engine) basesAt(fieldOffset int64) addressBases {
	return addressBases{pcRelAnchor: e.textBase, textBase: e.textBase, dataBase: e.dataBase}
}

// RegisterView is the unwound value of one register, as produced by
// applying its rule against the context the register was found in.
type RegisterView struct {
	Type  target.ValueType
	Value uint64
}

// UnwindFrame unwinds the single frame containing pc. init installs
// architecture-default register rules before any CIE/FDE instruction
// runs; input supplies the registers and memory of the frame being
// unwound. It returns the canonical frame address of the unwound frame
// and the computed values of the caller's registers.
func (e *Engine) UnwindFrame(pc uint64, init target.RuleInitializer, input target.RegisterTarget) (cfa uint64, registers map[int]RegisterView, err error) {
	for _, sec := range e.sections {
		record, ok := findFDE(sec.index, pc)
		if !ok {
			continue
		}
		return e.unwindWith(sec, record, pc, init, input)
	}
	return 0, nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
		dwarferrors.Errorf(dwarferrors.FDENotFound, pc))
}

func (e *Engine) unwindWith(sec section, record fdeRecord, pc uint64, init target.RuleInitializer, input target.RegisterTarget) (uint64, map[int]RegisterView, error) {
	bases := e.basesAt(record.fdeOffset)

	c, err := parseCIE(sec.data, e.byteOrder, e.addressSize, record.cieOffset, sec.ehFrame, bases)
	if err != nil {
		return 0, nil, err
	}

	registerCount := input.CountRegisters()
	ctx := &context{
		codeAlignment:         c.codeAlignment,
		dataAlignment:         c.dataAlignment,
		returnAddressRegister: c.returnAddressRegister,
	}
	ctx.init(registerCount)
	init.InitRegisterRules(ctx.ruleSet)

	ctx.setLocation(pc, record.start)
	if _, err := runInstructions(ctx, c.instructions, e.byteOrder, e.addressSize, c.aug, bases); err != nil {
		return 0, nil, err
	}
	ctx.saveInitialRuleSet()

	fdeInstructions, err := parseFDEInstructions(sec.data, e.byteOrder, e.addressSize, record, c.aug)
	if err != nil {
		return 0, nil, err
	}
	if _, err := runInstructions(ctx, fdeInstructions, e.byteOrder, e.addressSize, c.aug, bases); err != nil {
		return 0, nil, err
	}

	cfa, err := e.resolveCFA(ctx.ruleSet.CFA, input)
	if err != nil {
		return 0, nil, err
	}

	out := make(map[int]RegisterView, registerCount)
	for i := 0; i < registerCount; i++ {
		vt := input.RegisterValueType(i)
		if vt == target.ValueTypeNone {
			continue
		}
		rule := ctx.ruleSet.RegisterRule(i)
		if rule == nil {
			continue
		}
		value, ok, err := e.resolveRegister(*rule, i, cfa, input)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			continue
		}
		out[i] = RegisterView{Type: vt, Value: value}
	}

	return cfa, out, nil
}

// resolveCFA computes the canonical frame address from a CFA rule.
func (e *Engine) resolveCFA(rule CFARule, input target.RegisterTarget) (uint64, error) {
	switch rule.Type {
	case CFARuleRegisterOffset:
		base, ok := input.GetRegisterValue(rule.Register)
		if !ok {
			return 0, dwarferrors.Wrap(dwarferrors.EntryNotFound,
				dwarferrors.Errorf(dwarferrors.RegisterUnavailable, rule.Register))
		}
		return uint64(int64(base) + rule.Offset), nil
	case CFARuleExpression:
		if e.evalExpr == nil {
			return 0, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.ExprNoObjectAddr))
		}
		return e.evalExpr(rule.Expression, 0, input)
	default:
		return 0, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.CFACFAUndefined))
	}
}

// resolveRegister computes register reg's unwound value according to
// rule, given the already-computed cfa and the frame's input registers
// and memory. ok is false for a rule that legitimately has no value to
// report (RuleUndefined).
func (e *Engine) resolveRegister(rule Rule, reg int, cfa uint64, input target.RegisterTarget) (value uint64, ok bool, err error) {
	switch rule.Type {
	case RuleUndefined:
		return 0, false, nil

	case RuleSameValue:
		v, present := input.GetRegisterValue(reg)
		return v, present, nil

	case RuleLocationOffset:
		address := uint64(int64(cfa) + rule.Offset)
		v, err := input.ReadValueFromMemory(address, input.RegisterValueType(reg))
		if err != nil {
			return 0, false, err
		}
		return v, true, nil

	case RuleValueOffset:
		return uint64(int64(cfa) + rule.Offset), true, nil

	case RuleRegister:
		v, present := input.GetRegisterValue(rule.Register)
		return v, present, nil

	case RuleLocationExpression:
		if e.evalExpr == nil {
			return 0, false, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.ExprNoObjectAddr))
		}
		address, err := e.evalExpr(rule.Expression, cfa, input)
		if err != nil {
			return 0, false, err
		}
		v, err := input.ReadValueFromMemory(address, input.RegisterValueType(reg))
		if err != nil {
			return 0, false, err
		}
		return v, true, nil

	case RuleValueExpression:
		if e.evalExpr == nil {
			return 0, false, dwarferrors.Wrap(dwarferrors.Unsupported,
				dwarferrors.Errorf(dwarferrors.ExprNoObjectAddr))
		}
		v, err := e.evalExpr(rule.Expression, cfa, input)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil

	default:
		return 0, false, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.CFIBadRuleType, rule.Type))
	}
}
