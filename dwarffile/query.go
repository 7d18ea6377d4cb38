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

package dwarffile

import (
	"github.com/quietloop/dwarfengine/cfi"
	"github.com/quietloop/dwarfengine/dwarfdata"
	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/expr"
	"github.com/quietloop/dwarfengine/line"
	"github.com/quietloop/dwarfengine/target"
)

// FunctionInfo is one DW_TAG_subprogram entry, with its address range
// resolved out of whichever of low_pc/high_pc/ranges it carries.
type FunctionInfo struct {
	DIE      *dwarfdata.DIE
	Name     string
	LowPC    uint64
	HighPC   uint64
	HasRange bool
	DeclFile uint64
	DeclLine uint64
}

// LoadFunctions returns every subprogram defined directly in unit, per
// §6.2.
func (f *File) LoadFunctions(unit *dwarfdata.CompilationUnit) ([]FunctionInfo, error) {
	if err := f.requireFinished(); err != nil {
		return nil, err
	}

	var out []FunctionInfo
	for _, d := range unit.Entries {
		if d.Tag != dwarfdata.TagSubprogram {
			continue
		}
		fi := FunctionInfo{DIE: d, Name: d.Name()}
		if v, ok := d.DeclFile(); ok {
			fi.DeclFile = v
		}
		if v, ok := d.DeclLine(); ok {
			fi.DeclLine = v
		}
		if low, high, ok := subprogramRange(d); ok {
			fi.LowPC, fi.HighPC, fi.HasRange = low, high, true
		} else if ranges, ok, err := f.ResolveRanges(unit, d); err == nil && ok && len(ranges) > 0 {
			fi.LowPC, fi.HighPC, fi.HasRange = ranges[0].Low, ranges[len(ranges)-1].High, true
		}
		out = append(out, fi)
	}
	return out, nil
}

// subprogramRange resolves a subprogram's [low_pc, high_pc) range.
// high_pc is either an address in its own right or, per DWARF4 §2.17.2,
// an unsigned constant offset from low_pc; ranges expressed instead via
// DW_AT_ranges are left to the caller to resolve through dwarfdata's own
// range-list parser, since that requires the unit's .debug_ranges bytes
// this method doesn't otherwise need.
func subprogramRange(d *dwarfdata.DIE) (low, high uint64, ok bool) {
	lowAttr, lowOK := d.Attr(dwarfdata.AttrLowpc)
	highAttr, highOK := d.Attr(dwarfdata.AttrHighpc)
	if !lowOK || lowAttr.Class != dwarfdata.ClassAddress || !highOK {
		return 0, 0, false
	}
	low = lowAttr.Addr
	switch highAttr.Class {
	case dwarfdata.ClassAddress:
		high = highAttr.Addr
	case dwarfdata.ClassConstantUnsigned:
		high = low + highAttr.Const
	default:
		return 0, 0, false
	}
	return low, high, true
}

// ResolveRanges resolves a DIE's DW_AT_ranges attribute, if it has one,
// to the address ranges it names, per §4.7. ok is false if d carries no
// DW_AT_ranges attribute at all, which is not an error.
func (f *File) ResolveRanges(unit *dwarfdata.CompilationUnit, d *dwarfdata.DIE) ([]dwarfdata.AddressRange, bool, error) {
	v, ok := d.Attr(dwarfdata.AttrRanges)
	if !ok {
		return nil, false, nil
	}
	if f.rawRanges == nil {
		return nil, false, nil
	}
	var offset uint64
	switch v.Class {
	case dwarfdata.ClassSecOffset:
		offset = v.SecOffs
	case dwarfdata.ClassConstantUnsigned:
		offset = v.Const
	default:
		return nil, false, nil
	}
	ranges, err := dwarfdata.ParseRangeList(f.rawRanges, f.byteOrder, int64(offset), unit.AddressSize, unit.BaseAddress)
	if err != nil {
		return nil, false, err
	}
	return ranges, true, nil
}

// lineProgramFor returns the parsed line-number program belonging to
// unit, if it has one.
func (f *File) lineProgramFor(unit *dwarfdata.CompilationUnit) (*line.Program, bool) {
	if !unit.HasLineProgram {
		return nil, false
	}
	p, ok := f.lines[unit.LineProgramOffset]
	return p, ok
}

// ResolveStatement finds the row of unit's line-number table that
// covers pc, per §6.2.
func (f *File) ResolveStatement(unit *dwarfdata.CompilationUnit, pc uint64) (line.Row, error) {
	if err := f.requireFinished(); err != nil {
		return line.Row{}, err
	}
	prog, ok := f.lineProgramFor(unit)
	if !ok {
		return line.Row{}, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.LineNoRowForPC, pc))
	}
	return prog.RowForPC(pc)
}

// ResolveStatementBySourceLocation finds the lowest-addressed row of
// unit's line-number table naming (sourceFile, sourceLine[, column]),
// per §6.2. column of 0 matches any column.
func (f *File) ResolveStatementBySourceLocation(unit *dwarfdata.CompilationUnit, sourceFile string, sourceLine, column int) (line.Row, error) {
	if err := f.requireFinished(); err != nil {
		return line.Row{}, err
	}
	prog, ok := f.lineProgramFor(unit)
	if !ok {
		return line.Row{}, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.LineNoRowForPC, uint64(sourceLine)))
	}

	prog.Reset()
	var best line.Row
	found := false
	var row line.Row
	for {
		err := prog.GetNextRow(&row)
		if err == line.ErrEndOfTable {
			break
		}
		if err != nil {
			return line.Row{}, err
		}
		if row.EndSequence || row.Line != sourceLine {
			continue
		}
		if column != 0 && row.Column != column {
			continue
		}
		if row.File == nil || row.File.Name != sourceFile {
			continue
		}
		if !found || row.Address < best.Address {
			best, found = row, true
		}
	}
	if !found {
		return line.Row{}, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.LineNoRowForPC, uint64(sourceLine)))
	}
	return best, nil
}

// UnwindCallFrame unwinds the call frame active at pc, installing
// target-specific default register rules via init before interpreting
// whichever FDE covers pc, per §6.2/§4.8. It returns the frame's
// canonical frame address and the unwound value of every register of
// input whose value type is known and whose rule yields a value.
func (f *File) UnwindCallFrame(pc uint64, init target.RuleInitializer, input target.RegisterTarget) (uint64, map[int]cfi.RegisterView, error) {
	if err := f.requireFinished(); err != nil {
		return 0, nil, err
	}
	if f.cfiEngine == nil {
		return 0, nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.FDENotFound, pc))
	}
	return f.cfiEngine.UnwindFrame(pc, init, input)
}

// exprContext builds the evaluation context shared by EvaluateExpression
// and ResolveLocation.
func (f *File) exprContext(tgt target.RegisterTarget, frameBase expr.FrameBaseResolver) expr.Context {
	return expr.Context{
		ByteOrder:   f.byteOrder,
		AddressSize: f.addressSize,
		Target:      tgt,
		FrameBase:   frameBase,
		CallTarget:  f,
	}
}

// EvaluateExpression runs a DWARF expression to a single scalar value,
// per §4.9/§6.2 -- the form used for DW_AT_const_value-shaped
// expressions, array bounds, and anywhere else a location expression's
// result is consumed as a number rather than a location.
func (f *File) EvaluateExpression(expression []byte, tgt target.RegisterTarget, frameBase expr.FrameBaseResolver, initial expr.InitialValue) (uint64, error) {
	if err := f.requireFinished(); err != nil {
		return 0, err
	}
	return expr.Evaluate(f.exprContext(tgt, frameBase), expression, initial)
}

// ResolveLocation runs a DWARF location expression to a ValueLocation
// (memory address, register, implicit value, or composite of these),
// per §4.9/§6.2. When path is non-empty, the result is narrowed by each
// subscript in turn via dwarfdata.ResolveIndexPath, per §3.7 -- the
// mechanism a caller descending into a nested array or structure member
// uses instead of re-evaluating the expression from scratch for every
// element. objectBitSize is the full bit width of the object the
// expression describes; it is only consulted when path is non-empty and
// the expression produced a single, non-composite piece, whose size
// EvaluateLocation itself leaves at zero for the caller -- who alone
// knows the DWARF type -- to fill in before narrowing.
func (f *File) ResolveLocation(expression []byte, tgt target.RegisterTarget, frameBase expr.FrameBaseResolver, relocationDelta uint64, objectAddress uint64, hasObjectAddress bool, objectBitSize uint64, path ...dwarfdata.Subscript) (*dwarfdata.ValueLocation, error) {
	if err := f.requireFinished(); err != nil {
		return nil, err
	}
	ctx := f.exprContext(tgt, frameBase)
	ctx.RelocationDelta = relocationDelta
	ctx.ObjectAddress = objectAddress
	ctx.HasObjectAddress = hasObjectAddress
	loc, err := expr.EvaluateLocation(ctx, expression, expr.InitialValue{})
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return loc, nil
	}
	if len(loc.Pieces) == 1 && loc.Pieces[0].TotalBits() == 0 && objectBitSize > 0 {
		loc.Pieces[0].Size = objectBitSize / 8
		loc.Pieces[0].BitSize = uint8(objectBitSize % 8)
	}
	return dwarfdata.ResolveIndexPath(loc, path), nil
}

// EvaluateConstantValue returns a DIE's DW_AT_const_value, per §6.2. It
// returns a curated EntryNotFound error if d carries no such attribute.
func (f *File) EvaluateConstantValue(d *dwarfdata.DIE) (dwarfdata.AttrValue, error) {
	v, ok := d.Attr(dwarfdata.AttrConstValue)
	if !ok {
		return dwarfdata.AttrValue{}, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.ConstantValueMissing))
	}
	return v, nil
}

// EvaluateDynamicValue evaluates an attribute whose value may be a plain
// constant or an exprloc-valued expression -- the DWARF5 "dynamic value"
// idiom used for variable-length array bounds, DW_AT_byte_size, and
// similar attributes of types whose size depends on a runtime value, per
// §6.2. A constant form is returned directly, matching the ground
// truth's EvaluateDynamicValue; a block form is run as an expression the
// same way EvaluateExpression does.
func (f *File) EvaluateDynamicValue(d *dwarfdata.DIE, attr dwarfdata.Attr, tgt target.RegisterTarget, frameBase expr.FrameBaseResolver) (uint64, error) {
	if err := f.requireFinished(); err != nil {
		return 0, err
	}
	v, ok := d.Attr(attr)
	if !ok {
		return 0, dwarferrors.Wrap(dwarferrors.EntryNotFound, errAttributeNotHandled)
	}
	switch v.Class {
	case dwarfdata.ClassConstantUnsigned:
		return v.Const, nil
	case dwarfdata.ClassConstantSigned:
		return uint64(v.SConst), nil
	case dwarfdata.ClassBlock:
		result, err := expr.Evaluate(f.exprContext(tgt, frameBase), v.Block, expr.InitialValue{})
		if err != nil {
			return 0, err
		}
		return result, nil
	default:
		return 0, dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.DynamicValueUnhandled, uint64(attr)))
	}
}

// ResolveCall implements target.CallTarget for DW_OP_call2/call4/call_ref:
// offset names a DIE, global to `.debug_info`, whose DW_AT_location is
// itself the sub-expression to run.
func (f *File) ResolveCall(offset uint64) ([]byte, bool) {
	d, err := f.manager.ResolveGlobalRef(offset)
	if err != nil {
		return nil, false
	}
	v, ok := d.Attr(dwarfdata.AttrLocation)
	if !ok || v.Class != dwarfdata.ClassBlock {
		return nil, false
	}
	return v.Block, true
}
