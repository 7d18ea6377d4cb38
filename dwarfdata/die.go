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

package dwarfdata

import (
	"github.com/quietloop/dwarfengine/logger"

	dwarferrors "github.com/quietloop/dwarfengine/errors"
	"github.com/quietloop/dwarfengine/reader"
)

// RefKind is the flavour of a reference attribute value, per §3.3.
type RefKind int

const (
	// RefLocal is an offset relative to the containing unit.
	RefLocal RefKind = iota
	// RefGlobal is an absolute offset into .debug_info.
	RefGlobal
	// RefSignature is a 64-bit key into the type-unit signature map.
	RefSignature
)

// Ref is a resolved-or-resolvable reference to another DIE.
type Ref struct {
	Kind      RefKind
	Offset    uint64 // meaningful for RefLocal/RefGlobal
	Signature uint64 // meaningful for RefSignature
}

// AttrValue is a tagged union over the value classes a DIE attribute can
// carry, per §3.2.
type AttrValue struct {
	Class   Class
	Addr    uint64
	Const   uint64
	SConst  int64
	Flag    bool
	Block   []byte
	Str     string
	Ref     Ref
	SecOffs uint64
}

// DIE is one debug information entry: a tag, a position in the tree, and
// its attribute set. The same struct serves every tag: unlike the
// class-per-tag hierarchy this model descends from, callers branch on
// Tag themselves and read out of Attrs, which keeps the factory a single
// flat table instead of dozens of near-identical setter types.
type DIE struct {
	Offset   uint64 // unit-relative
	Tag      Tag
	Parent   *DIE
	Children []*DIE
	Attrs    map[Attr]AttrValue

	// sibling is the resolved forward-sibling DIE, set from AttrSibling
	// during the attribute pass, or nil if absent or ignorable (§4.4's
	// gcc-2 quirk: a sibling pointer past the end of the sibling list is
	// silently dropped rather than treated as an error).
	sibling *DIE
}

// Attr looks up a single attribute value.
func (d *DIE) Attr(name Attr) (AttrValue, bool) {
	v, ok := d.Attrs[name]
	return v, ok
}

// Name returns the DW_AT_name string, or "" if the DIE has none.
func (d *DIE) Name() string {
	if v, ok := d.Attrs[AttrName]; ok && v.Class == ClassString {
		return v.Str
	}
	return ""
}

// DeclFile, DeclLine, DeclColumn return the declaration-location
// attributes, per §3.2's "declaration-location entries" category.
func (d *DIE) DeclFile() (uint64, bool)   { return d.unsignedAttr(AttrDeclFile) }
func (d *DIE) DeclLine() (uint64, bool)   { return d.unsignedAttr(AttrDeclLine) }
func (d *DIE) DeclColumn() (uint64, bool) { return d.unsignedAttr(AttrDeclColumn) }

func (d *DIE) unsignedAttr(name Attr) (uint64, bool) {
	v, ok := d.Attrs[name]
	if !ok {
		return 0, false
	}
	switch v.Class {
	case ClassConstantUnsigned:
		return v.Const, true
	case ClassConstantSigned:
		return uint64(v.SConst), true
	}
	return 0, false
}

// Sibling returns the DIE's resolved forward sibling, if any.
func (d *DIE) Sibling() *DIE { return d.sibling }

// dieParser performs the two-pass parse described in §4.4 over one unit's
// DIE stream.
type dieParser struct {
	r       *reader.Reader
	abbrevs *AbbrevTable
	dwarf64 bool
	log     *logger.Log

	byOffset []*DIE // ascending by Offset, per §3.1's invariant
}

// ParseDIETree runs the two-pass parse of a unit's `.debug_info` content,
// starting at r's current position, and returns the root DIE plus every
// DIE in the unit ordered ascending by offset (for EntryForOffset's binary
// search).
func ParseDIETree(r *reader.Reader, abbrevs *AbbrevTable, dwarf64 bool, log *logger.Log) (*DIE, []*DIE, error) {
	p := &dieParser{r: r, abbrevs: abbrevs, dwarf64: dwarf64, log: log}

	root, err := p.parseStructural(nil)
	if err != nil {
		return nil, nil, err
	}
	if root == nil {
		return nil, nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.DIEOffsetNotFound, uint64(0)))
	}

	if err := p.attributePass(); err != nil {
		return nil, nil, err
	}

	if err := p.resolveSiblings(root); err != nil {
		return nil, nil, err
	}

	return root, p.byOffset, nil
}

// parseStructural builds the tree shape and the offset-to-DIE index
// (§4.4 pass 1): construct a DIE per abbreviation code, consume its
// attributes without interpreting them, and recurse for children until
// the null-code terminator.
func (p *dieParser) parseStructural(parent *DIE) (*DIE, error) {
	offset := uint64(p.r.Offset())
	code := p.r.ReadULEB128(0)
	if p.r.HasOverflow() {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.DIEOffsetNotFound, offset))
	}
	if code == 0 {
		// null entry: end of this child list, not a DIE.
		return nil, nil
	}

	entry, ok := p.abbrevs.Entry(code)
	if !ok {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.AbbrevUnknownCode, code))
	}

	d := &DIE{
		Offset: offset,
		Tag:    entry.Tag,
		Parent: parent,
		Attrs:  make(map[Attr]AttrValue, len(entry.Attrs)),
	}
	p.byOffset = append(p.byOffset, d)

	if err := p.skipAttrs(entry); err != nil {
		return nil, err
	}

	if entry.HasChildren {
		for {
			child, err := p.parseStructural(d)
			if err != nil {
				return nil, err
			}
			if child == nil {
				break
			}
			d.Children = append(d.Children, child)
		}
	}

	return d, nil
}

// skipAttrs consumes the raw bytes of every attribute in entry without
// recording them; only their byte width matters during the structural
// pass.
func (p *dieParser) skipAttrs(entry *AbbrevEntry) error {
	for _, a := range entry.Attrs {
		if a.HasImplicitConst {
			continue
		}
		if err := skipForm(p.r, a.Form, p.dwarf64); err != nil {
			return err
		}
	}
	return nil
}

// attributePass walks every DIE in offset order (§4.4 pass 2), re-reading
// its attributes and dispatching each to the typed AttrValue union. The
// reader is repositioned to each DIE's recorded offset, so this pass can
// run independently of parseStructural's recursion order.
func (p *dieParser) attributePass() error {
	for _, d := range p.byOffset {
		p.r.SeekAbsolute(int64(d.Offset))
		code := p.r.ReadULEB128(0)
		entry, ok := p.abbrevs.Entry(code)
		if !ok {
			return dwarferrors.Wrap(dwarferrors.BadData,
				dwarferrors.Errorf(dwarferrors.AbbrevUnknownCode, code))
		}
		for _, a := range entry.Attrs {
			v, err := p.readAttrValue(a)
			if err != nil {
				return err
			}
			d.Attrs[a.Name] = v
		}
	}
	return nil
}

// readAttrValue reads one attribute's value per its form, classifying it
// via ClassOf. A form this switch does not decode is logged and returned
// as ClassUnknown rather than failing; a form skipForm does not recognise
// has already failed the structural pass, since its size is unknown.
func (p *dieParser) readAttrValue(a AbbrevAttr) (AttrValue, error) {
	class := ClassOf(a.Name, a.Form)

	if a.HasImplicitConst {
		return AttrValue{Class: ClassConstantSigned, SConst: a.ImplicitConst}, nil
	}

	switch a.Form {
	case FormAddr:
		return AttrValue{Class: ClassAddress, Addr: p.r.ReadAddress(0)}, nil
	case FormAddrx1, FormStrx1:
		return AttrValue{Class: class, Const: uint64(p.r.Read8(0))}, nil
	case FormAddrx2, FormStrx2:
		return AttrValue{Class: class, Const: uint64(p.r.Read16(0))}, nil
	case FormAddrx3, FormStrx3:
		lo := p.r.Read16(0)
		hi := p.r.Read8(0)
		return AttrValue{Class: class, Const: uint64(lo) | uint64(hi)<<16}, nil
	case FormAddrx4, FormStrx4:
		return AttrValue{Class: class, Const: uint64(p.r.Read32(0))}, nil
	case FormAddrx, FormStrx, FormUdata, FormRefUdata, FormLoclistx, FormRnglistx:
		return AttrValue{Class: class, Const: p.r.ReadULEB128(0)}, nil
	case FormBlock1:
		n := p.r.Read8(0)
		return AttrValue{Class: ClassBlock, Block: readBlock(p.r, int64(n))}, nil
	case FormBlock2:
		n := p.r.Read16(0)
		return AttrValue{Class: ClassBlock, Block: readBlock(p.r, int64(n))}, nil
	case FormBlock4:
		n := p.r.Read32(0)
		return AttrValue{Class: ClassBlock, Block: readBlock(p.r, int64(n))}, nil
	case FormBlock, FormExprloc:
		n := p.r.ReadULEB128(0)
		return AttrValue{Class: ClassBlock, Block: readBlock(p.r, int64(n))}, nil
	case FormData16:
		return AttrValue{Class: ClassBlock, Block: readBlock(p.r, 16)}, nil
	case FormData1:
		return AttrValue{Class: class, Const: uint64(p.r.Read8(0))}, nil
	case FormData2:
		return AttrValue{Class: class, Const: uint64(p.r.Read16(0))}, nil
	case FormData4:
		return AttrValue{Class: class, Const: uint64(p.r.Read32(0))}, nil
	case FormData8:
		return AttrValue{Class: class, Const: p.r.Read64(0)}, nil
	case FormSdata:
		return AttrValue{Class: ClassConstantSigned, SConst: p.r.ReadSLEB128(0)}, nil
	case FormString:
		return AttrValue{Class: ClassString, Str: p.r.ReadString("")}, nil
	case FormStrp, FormLineStrp:
		off := readSecOffset(p.r, p.dwarf64)
		return AttrValue{Class: ClassString, SecOffs: off}, nil
	case FormFlag:
		return AttrValue{Class: ClassFlag, Flag: p.r.Read8(0) != 0}, nil
	case FormFlagPresent:
		return AttrValue{Class: ClassFlag, Flag: true}, nil
	case FormRefAddr:
		return AttrValue{Class: ClassReference, Ref: Ref{Kind: RefGlobal, Offset: readSecOffset(p.r, p.dwarf64)}}, nil
	case FormRef1:
		return AttrValue{Class: ClassReference, Ref: Ref{Kind: RefLocal, Offset: uint64(p.r.Read8(0))}}, nil
	case FormRef2:
		return AttrValue{Class: ClassReference, Ref: Ref{Kind: RefLocal, Offset: uint64(p.r.Read16(0))}}, nil
	case FormRef4:
		return AttrValue{Class: ClassReference, Ref: Ref{Kind: RefLocal, Offset: uint64(p.r.Read32(0))}}, nil
	case FormRef8:
		return AttrValue{Class: ClassReference, Ref: Ref{Kind: RefLocal, Offset: p.r.Read64(0)}}, nil
	case FormRefSig8:
		return AttrValue{Class: ClassReference, Ref: Ref{Kind: RefSignature, Signature: p.r.Read64(0)}}, nil
	case FormSecOffset:
		return AttrValue{Class: ClassSecOffset, SecOffs: readSecOffset(p.r, p.dwarf64)}, nil
	case FormIndirect:
		actual := Form(p.r.ReadULEB128(0))
		return p.readAttrValue(AbbrevAttr{Name: a.Name, Form: actual})
	default:
		if p.log != nil {
			p.log.Logf(logger.Allow, "dwarf", dwarferrors.DIEUnknownForm, a.Form, a.Name)
		}
		return AttrValue{Class: ClassUnknown}, nil
	}
}

// resolveSiblings walks the tree resolving each DIE's AttrSibling
// reference to the DIE object it names. A sibling offset pointing past
// the end of the current child list is silently ignored, matching the
// gcc-2 quirk called out in §4.4.
func (p *dieParser) resolveSiblings(root *DIE) error {
	var walk func(d *DIE)
	walk = func(d *DIE) {
		if v, ok := d.Attrs[AttrSibling]; ok && v.Class == ClassReference && v.Ref.Kind == RefLocal && d.Parent != nil {
			for _, candidate := range d.Parent.Children {
				if candidate.Offset == v.Ref.Offset {
					d.sibling = candidate
					break
				}
			}
		}
		for _, c := range d.Children {
			walk(c)
		}
	}
	walk(root)
	return nil
}

func readBlock(r *reader.Reader, n int64) []byte {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	for i := int64(0); i < n; i++ {
		b[i] = r.Read8(0)
	}
	return b
}

func readSecOffset(r *reader.Reader, dwarf64 bool) uint64 {
	if dwarf64 {
		return r.Read64(0)
	}
	return uint64(r.Read32(0))
}

// skipForm advances r past one attribute value of the given form without
// interpreting it, for the structural pass.
func skipForm(r *reader.Reader, form Form, dwarf64 bool) error {
	switch form {
	case FormAddr:
		r.ReadAddress(0)
	case FormAddrx1, FormStrx1, FormData1, FormFlag:
		r.Read8(0)
	case FormAddrx2, FormStrx2, FormData2:
		r.Read16(0)
	case FormAddrx3, FormStrx3:
		r.Read16(0)
		r.Read8(0)
	case FormAddrx4, FormStrx4, FormData4:
		r.Read32(0)
	case FormData8, FormRef8, FormRefSig8:
		r.Read64(0)
	case FormData16:
		readBlock(r, 16)
	case FormAddrx, FormStrx, FormUdata, FormRefUdata, FormLoclistx, FormRnglistx:
		r.ReadULEB128(0)
	case FormSdata:
		r.ReadSLEB128(0)
	case FormBlock1:
		n := r.Read8(0)
		readBlock(r, int64(n))
	case FormBlock2:
		n := r.Read16(0)
		readBlock(r, int64(n))
	case FormBlock4:
		n := r.Read32(0)
		readBlock(r, int64(n))
	case FormBlock, FormExprloc:
		n := r.ReadULEB128(0)
		readBlock(r, int64(n))
	case FormString:
		r.ReadString("")
	case FormStrp, FormLineStrp, FormRefAddr, FormSecOffset:
		readSecOffset(r, dwarf64)
	case FormFlagPresent, FormImplicitConst:
		// no data stored inline
	case FormRef1:
		r.Read8(0)
	case FormRef2:
		r.Read16(0)
	case FormRef4:
		r.Read32(0)
	case FormIndirect:
		actual := Form(r.ReadULEB128(0))
		return skipForm(r, actual, dwarf64)
	default:
		return dwarferrors.Wrap(dwarferrors.Unsupported,
			dwarferrors.Errorf(dwarferrors.DIEUnknownForm, form, 0))
	}
	if r.HasOverflow() {
		return dwarferrors.Wrap(dwarferrors.BadData, dwarferrors.Errorf(dwarferrors.ReaderOverflow, form))
	}
	return nil
}

// EntryForOffset binary-searches entries (ordered ascending by Offset,
// per §3.1) for the DIE at the given unit-relative offset.
func EntryForOffset(entries []*DIE, offset uint64) (*DIE, bool) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].Offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(entries) && entries[lo].Offset == offset {
		return entries[lo], true
	}
	return nil, false
}
