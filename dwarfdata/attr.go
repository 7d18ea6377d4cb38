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

// Attr is a DW_AT_* attribute name.
type Attr uint64

// Attribute names as enumerated in the DWARF standard.
const (
	AttrSibling           Attr = 0x01
	AttrLocation          Attr = 0x02
	AttrName              Attr = 0x03
	AttrByteSize          Attr = 0x0b
	AttrBitSize           Attr = 0x0d
	AttrStmtList          Attr = 0x10
	AttrLowpc             Attr = 0x11
	AttrHighpc            Attr = 0x12
	AttrLanguage          Attr = 0x13
	AttrDiscr             Attr = 0x15
	AttrDiscrValue        Attr = 0x16
	AttrVisibility        Attr = 0x17
	AttrImport            Attr = 0x18
	AttrStringLength      Attr = 0x19
	AttrCommonRef         Attr = 0x1a
	AttrCompDir           Attr = 0x1b
	AttrConstValue        Attr = 0x1c
	AttrContainingType    Attr = 0x1d
	AttrDefaultValue      Attr = 0x1e
	AttrInline            Attr = 0x20
	AttrIsOptional        Attr = 0x21
	AttrLowerBound        Attr = 0x22
	AttrProducer          Attr = 0x25
	AttrPrototyped        Attr = 0x27
	AttrReturnAddr        Attr = 0x2a
	AttrStartScope        Attr = 0x2c
	AttrStrideSize        Attr = 0x2e
	AttrUpperBound        Attr = 0x2f
	AttrAbstractOrigin    Attr = 0x31
	AttrAccessibility     Attr = 0x32
	AttrArtificial        Attr = 0x34
	AttrBaseTypes         Attr = 0x35
	AttrCallingConvention Attr = 0x36
	AttrCount             Attr = 0x37
	AttrDataMemberLoc     Attr = 0x38
	AttrDeclColumn        Attr = 0x39
	AttrDeclFile          Attr = 0x3a
	AttrDeclLine          Attr = 0x3b
	AttrDeclaration       Attr = 0x3c
	AttrDiscrList         Attr = 0x3d
	AttrEncoding          Attr = 0x3e
	AttrExternal          Attr = 0x3f
	AttrFrameBase         Attr = 0x40
	AttrFriend            Attr = 0x41
	AttrIdentifierCase    Attr = 0x42
	AttrMacroInfo         Attr = 0x43
	AttrNamelistItem      Attr = 0x44
	AttrPriority          Attr = 0x45
	AttrSegment           Attr = 0x46
	AttrSpecification     Attr = 0x47
	AttrStaticLink        Attr = 0x48
	AttrType              Attr = 0x49
	AttrUseLocation       Attr = 0x4a
	AttrVarParam          Attr = 0x4b
	AttrVirtuality        Attr = 0x4c
	AttrVtableElemLoc     Attr = 0x4d
	AttrAllocated         Attr = 0x4e
	AttrAssociated        Attr = 0x4f
	AttrDataLocation      Attr = 0x50
	AttrByteStride        Attr = 0x51
	AttrEntryPc           Attr = 0x52
	AttrUseUTF8           Attr = 0x53
	AttrExtension         Attr = 0x54
	AttrRanges            Attr = 0x55
	AttrTrampoline        Attr = 0x56
	AttrCallColumn        Attr = 0x57
	AttrCallFile          Attr = 0x58
	AttrCallLine          Attr = 0x59
	AttrStrOffsetsBase    Attr = 0x72
	AttrAddrBase          Attr = 0x73
	AttrRnglistsBase      Attr = 0x74
	AttrLoclistsBase      Attr = 0x8c

	// Vendor/GNU extensions observed frequently enough to need handling.
	AttrGNUAllCallSites Attr = 0x2117
)

func (a Attr) String() string {
	if name, ok := attrNames[a]; ok {
		return name
	}
	return "DW_AT_unknown"
}

var attrNames = map[Attr]string{
	AttrSibling:        "DW_AT_sibling",
	AttrLocation:       "DW_AT_location",
	AttrName:           "DW_AT_name",
	AttrByteSize:       "DW_AT_byte_size",
	AttrBitSize:        "DW_AT_bit_size",
	AttrStmtList:       "DW_AT_stmt_list",
	AttrLowpc:          "DW_AT_low_pc",
	AttrHighpc:         "DW_AT_high_pc",
	AttrLanguage:       "DW_AT_language",
	AttrCompDir:        "DW_AT_comp_dir",
	AttrConstValue:     "DW_AT_const_value",
	AttrLowerBound:     "DW_AT_lower_bound",
	AttrProducer:       "DW_AT_producer",
	AttrUpperBound:     "DW_AT_upper_bound",
	AttrAbstractOrigin: "DW_AT_abstract_origin",
	AttrArtificial:     "DW_AT_artificial",
	AttrCount:          "DW_AT_count",
	AttrDataMemberLoc:  "DW_AT_data_member_location",
	AttrDeclColumn:     "DW_AT_decl_column",
	AttrDeclFile:       "DW_AT_decl_file",
	AttrDeclLine:       "DW_AT_decl_line",
	AttrDeclaration:    "DW_AT_declaration",
	AttrEncoding:       "DW_AT_encoding",
	AttrExternal:       "DW_AT_external",
	AttrFrameBase:      "DW_AT_frame_base",
	AttrSpecification:  "DW_AT_specification",
	AttrType:           "DW_AT_type",
	AttrRanges:         "DW_AT_ranges",
}

// Form is a DW_FORM_* value describing how an attribute's value is
// encoded.
type Form uint64

// Form values as enumerated in the DWARF standard.
const (
	FormAddr          Form = 0x01
	FormBlock2        Form = 0x03
	FormBlock4        Form = 0x04
	FormData2         Form = 0x05
	FormData4         Form = 0x06
	FormData8         Form = 0x07
	FormString        Form = 0x08
	FormBlock         Form = 0x09
	FormBlock1        Form = 0x0a
	FormData1         Form = 0x0b
	FormFlag          Form = 0x0c
	FormSdata         Form = 0x0d
	FormStrp          Form = 0x0e
	FormUdata         Form = 0x0f
	FormRefAddr       Form = 0x10
	FormRef1          Form = 0x11
	FormRef2          Form = 0x12
	FormRef4          Form = 0x13
	FormRef8          Form = 0x14
	FormRefUdata      Form = 0x15
	FormIndirect      Form = 0x16
	FormSecOffset     Form = 0x17
	FormExprloc       Form = 0x18
	FormFlagPresent   Form = 0x19
	FormStrx          Form = 0x1a
	FormAddrx         Form = 0x1b
	FormRefSup4       Form = 0x1c
	FormStrpSup       Form = 0x1d
	FormData16        Form = 0x1e
	FormLineStrp      Form = 0x1f
	FormRefSig8       Form = 0x20
	FormImplicitConst Form = 0x21
	FormLoclistx      Form = 0x22
	FormRnglistx      Form = 0x23
	FormRefSup8       Form = 0x24
	FormStrx1         Form = 0x25
	FormStrx2         Form = 0x26
	FormStrx3         Form = 0x27
	FormStrx4         Form = 0x28
	FormAddrx1        Form = 0x29
	FormAddrx2        Form = 0x2a
	FormAddrx3        Form = 0x2b
	FormAddrx4        Form = 0x2c
)

// Class is the attribute-value class a (name, form) pair belongs to, per
// §3.2 of the data model.
type Class int

const (
	ClassAddress Class = iota
	ClassConstantUnsigned
	ClassConstantSigned
	ClassFlag
	ClassBlock
	ClassString
	ClassReference
	ClassSecOffset
	ClassUnknown
)

// classByForm maps a form directly to its class where the class does not
// depend on the attribute it is attached to. Forms whose class depends on
// context (FormIndirect, FormSdata/FormUdata used as either a plain
// constant or a constant encoding a reference, etc.) are resolved in
// ClassOf below.
var classByForm = map[Form]Class{
	FormAddr:          ClassAddress,
	FormAddrx:         ClassAddress,
	FormAddrx1:        ClassAddress,
	FormAddrx2:        ClassAddress,
	FormAddrx3:        ClassAddress,
	FormAddrx4:        ClassAddress,
	FormBlock2:        ClassBlock,
	FormBlock4:        ClassBlock,
	FormBlock:         ClassBlock,
	FormBlock1:        ClassBlock,
	FormExprloc:       ClassBlock,
	FormData16:        ClassBlock,
	FormData1:         ClassConstantUnsigned,
	FormData2:         ClassConstantUnsigned,
	FormData4:         ClassConstantUnsigned,
	FormData8:         ClassConstantUnsigned,
	FormUdata:         ClassConstantUnsigned,
	FormSdata:         ClassConstantSigned,
	FormImplicitConst: ClassConstantSigned,
	FormString:        ClassString,
	FormStrp:          ClassString,
	FormLineStrp:      ClassString,
	FormStrx:          ClassString,
	FormStrx1:         ClassString,
	FormStrx2:         ClassString,
	FormStrx3:         ClassString,
	FormStrx4:         ClassString,
	FormFlag:          ClassFlag,
	FormFlagPresent:   ClassFlag,
	FormRefAddr:       ClassReference,
	FormRef1:          ClassReference,
	FormRef2:          ClassReference,
	FormRef4:          ClassReference,
	FormRef8:          ClassReference,
	FormRefUdata:      ClassReference,
	FormRefSig8:       ClassReference,
	FormLoclistx:      ClassSecOffset,
	FormRnglistx:      ClassSecOffset,
	FormSecOffset:     ClassSecOffset,
}

// ClassOf returns the value class for form as it appears on attr. Most
// forms have a fixed class; a handful are context sensitive (notably
// FormIndirect, resolved by the caller re-reading the actual form that
// follows, so it never reaches this table).
func ClassOf(attr Attr, form Form) Class {
	if c, ok := classByForm[form]; ok {
		return c
	}
	return ClassUnknown
}
