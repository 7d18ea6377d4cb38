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

// Tag is a DW_TAG_* value naming the kind of a debug information entry.
type Tag uint32

// Tag values as enumerated in the DWARF standard (section 7.5.3 and
// later, extended with the vendor tags actually observed in gcc output).
const (
	TagArrayType              Tag = 0x01
	TagClassType              Tag = 0x02
	TagEntryPoint             Tag = 0x03
	TagEnumerationType        Tag = 0x04
	TagFormalParameter        Tag = 0x05
	TagImportedDeclaration    Tag = 0x08
	TagLabel                  Tag = 0x0a
	TagLexicalBlock           Tag = 0x0b
	TagMember                 Tag = 0x0d
	TagPointerType            Tag = 0x0f
	TagReferenceType          Tag = 0x10
	TagCompileUnit            Tag = 0x11
	TagStringType             Tag = 0x12
	TagStructureType          Tag = 0x13
	TagSubroutineType         Tag = 0x15
	TagTypedef                Tag = 0x16
	TagUnionType              Tag = 0x17
	TagUnspecifiedParameters  Tag = 0x18
	TagVariant                Tag = 0x19
	TagCommonBlock            Tag = 0x1a
	TagCommonInclusion        Tag = 0x1b
	TagInheritance            Tag = 0x1c
	TagInlinedSubroutine      Tag = 0x1d
	TagModule                 Tag = 0x1e
	TagPtrToMemberType        Tag = 0x1f
	TagSetType                Tag = 0x20
	TagSubrangeType           Tag = 0x21
	TagWithStmt               Tag = 0x22
	TagAccessDeclaration      Tag = 0x23
	TagBaseType               Tag = 0x24
	TagCatchBlock             Tag = 0x25
	TagConstType              Tag = 0x26
	TagConstant               Tag = 0x27
	TagEnumerator             Tag = 0x28
	TagFileType               Tag = 0x29
	TagFriend                 Tag = 0x2a
	TagNamelist               Tag = 0x2b
	TagNamelistItem           Tag = 0x2c
	TagPackedType             Tag = 0x2d
	TagSubprogram             Tag = 0x2e
	TagTemplateTypeParameter  Tag = 0x2f
	TagTemplateValueParameter Tag = 0x30
	TagThrownType             Tag = 0x31
	TagTryBlock               Tag = 0x32
	TagVariantPart            Tag = 0x33
	TagVariable               Tag = 0x34
	TagVolatileType           Tag = 0x35
	TagDwarfProcedure         Tag = 0x36
	TagRestrictType           Tag = 0x37
	TagInterfaceType          Tag = 0x38
	TagNamespace              Tag = 0x39
	TagImportedModule         Tag = 0x3a
	TagUnspecifiedType        Tag = 0x3b
	TagPartialUnit            Tag = 0x3c
	TagImportedUnit           Tag = 0x3d
	TagCondition              Tag = 0x3f
	TagSharedType             Tag = 0x40
	TagTypeUnit               Tag = 0x41
	TagRvalueReferenceType    Tag = 0x42
	TagTemplateAlias          Tag = 0x43
	TagCoarrayType            Tag = 0x44
	TagGenericSubrange        Tag = 0x45
	TagDynamicType            Tag = 0x46
	TagAtomicType             Tag = 0x47
	TagCallSite               Tag = 0x48
	TagCallSiteParameter      Tag = 0x49
	TagSkeletonUnit           Tag = 0x4a
	TagImmutableType          Tag = 0x4b

	TagLoUser Tag = 0x4080
	TagHiUser Tag = 0xffff
)

// IsType reports whether tag names one of the DIE categories that
// describes a type, per §3.2's category list.
func (t Tag) IsType() bool {
	switch t {
	case TagArrayType, TagClassType, TagEnumerationType, TagPointerType,
		TagReferenceType, TagStringType, TagStructureType, TagSubroutineType,
		TagTypedef, TagUnionType, TagPtrToMemberType, TagSetType,
		TagSubrangeType, TagBaseType, TagConstType, TagFileType,
		TagPackedType, TagThrownType, TagVolatileType, TagRestrictType,
		TagInterfaceType, TagUnspecifiedType, TagSharedType,
		TagRvalueReferenceType, TagCoarrayType, TagDynamicType,
		TagAtomicType, TagImmutableType:
		return true
	}
	return false
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "DW_TAG_unknown"
}

var tagNames = map[Tag]string{
	TagArrayType:              "DW_TAG_array_type",
	TagClassType:              "DW_TAG_class_type",
	TagEntryPoint:             "DW_TAG_entry_point",
	TagEnumerationType:        "DW_TAG_enumeration_type",
	TagFormalParameter:        "DW_TAG_formal_parameter",
	TagImportedDeclaration:    "DW_TAG_imported_declaration",
	TagLabel:                  "DW_TAG_label",
	TagLexicalBlock:           "DW_TAG_lexical_block",
	TagMember:                 "DW_TAG_member",
	TagPointerType:            "DW_TAG_pointer_type",
	TagReferenceType:          "DW_TAG_reference_type",
	TagCompileUnit:            "DW_TAG_compile_unit",
	TagStringType:             "DW_TAG_string_type",
	TagStructureType:          "DW_TAG_structure_type",
	TagSubroutineType:         "DW_TAG_subroutine_type",
	TagTypedef:                "DW_TAG_typedef",
	TagUnionType:              "DW_TAG_union_type",
	TagUnspecifiedParameters:  "DW_TAG_unspecified_parameters",
	TagVariant:                "DW_TAG_variant",
	TagCommonBlock:            "DW_TAG_common_block",
	TagCommonInclusion:        "DW_TAG_common_inclusion",
	TagInheritance:            "DW_TAG_inheritance",
	TagInlinedSubroutine:      "DW_TAG_inlined_subroutine",
	TagModule:                 "DW_TAG_module",
	TagPtrToMemberType:        "DW_TAG_ptr_to_member_type",
	TagSetType:                "DW_TAG_set_type",
	TagSubrangeType:           "DW_TAG_subrange_type",
	TagWithStmt:               "DW_TAG_with_stmt",
	TagAccessDeclaration:      "DW_TAG_access_declaration",
	TagBaseType:               "DW_TAG_base_type",
	TagCatchBlock:             "DW_TAG_catch_block",
	TagConstType:              "DW_TAG_const_type",
	TagConstant:               "DW_TAG_constant",
	TagEnumerator:             "DW_TAG_enumerator",
	TagFileType:               "DW_TAG_file_type",
	TagFriend:                 "DW_TAG_friend",
	TagNamelist:               "DW_TAG_namelist",
	TagNamelistItem:           "DW_TAG_namelist_item",
	TagPackedType:             "DW_TAG_packed_type",
	TagSubprogram:             "DW_TAG_subprogram",
	TagTemplateTypeParameter:  "DW_TAG_template_type_parameter",
	TagTemplateValueParameter: "DW_TAG_template_value_parameter",
	TagThrownType:             "DW_TAG_thrown_type",
	TagTryBlock:               "DW_TAG_try_block",
	TagVariantPart:            "DW_TAG_variant_part",
	TagVariable:               "DW_TAG_variable",
	TagVolatileType:           "DW_TAG_volatile_type",
	TagDwarfProcedure:         "DW_TAG_dwarf_procedure",
	TagRestrictType:           "DW_TAG_restrict_type",
	TagInterfaceType:          "DW_TAG_interface_type",
	TagNamespace:              "DW_TAG_namespace",
	TagImportedModule:         "DW_TAG_imported_module",
	TagUnspecifiedType:        "DW_TAG_unspecified_type",
	TagPartialUnit:            "DW_TAG_partial_unit",
	TagImportedUnit:           "DW_TAG_imported_unit",
	TagCondition:              "DW_TAG_condition",
	TagSharedType:             "DW_TAG_shared_type",
	TagTypeUnit:               "DW_TAG_type_unit",
	TagRvalueReferenceType:    "DW_TAG_rvalue_reference_type",
	TagTemplateAlias:          "DW_TAG_template_alias",
	TagCoarrayType:            "DW_TAG_coarray_type",
	TagGenericSubrange:        "DW_TAG_generic_subrange",
	TagDynamicType:            "DW_TAG_dynamic_type",
	TagAtomicType:             "DW_TAG_atomic_type",
	TagCallSite:               "DW_TAG_call_site",
	TagCallSiteParameter:      "DW_TAG_call_site_parameter",
	TagSkeletonUnit:           "DW_TAG_skeleton_unit",
	TagImmutableType:          "DW_TAG_immutable_type",
}
