package schema

// Layout holds the byte offsets of the host's reflection structures. They move
// between host builds, so every offset can be overridden from configuration.
type Layout struct {
	// schema system: vector of type scopes {count int32, data **scope}
	SystemTypeScopes uint64 `mapstructure:"system_type_scopes"`

	// type scope
	ScopeModuleName    uint64 `mapstructure:"scope_module_name"`
	ScopeModuleNameLen uint64 `mapstructure:"scope_module_name_len"`
	ScopeClasses       uint64 `mapstructure:"scope_classes"`
	ScopeEnums         uint64 `mapstructure:"scope_enums"`

	// hash table and its unallocated-data block list
	TableBlocksPerBlob uint64 `mapstructure:"table_blocks_per_blob"`
	TableCount         uint64 `mapstructure:"table_count"`
	TableUnallocated   uint64 `mapstructure:"table_unallocated"`
	NodeNext           uint64 `mapstructure:"node_next"`
	NodeEntries        uint64 `mapstructure:"node_entries"`
	NodeEntryStride    uint64 `mapstructure:"node_entry_stride"`
	NodeEntryData      uint64 `mapstructure:"node_entry_data"`

	// class info
	ClassName        uint64 `mapstructure:"class_name"`
	ClassModule      uint64 `mapstructure:"class_module"`
	ClassSize        uint64 `mapstructure:"class_size"`
	ClassFieldCount  uint64 `mapstructure:"class_field_count"`
	ClassAlignment   uint64 `mapstructure:"class_alignment"`
	ClassFields      uint64 `mapstructure:"class_fields"`
	ClassBaseClasses uint64 `mapstructure:"class_base_classes"`

	// field info array
	FieldStride uint64 `mapstructure:"field_stride"`
	FieldName   uint64 `mapstructure:"field_name"`
	FieldType   uint64 `mapstructure:"field_type"`
	FieldOffset uint64 `mapstructure:"field_offset"`

	// base class entry {offset uint32, class *info}
	BaseClassClass uint64 `mapstructure:"base_class_class"`

	// schema type
	TypeName uint64 `mapstructure:"type_name"`

	// enum info and its variant array
	EnumName      uint64 `mapstructure:"enum_name"`
	EnumModule    uint64 `mapstructure:"enum_module"`
	EnumCount     uint64 `mapstructure:"enum_count"`
	EnumVariants  uint64 `mapstructure:"enum_variants"`
	VariantStride uint64 `mapstructure:"variant_stride"`
	VariantName   uint64 `mapstructure:"variant_name"`
	VariantValue  uint64 `mapstructure:"variant_value"`
}

// DefaultLayout matches current 64-bit builds of the host.
func DefaultLayout() Layout {
	return Layout{
		SystemTypeScopes: 0x188,

		ScopeModuleName:    0x08,
		ScopeModuleNameLen: 256,
		ScopeClasses:       0x588,
		ScopeEnums:         0x2DD0,

		TableBlocksPerBlob: 0x04,
		TableCount:         0x10,
		TableUnallocated:   0x30,
		NodeNext:           0x00,
		NodeEntries:        0x20,
		NodeEntryStride:    0x18,
		NodeEntryData:      0x00,

		ClassName:        0x08,
		ClassModule:      0x10,
		ClassSize:        0x18,
		ClassFieldCount:  0x1C,
		ClassAlignment:   0x22,
		ClassFields:      0x28,
		ClassBaseClasses: 0x38,

		FieldStride: 0x20,
		FieldName:   0x00,
		FieldType:   0x08,
		FieldOffset: 0x10,

		BaseClassClass: 0x08,

		TypeName: 0x08,

		EnumName:      0x08,
		EnumModule:    0x10,
		EnumCount:     0x1C,
		EnumVariants:  0x20,
		VariantStride: 0x20,
		VariantName:   0x00,
		VariantValue:  0x08,
	}
}

func (l Layout) classRecordSize() uint64 {
	return max(l.ClassName+8, l.ClassModule+8, l.ClassSize+4, l.ClassFieldCount+2,
		l.ClassAlignment+1, l.ClassFields+8, l.ClassBaseClasses+8)
}

func (l Layout) tableRecordSize() uint64 {
	return max(l.TableBlocksPerBlob+4, l.TableCount+4, l.TableUnallocated+8)
}

func (l Layout) enumRecordSize() uint64 {
	return max(l.EnumName+8, l.EnumModule+8, l.EnumCount+2, l.EnumVariants+8)
}
