package schema

import (
	"fmt"

	"memscope/process"
	"memscope/process_blob"
)

// Class is a declared class: its identity, size and own fields.
type Class struct {
	sys *System

	Address    process.ProcessMemoryAddress
	Name       string
	Module     string
	Size       int32
	FieldCount int16
	Alignment  uint8
	Fields     []Field

	baseClasses process.ProcessMemoryAddress
}

// Field is one declared field of a class.
type Field struct {
	Name   string
	Type   string
	Offset int32
	// Class is the name of the declaring class.
	Class string
}

func (c *Class) String() string {
	return fmt.Sprintf("%s::%s (size 0x%x, %d fields)", c.Module, c.Name, c.Size, len(c.Fields))
}

func (s *System) class(addr process.ProcessMemoryAddress) (*Class, error) {
	l := s.layout

	blob, err := process_blob.Read(s.r, addr, process.ProcessMemorySize(l.classRecordSize()))
	if err != nil {
		return nil, err
	}

	c := &Class{sys: s, Address: addr}
	if c.Name, err = s.readName(blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.ClassName))); err != nil {
		return nil, fmt.Errorf("class name at %s: %w", addr.ToString(), err)
	}
	if c.Module, err = s.readName(blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.ClassModule))); err != nil {
		return nil, fmt.Errorf("class module at %s: %w", addr.ToString(), err)
	}
	c.Size, _ = blob.OffsetINT32(process.ProcessMemoryAddress(l.ClassSize))
	c.FieldCount, _ = blob.OffsetINT16(process.ProcessMemoryAddress(l.ClassFieldCount))
	c.Alignment, _ = blob.OffsetUINT8(process.ProcessMemoryAddress(l.ClassAlignment))
	c.baseClasses = blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.ClassBaseClasses))

	fields := blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.ClassFields))
	if c.Fields, err = s.fields(c.Name, fields, int(c.FieldCount)); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *System) fields(class string, addr process.ProcessMemoryAddress, count int) ([]Field, error) {
	l := s.layout

	if addr == 0 || count <= 0 {
		return nil, nil
	}
	if count > maxFields {
		s.log.Warn("class", class, "claims", count, "fields, truncating to", maxFields)
		count = maxFields
	}

	arr, err := process_blob.Read(s.r, addr, process.ProcessMemorySize(uint64(count)*l.FieldStride))
	if err != nil {
		return nil, fmt.Errorf("fields of %s at %s: %w", class, addr.ToString(), err)
	}

	fields := make([]Field, 0, count)
	for i := 0; i < count; i++ {
		base := uint64(i) * l.FieldStride

		name, err := s.readName(arr.OffsetPOINTER2(process.ProcessMemoryAddress(base + l.FieldName)))
		if err != nil {
			return nil, fmt.Errorf("field %d of %s: %w", i, class, err)
		}

		var typeName string
		if typ := arr.OffsetPOINTER2(process.ProcessMemoryAddress(base + l.FieldType)); typ != 0 {
			if ptr, err := process.ReadPointer(s.r, typ+process.ProcessMemoryAddress(l.TypeName)); err == nil {
				typeName, _ = s.readName(ptr)
			}
		}

		offset, _ := arr.OffsetINT32(process.ProcessMemoryAddress(base + l.FieldOffset))
		fields = append(fields, Field{Name: name, Type: typeName, Offset: offset, Class: class})
	}
	return fields, nil
}

// FindField looks up one of the class's own fields.
func (c *Class) FindField(name string) (Field, error) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, &LookupError{Stage: StageField, Module: c.Module, Class: c.Name, Field: name}
}

// Parent returns the class's base class, if it has one.
func (c *Class) Parent() (*Class, bool, error) {
	if c.baseClasses == 0 {
		return nil, false, nil
	}

	ptr, err := process.ReadPointer(c.sys.r, c.baseClasses+process.ProcessMemoryAddress(c.sys.layout.BaseClassClass))
	if err != nil {
		return nil, false, fmt.Errorf("base class of %s: %w", c.Name, err)
	}
	if ptr == 0 {
		return nil, false, nil
	}

	parent, err := c.sys.class(ptr)
	if err != nil {
		return nil, false, fmt.Errorf("base class of %s at %s: %w", c.Name, ptr.ToString(), err)
	}
	return parent, true, nil
}

// Ancestors walks the parent chain, nearest first. The walk stops at a
// repeated class or after a fixed depth.
func (c *Class) Ancestors() ([]*Class, error) {
	var chain []*Class
	seen := map[process.ProcessMemoryAddress]bool{c.Address: true}

	cur := c
	for depth := 0; depth < maxAncestors; depth++ {
		parent, ok, err := cur.Parent()
		if err != nil {
			return chain, err
		}
		if !ok {
			return chain, nil
		}
		if seen[parent.Address] {
			c.sys.log.Warn("class", c.Name, "has a cyclic parent chain at", parent.Name)
			return chain, nil
		}
		seen[parent.Address] = true
		chain = append(chain, parent)
		cur = parent
	}

	c.sys.log.Warn("class", c.Name, "parent chain exceeds", maxAncestors, "levels")
	return chain, nil
}

// InheritedFields returns the fields of the whole chain, root class first.
func (c *Class) InheritedFields() ([]Field, error) {
	ancestors, err := c.Ancestors()
	if err != nil {
		return nil, err
	}

	var fields []Field
	for i := len(ancestors) - 1; i >= 0; i-- {
		fields = append(fields, ancestors[i].Fields...)
	}
	return append(fields, c.Fields...), nil
}

// FindInheritedField searches the whole chain. When a name is declared more
// than once the root-most declaration wins.
func (c *Class) FindInheritedField(name string) (Field, error) {
	fields, err := c.InheritedFields()
	if err != nil {
		return Field{}, err
	}
	for _, f := range fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, &LookupError{Stage: StageField, Module: c.Module, Class: c.Name, Field: name}
}
