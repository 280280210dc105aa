package schema

import (
	"fmt"

	"memscope/process"
	"memscope/process_blob"
)

// TypeScope is the per-module collection of declared classes and enums.
type TypeScope struct {
	sys *System

	Address    process.ProcessMemoryAddress
	ModuleName string
}

func (ts *TypeScope) String() string {
	return fmt.Sprintf("%s@%s", ts.ModuleName, ts.Address.ToString())
}

func (ts *TypeScope) classTable() process.ProcessMemoryAddress {
	return ts.Address + process.ProcessMemoryAddress(ts.sys.layout.ScopeClasses)
}

func (ts *TypeScope) enumTable() process.ProcessMemoryAddress {
	return ts.Address + process.ProcessMemoryAddress(ts.sys.layout.ScopeEnums)
}

// Classes decodes every class declared in the scope. Entries that cannot be
// read are skipped.
func (ts *TypeScope) Classes() ([]*Class, error) {
	ptrs, err := ts.sys.tableEntries(ts.classTable())
	if err != nil {
		return nil, fmt.Errorf("classes of %s: %w", ts.ModuleName, err)
	}

	classes := make([]*Class, 0, len(ptrs))
	for _, ptr := range ptrs {
		if ptr == 0 {
			continue
		}
		c, err := ts.sys.class(ptr)
		if err != nil {
			ts.sys.log.Debugln("skipping class at", ptr.ToString(), err)
			continue
		}
		classes = append(classes, c)
	}
	return classes, nil
}

// FindDeclaredClass returns the class named name declared in this scope.
func (ts *TypeScope) FindDeclaredClass(name string) (*Class, error) {
	key := classKey{scope: ts.Address, name: name}
	if c, ok := ts.sys.classes.Get(key); ok {
		return c, nil
	}

	ptrs, err := ts.sys.tableEntries(ts.classTable())
	if err != nil {
		return nil, fmt.Errorf("classes of %s: %w", ts.ModuleName, err)
	}

	for _, ptr := range ptrs {
		if ptr == 0 {
			continue
		}
		// compare names before decoding the full record
		namePtr, err := process.ReadPointer(ts.sys.r, ptr+process.ProcessMemoryAddress(ts.sys.layout.ClassName))
		if err != nil {
			continue
		}
		className, err := ts.sys.readName(namePtr)
		if err != nil || className != name {
			continue
		}

		c, err := ts.sys.class(ptr)
		if err != nil {
			return nil, err
		}
		ts.sys.classes.Add(key, c)
		return c, nil
	}

	return nil, &LookupError{Stage: StageClass, Module: ts.ModuleName, Class: name}
}

// Enums decodes every enum declared in the scope.
func (ts *TypeScope) Enums() ([]*Enum, error) {
	ptrs, err := ts.sys.tableEntries(ts.enumTable())
	if err != nil {
		return nil, fmt.Errorf("enums of %s: %w", ts.ModuleName, err)
	}

	enums := make([]*Enum, 0, len(ptrs))
	for _, ptr := range ptrs {
		if ptr == 0 {
			continue
		}
		e, err := ts.sys.enum(ptr)
		if err != nil {
			ts.sys.log.Debugln("skipping enum at", ptr.ToString(), err)
			continue
		}
		enums = append(enums, e)
	}
	return enums, nil
}

// FindEnum returns the enum named name declared in this scope.
func (ts *TypeScope) FindEnum(name string) (*Enum, error) {
	enums, err := ts.Enums()
	if err != nil {
		return nil, err
	}
	for _, e := range enums {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, &LookupError{Stage: StageEnum, Module: ts.ModuleName, Class: name}
}

// Enum is a declared enumeration and its variants.
type Enum struct {
	Address process.ProcessMemoryAddress
	Name    string
	Module  string
	// Size is the declared variant count.
	Size     int16
	Variants []Variant
}

type Variant struct {
	Name  string
	Value int64
}

// Value looks a variant up by name.
func (e *Enum) Value(name string) (int64, bool) {
	for _, v := range e.Variants {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

func (s *System) enum(addr process.ProcessMemoryAddress) (*Enum, error) {
	l := s.layout

	blob, err := process_blob.Read(s.r, addr, process.ProcessMemorySize(l.enumRecordSize()))
	if err != nil {
		return nil, err
	}

	e := &Enum{Address: addr}
	if e.Name, err = s.readName(blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.EnumName))); err != nil {
		return nil, fmt.Errorf("enum name at %s: %w", addr.ToString(), err)
	}
	if e.Module, err = s.readName(blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.EnumModule))); err != nil {
		return nil, fmt.Errorf("enum module at %s: %w", addr.ToString(), err)
	}
	e.Size, _ = blob.OffsetINT16(process.ProcessMemoryAddress(l.EnumCount))

	variants := blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.EnumVariants))
	count := min(int(e.Size), maxVariants)
	if variants == 0 || count <= 0 {
		return e, nil
	}

	arr, err := process_blob.Read(s.r, variants, process.ProcessMemorySize(uint64(count)*l.VariantStride))
	if err != nil {
		return nil, fmt.Errorf("variants of %s: %w", e.Name, err)
	}

	e.Variants = make([]Variant, 0, count)
	for i := 0; i < count; i++ {
		base := uint64(i) * l.VariantStride
		name, err := s.readName(arr.OffsetPOINTER2(process.ProcessMemoryAddress(base + l.VariantName)))
		if err != nil {
			return nil, fmt.Errorf("variant %d of %s: %w", i, e.Name, err)
		}
		value, _ := arr.OffsetINT64(process.ProcessMemoryAddress(base + l.VariantValue))
		e.Variants = append(e.Variants, Variant{Name: name, Value: value})
	}
	return e, nil
}
