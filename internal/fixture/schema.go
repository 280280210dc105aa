package fixture

import (
	"fmt"

	"memscope/process"
	"memscope/schema"
)

// blocks per hash table node; small so that tables span several nodes
const blocksPerNode = 3

type Field struct {
	Name   string
	Type   string
	Offset int32
}

// Class describes a declared class. Parent names another class of the same
// scope, including the class itself to form a cycle.
type Class struct {
	Name      string
	Size      int32
	Alignment uint8
	Parent    string
	Fields    []Field
}

type Variant struct {
	Name  string
	Value int64
}

type Enum struct {
	Name     string
	Variants []Variant
}

type Scope struct {
	Module  string
	Classes []Class
	Enums   []Enum
}

// Schema lays out a schema system holding scopes and returns its address.
func (a *Arena) Schema(l schema.Layout, scopes ...Scope) process.ProcessMemoryAddress {
	system := a.Alloc(int(l.SystemTypeScopes) + 16)

	vector := a.Alloc(len(scopes) * process.PointerSize)
	for i, scope := range scopes {
		a.PutPointer(vector+process.ProcessMemoryAddress(i*process.PointerSize), a.scope(l, scope))
	}

	at := system + process.ProcessMemoryAddress(l.SystemTypeScopes)
	a.PutInt32(at, int32(len(scopes)))
	a.PutPointer(at+8, vector)
	return system
}

func (a *Arena) scope(l schema.Layout, scope Scope) process.ProcessMemoryAddress {
	size := max(l.ScopeModuleName+l.ScopeModuleNameLen, l.ScopeClasses, l.ScopeEnums) + 0x40
	addr := a.Alloc(int(size))

	name := []byte(scope.Module)
	if len(name) >= int(l.ScopeModuleNameLen) {
		name = name[:l.ScopeModuleNameLen-1]
	}
	a.Put(addr+process.ProcessMemoryAddress(l.ScopeModuleName), name)

	classes := a.classes(l, scope)
	a.table(l, addr+process.ProcessMemoryAddress(l.ScopeClasses), classes)

	var enums []process.ProcessMemoryAddress
	for _, e := range scope.Enums {
		enums = append(enums, a.enum(l, scope.Module, e))
	}
	a.table(l, addr+process.ProcessMemoryAddress(l.ScopeEnums), enums)

	return addr
}

func (a *Arena) classes(l schema.Layout, scope Scope) []process.ProcessMemoryAddress {
	recordSize := max(l.ClassName, l.ClassModule, l.ClassSize, l.ClassFieldCount, l.ClassAlignment, l.ClassFields, l.ClassBaseClasses) + 8

	byName := map[string]process.ProcessMemoryAddress{}
	addrs := make([]process.ProcessMemoryAddress, len(scope.Classes))
	for i, c := range scope.Classes {
		addrs[i] = a.Alloc(int(recordSize))
		byName[c.Name] = addrs[i]
	}

	module := a.CString(scope.Module)
	for i, c := range scope.Classes {
		at := func(off uint64) process.ProcessMemoryAddress { return addrs[i] + process.ProcessMemoryAddress(off) }

		a.PutPointer(at(l.ClassName), a.CString(c.Name))
		a.PutPointer(at(l.ClassModule), module)
		a.PutInt32(at(l.ClassSize), c.Size)
		a.PutInt16(at(l.ClassFieldCount), int16(len(c.Fields)))
		a.PutUint8(at(l.ClassAlignment), c.Alignment)

		if len(c.Fields) > 0 {
			arr := a.Alloc(len(c.Fields) * int(l.FieldStride))
			for j, f := range c.Fields {
				field := arr + process.ProcessMemoryAddress(uint64(j)*l.FieldStride)
				a.PutPointer(field+process.ProcessMemoryAddress(l.FieldName), a.CString(f.Name))
				if f.Type != "" {
					typ := a.Alloc(int(l.TypeName) + 8)
					a.PutPointer(typ+process.ProcessMemoryAddress(l.TypeName), a.CString(f.Type))
					a.PutPointer(field+process.ProcessMemoryAddress(l.FieldType), typ)
				}
				a.PutInt32(field+process.ProcessMemoryAddress(l.FieldOffset), f.Offset)
			}
			a.PutPointer(at(l.ClassFields), arr)
		}

		if c.Parent != "" {
			parent, ok := byName[c.Parent]
			if !ok {
				panic(fmt.Sprintf("fixture: class %s has unknown parent %s", c.Name, c.Parent))
			}
			base := a.Alloc(int(l.BaseClassClass) + 8)
			a.PutPointer(base+process.ProcessMemoryAddress(l.BaseClassClass), parent)
			a.PutPointer(at(l.ClassBaseClasses), base)
		}
	}
	return addrs
}

func (a *Arena) enum(l schema.Layout, module string, e Enum) process.ProcessMemoryAddress {
	addr := a.Alloc(int(max(l.EnumName, l.EnumModule, l.EnumCount, l.EnumVariants) + 8))

	a.PutPointer(addr+process.ProcessMemoryAddress(l.EnumName), a.CString(e.Name))
	a.PutPointer(addr+process.ProcessMemoryAddress(l.EnumModule), a.CString(module))
	a.PutInt16(addr+process.ProcessMemoryAddress(l.EnumCount), int16(len(e.Variants)))

	if len(e.Variants) > 0 {
		arr := a.Alloc(len(e.Variants) * int(l.VariantStride))
		for i, v := range e.Variants {
			at := arr + process.ProcessMemoryAddress(uint64(i)*l.VariantStride)
			a.PutPointer(at+process.ProcessMemoryAddress(l.VariantName), a.CString(v.Name))
			a.PutInt64(at+process.ProcessMemoryAddress(l.VariantValue), v.Value)
		}
		a.PutPointer(addr+process.ProcessMemoryAddress(l.EnumVariants), arr)
	}
	return addr
}

// table writes a hash table header at addr whose block list holds items.
func (a *Arena) table(l schema.Layout, addr process.ProcessMemoryAddress, items []process.ProcessMemoryAddress) {
	a.PutInt32(addr+process.ProcessMemoryAddress(l.TableBlocksPerBlob), blocksPerNode)
	a.PutInt32(addr+process.ProcessMemoryAddress(l.TableCount), int32(len(items)))

	nodeSize := int(l.NodeEntries + blocksPerNode*l.NodeEntryStride)
	link := addr + process.ProcessMemoryAddress(l.TableUnallocated)
	for start := 0; start < len(items); start += blocksPerNode {
		node := a.Alloc(nodeSize)
		for i, item := range items[start:min(start+blocksPerNode, len(items))] {
			entry := node + process.ProcessMemoryAddress(l.NodeEntries+uint64(i)*l.NodeEntryStride+l.NodeEntryData)
			a.PutPointer(entry, item)
		}
		a.PutPointer(link, node)
		link = node + process.ProcessMemoryAddress(l.NodeNext)
	}
}
