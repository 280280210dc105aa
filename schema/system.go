// Package schema walks the host's own class and field reflection metadata
// to find field offsets by name.
package schema

import (
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	lru "github.com/hashicorp/golang-lru/v2"

	"memscope/process"
	"memscope/process_blob"
)

const (
	maxTypeScopes  = 512
	maxTableItems  = 1 << 16
	maxBlocks      = 256
	maxFields      = 4096
	maxVariants    = 4096
	maxAncestors   = 64
	maxNameLength  = 256
	classCacheSize = 4096
)

type classKey struct {
	scope process.ProcessMemoryAddress
	name  string
}

// System is a view over the host's schema system object.
type System struct {
	r      process.MemoryReader
	addr   process.ProcessMemoryAddress
	layout Layout
	log    *logger.Logger

	classes *lru.Cache[classKey, *Class]
}

// NewSystem wraps the schema system at addr. The layout decides where every
// field of the foreign structures lives.
func NewSystem(r process.MemoryReader, addr process.ProcessMemoryAddress, layout Layout) (*System, error) {
	if addr == 0 {
		return nil, fmt.Errorf("schema system: %w", process.ErrNullPointer)
	}

	classes, err := lru.New[classKey, *Class](classCacheSize)
	if err != nil {
		return nil, err
	}

	return &System{
		r:       r,
		addr:    addr,
		layout:  layout,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "schema")),
		classes: classes,
	}, nil
}

func (s *System) Address() process.ProcessMemoryAddress { return s.addr }
func (s *System) Layout() Layout                        { return s.layout }

// TypeScopes lists every type scope registered with the system.
func (s *System) TypeScopes() ([]*TypeScope, error) {
	vec, err := process_blob.Read(s.r, s.addr+process.ProcessMemoryAddress(s.layout.SystemTypeScopes), 16)
	if err != nil {
		return nil, fmt.Errorf("type scope vector of %s: %w", s.addr.ToString(), err)
	}

	count, _ := vec.OffsetINT32(0)
	data := vec.OffsetPOINTER2(8)
	if count <= 0 || data == 0 {
		return nil, nil
	}
	if count > maxTypeScopes {
		s.log.Warn("type scope count", count, "exceeds limit, truncating to", maxTypeScopes)
		count = maxTypeScopes
	}

	ptrs, err := process.ReadPointers(s.r, data, int(count))
	if err != nil {
		return nil, fmt.Errorf("type scope pointers at %s: %w", data.ToString(), err)
	}

	scopes := make([]*TypeScope, 0, len(ptrs))
	for _, ptr := range ptrs {
		if ptr == 0 {
			continue
		}
		scope, err := s.typeScope(ptr)
		if err != nil {
			s.log.Debugln("skipping unreadable type scope at", ptr.ToString(), err)
			continue
		}
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

func (s *System) typeScope(addr process.ProcessMemoryAddress) (*TypeScope, error) {
	blob, err := process_blob.Read(s.r, addr, process.ProcessMemorySize(s.layout.ScopeModuleName+s.layout.ScopeModuleNameLen))
	if err != nil {
		return nil, err
	}
	name, err := blob.OffsetNTS(process.ProcessMemoryAddress(s.layout.ScopeModuleName), process.ProcessMemorySize(s.layout.ScopeModuleNameLen))
	if err != nil {
		return nil, err
	}
	return &TypeScope{sys: s, Address: addr, ModuleName: name}, nil
}

// FindTypeScope returns the scope whose module name equals module.
func (s *System) FindTypeScope(module string) (*TypeScope, error) {
	scopes, err := s.TypeScopes()
	if err != nil {
		return nil, err
	}
	for _, scope := range scopes {
		if scope.ModuleName == module {
			return scope, nil
		}
	}
	return nil, &LookupError{Stage: StageModule, Module: module}
}

// FindDeclaredClass finds class in the scope of module.
func (s *System) FindDeclaredClass(module, class string) (*Class, error) {
	scope, err := s.FindTypeScope(module)
	if err != nil {
		return nil, err
	}
	return scope.FindDeclaredClass(class)
}

// FindOffset returns the declared offset of field in class. Only the class's
// own fields are searched; fields inherited from a parent are not found.
func (s *System) FindOffset(module, class, field string) (int32, error) {
	c, err := s.FindDeclaredClass(module, class)
	if err != nil {
		return 0, err
	}

	f, err := c.FindField(field)
	if err != nil {
		return 0, err
	}

	s.log.Debugln("resolved", fmt.Sprintf("%s::%s", class, field), "in", module, "at", fmt.Sprintf("0x%x", f.Offset))
	return f.Offset, nil
}

// tableEntries walks a schema hash table's block list and returns the data
// pointer of every allocated entry.
func (s *System) tableEntries(table process.ProcessMemoryAddress) ([]process.ProcessMemoryAddress, error) {
	l := s.layout

	hdr, err := process_blob.Read(s.r, table, process.ProcessMemorySize(l.tableRecordSize()))
	if err != nil {
		return nil, fmt.Errorf("hash table at %s: %w", table.ToString(), err)
	}

	perNode, _ := hdr.OffsetINT32(process.ProcessMemoryAddress(l.TableBlocksPerBlob))
	count, _ := hdr.OffsetINT32(process.ProcessMemoryAddress(l.TableCount))
	node := hdr.OffsetPOINTER2(process.ProcessMemoryAddress(l.TableUnallocated))

	if count <= 0 || node == 0 {
		return nil, nil
	}
	// a block holds at most 256 entries; anything else is not a block count
	if perNode <= 0 || perNode > maxBlocks {
		return nil, &MalformedError{At: table, What: "hash table entries per block", Value: int64(perNode)}
	}
	if count > maxTableItems {
		s.log.Warn("hash table at", table.ToString(), "claims", count, "entries, truncating to", maxTableItems)
		count = maxTableItems
	}

	entries := make([]process.ProcessMemoryAddress, 0, count)
	nodeSize := process.ProcessMemorySize(l.NodeEntries + uint64(perNode)*l.NodeEntryStride)
	visited := 0

	for node != 0 && len(entries) < int(count) {
		if visited++; visited > maxTableItems {
			return nil, fmt.Errorf("hash table at %s: block list does not terminate", table.ToString())
		}

		blob, err := process_blob.Read(s.r, node, nodeSize)
		if err != nil {
			return nil, fmt.Errorf("hash table block at %s: %w", node.ToString(), err)
		}

		n := min(int(perNode), int(count)-len(entries))
		for i := 0; i < n; i++ {
			off := l.NodeEntries + uint64(i)*l.NodeEntryStride + l.NodeEntryData
			entries = append(entries, blob.OffsetPOINTER2(process.ProcessMemoryAddress(off)))
		}

		node = blob.OffsetPOINTER2(process.ProcessMemoryAddress(l.NodeNext))
	}

	return entries, nil
}

func (s *System) readName(addr process.ProcessMemoryAddress) (string, error) {
	if addr == 0 {
		return "", nil
	}
	return process.ReadNTS(s.r, addr, maxNameLength)
}
