// Package interfaces walks the host module's list of named interfaces and
// creates instances through their factory stubs.
package interfaces

import (
	"fmt"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"memscope/asm"
	"memscope/process"
	"memscope/process_blob"
)

// DefaultExport is the symbol every module with a registry exports.
const DefaultExport = "CreateInterface"

const (
	maxEntries    = 4096
	maxNameLength = 256
	entrySize     = 3 * process.PointerSize
)

// ExportedModule is the part of a module the registry needs.
type ExportedModule interface {
	Name() string
	Export(name string) (process.ProcessMemoryAddress, error)
}

// Entry is one node of the foreign list {create, name, next}.
type Entry struct {
	Name    string
	Factory process.ProcessMemoryAddress
	Next    process.ProcessMemoryAddress
	Address process.ProcessMemoryAddress
}

func (e Entry) String() string {
	return fmt.Sprintf("%s @ %s (factory %s)", e.Name, e.Address.ToString(), e.Factory.ToString())
}

// Registry is a snapshot of where one module's interface list starts.
type Registry struct {
	r      process.MemoryReader
	module string
	head   process.ProcessMemoryAddress
	log    *logger.Logger
}

// Open locates the registry through the module's CreateInterface export.
func Open(r process.MemoryReader, m ExportedModule) (*Registry, error) {
	return OpenExport(r, m, DefaultExport)
}

// OpenExport is Open with a different export name.
func OpenExport(r process.MemoryReader, m ExportedModule, export string) (*Registry, error) {
	fn, err := m.Export(export)
	if err != nil {
		return nil, fmt.Errorf("interface registry of %s: %w", m.Name(), err)
	}

	slot, err := asm.ResolveMovIndirect(r, fn)
	if err != nil {
		return nil, fmt.Errorf("interface registry of %s: %w", m.Name(), err)
	}

	head, err := process.ReadPointer(r, slot)
	if err != nil {
		return nil, fmt.Errorf("interface registry head of %s at %s: %w", m.Name(), slot.ToString(), err)
	}

	reg := &Registry{
		r:      r,
		module: m.Name(),
		head:   head,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "registry-"+m.Name())),
	}
	if head == 0 {
		reg.log.Debugln("registry list is empty")
	}
	return reg, nil
}

func (reg *Registry) Module() string                     { return reg.module }
func (reg *Registry) Head() process.ProcessMemoryAddress { return reg.head }

func (reg *Registry) entry(addr process.ProcessMemoryAddress) (Entry, error) {
	blob, err := process_blob.Read(reg.r, addr, entrySize)
	if err != nil {
		return Entry{}, fmt.Errorf("registry entry at %s: %w", addr.ToString(), err)
	}

	e := Entry{
		Address: addr,
		Factory: blob.OffsetPOINTER2(0),
		Next:    blob.OffsetPOINTER2(16),
	}
	if name := blob.OffsetPOINTER2(8); name != 0 {
		if e.Name, err = process.ReadNTS(reg.r, name, maxNameLength); err != nil {
			return Entry{}, fmt.Errorf("registry entry name at %s: %w", name.ToString(), err)
		}
	}
	return e, nil
}

// walk visits entries in list order until fn returns false.
func (reg *Registry) walk(fn func(Entry) bool) error {
	seen := make(map[process.ProcessMemoryAddress]bool)
	for addr := reg.head; addr != 0; {
		if seen[addr] || len(seen) >= maxEntries {
			reg.log.Warn("registry list does not terminate after", len(seen), "entries")
			return nil
		}
		seen[addr] = true

		e, err := reg.entry(addr)
		if err != nil {
			return err
		}
		if !fn(e) {
			return nil
		}
		addr = e.Next
	}
	return nil
}

// Entries returns the whole list in order.
func (reg *Registry) Entries() ([]Entry, error) {
	var entries []Entry
	err := reg.walk(func(e Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries, err
}

// Find returns the first entry, in list order, whose name contains substr.
// Registered names carry a version suffix, so callers pass the stem. An
// entry that cannot be read ends the search with its error.
func (reg *Registry) Find(substr string) (Entry, bool, error) {
	var found Entry
	ok := false
	err := reg.walk(func(e Entry) bool {
		if strings.Contains(e.Name, substr) {
			found, ok = e, true
			return false
		}
		return true
	})
	if err != nil {
		return Entry{}, false, err
	}
	return found, ok, nil
}

// Create finds the interface and instantiates it.
func (reg *Registry) Create(name string) (process.ProcessMemoryAddress, error) {
	e, ok, err := reg.Find(name)
	if err != nil {
		return 0, fmt.Errorf("interface %q of %s: %w", name, reg.module, err)
	}
	if !ok {
		return 0, &NotFoundError{Module: reg.module, Name: name}
	}
	return reg.Instantiate(e)
}

// Instantiate runs the entry's factory stub statically: the stub is
// `lea rax, [rip+disp]; ret` and the lea target is the instance.
func (reg *Registry) Instantiate(e Entry) (process.ProcessMemoryAddress, error) {
	if e.Factory == 0 {
		return 0, fmt.Errorf("factory of %s: %w", e.Name, process.ErrNullPointer)
	}

	obj, err := asm.ResolveLeaRet(reg.r, e.Factory)
	if err != nil {
		return 0, fmt.Errorf("factory of %s: %w", e.Name, err)
	}
	if obj == 0 {
		return 0, fmt.Errorf("instance of %s: %w", e.Name, process.ErrNullPointer)
	}

	reg.log.Debugln("created", e.Name, "at", obj.ToString())
	return obj, nil
}
