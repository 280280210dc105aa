// Package module is a read-only view of one image mapped into a target.
package module

import (
	"errors"
	"fmt"
	"sync"

	"memscope/process"
	"memscope/sig"
)

const pageSize = 0x1000

// ErrExportNotFound is returned when a module has no export with the requested name.
var ErrExportNotFound = errors.New("export not found")

// Module is a ModuleImage: base, size and the reader its bytes come from.
// The engine assumes the module stays loaded while a Module is in use.
type Module struct {
	Info process.ModuleInfo

	r process.MemoryReader

	imageOnce sync.Once
	image     []byte
	imageErr  error

	exportsOnce sync.Once
	exports     map[string]process.ProcessMemoryAddress
	exportsErr  error
}

func New(info process.ModuleInfo, r process.MemoryReader) *Module {
	return &Module{Info: info, r: r}
}

func (m *Module) Name() string                       { return m.Info.Name }
func (m *Module) Base() process.ProcessMemoryAddress { return m.Info.Base }
func (m *Module) Size() process.ProcessMemorySize    { return m.Info.Size }
func (m *Module) Reader() process.MemoryReader       { return m.r }

func (m *Module) String() string {
	return m.Info.String()
}

// Image returns the module's bytes, read once. Pages that cannot be read
// (reserved gaps between sections) come back zero-filled.
func (m *Module) Image() ([]byte, error) {
	m.imageOnce.Do(func() {
		m.image, m.imageErr = readImage(m.r, m.Info.Base, m.Info.Size)
	})
	return m.image, m.imageErr
}

func readImage(r process.MemoryReader, base process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("image at %s has zero size", base.ToString())
	}

	if data, err := r.ReadMemory(base, size); err == nil {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	image := make([]byte, size)
	readable := 0
	for off := process.ProcessMemorySize(0); off < size; off += pageSize {
		n := min(process.ProcessMemorySize(pageSize), size-off)
		data, err := r.ReadMemory(base+process.ProcessMemoryAddress(off), n)
		if err != nil {
			continue
		}
		copy(image[off:], data)
		readable++
	}

	if readable == 0 {
		return nil, fmt.Errorf("image at %s: %w", base.ToString(), process.ErrAddressNotMapped)
	}
	return image, nil
}

// Scan returns the first match of p inside the image.
func (m *Module) Scan(p sig.Pattern) (sig.Match, error) {
	image, err := m.Image()
	if err != nil {
		return sig.Match{}, err
	}

	match, ok := sig.Find(image, m.Info.Base, p)
	if !ok {
		return sig.Match{}, &sig.PatternNotFoundError{Module: m.Info.Name, Pattern: p}
	}
	return match, nil
}

// ScanAll returns every match of p inside the image.
func (m *Module) ScanAll(p sig.Pattern) ([]sig.Match, error) {
	image, err := m.Image()
	if err != nil {
		return nil, err
	}
	return sig.FindAll(image, m.Info.Base, p), nil
}

// Exports returns the module's named exports as absolute addresses. A table
// recorded in ModuleInfo wins; otherwise the PE export directory is parsed
// straight out of the mapped image.
func (m *Module) Exports() (map[string]process.ProcessMemoryAddress, error) {
	m.exportsOnce.Do(func() {
		if m.Info.Exports != nil {
			m.exports = m.Info.Exports
			return
		}
		m.exports, m.exportsErr = parseExports(m.r, m.Info.Base, m.Info.Size)
	})
	return m.exports, m.exportsErr
}

// Export looks up a single export by exact name.
func (m *Module) Export(name string) (process.ProcessMemoryAddress, error) {
	exports, err := m.Exports()
	if err != nil {
		return 0, fmt.Errorf("exports of %s: %w", m.Info.Name, err)
	}

	addr, ok := exports[name]
	if !ok {
		return 0, fmt.Errorf("%s!%s: %w", m.Info.Name, name, ErrExportNotFound)
	}
	return addr, nil
}
