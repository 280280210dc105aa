package process

import (
	"fmt"
	"strings"
)

// ModuleInfo describes one image loaded into a target.
type ModuleInfo struct {
	Name string               `json:"name"`
	Base ProcessMemoryAddress `json:"base"`
	Size ProcessMemorySize    `json:"size"`
	Path string               `json:"path,omitempty"`

	// Exports is an optional pre-resolved export table (name -> absolute address).
	// Snapshots record it so exports can be found without parsing image headers.
	Exports map[string]ProcessMemoryAddress `json:"exports,omitempty"`
}

func (m ModuleInfo) String() string {
	return fmt.Sprintf("%s [%s - %s]", m.Name, m.Base.ToString(), m.End().ToString())
}

// End returns the first address past the image.
func (m ModuleInfo) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

// Contains reports whether addr falls inside the image.
func (m ModuleInfo) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.Base && addr < m.End()
}

// FindModule looks a module up by name, case-insensitively, with or without a directory.
func FindModule(modules []ModuleInfo, name string) (ModuleInfo, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	want := strings.ToLower(name)
	for _, m := range modules {
		if strings.ToLower(m.Name) == want {
			return m, nil
		}
	}
	return ModuleInfo{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}
