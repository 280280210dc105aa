//go:build windows

package memory_map

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WindowsMemoryMap implements MemoryMap for Windows
type WindowsMemoryMap struct{}

// NewWindowsMemoryMap creates a new WindowsMemoryMap instance
func NewWindowsMemoryMap() *WindowsMemoryMap {
	return &WindowsMemoryMap{}
}

// ReadMemoryMap opens the process for querying and reads its committed regions.
func (w *WindowsMemoryMap) ReadMemoryMap(pid int) ([]MemoryMapItem, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}
	defer windows.CloseHandle(handle)

	return QueryRegions(handle)
}

// QueryRegions walks the address space of an already open process with VirtualQueryEx.
func QueryRegions(handle windows.Handle) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	var mbi windows.MemoryBasicInformation

	for addr := uintptr(0); ; {
		err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi))
		if err != nil {
			// ERROR_INVALID_PARAMETER marks the end of the user address space
			if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
				break
			}
			return nil, fmt.Errorf("VirtualQueryEx(0x%x): %w", addr, err)
		}

		if mbi.State == windows.MEM_COMMIT {
			memoryMap = append(memoryMap, MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   protectToPerms(mbi.Protect),
			})
		}

		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}

	return memoryMap, nil
}

func (w *WindowsMemoryMap) IsReadablePerms(perms string) bool {
	return len(perms) > 0 && perms[0] == 'r'
}

// protectToPerms renders a PAGE_* protection in the /proc/maps "rwxp" style.
func protectToPerms(protect uint32) string {
	if protect&(windows.PAGE_GUARD|windows.PAGE_NOACCESS) != 0 {
		return "---p"
	}

	switch protect & 0xFF {
	case windows.PAGE_READONLY:
		return "r--p"
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return "rw-p"
	case windows.PAGE_EXECUTE:
		return "--xp"
	case windows.PAGE_EXECUTE_READ:
		return "r-xp"
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return "rwxp"
	}
	return "---p"
}
