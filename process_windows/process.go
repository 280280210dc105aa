//go:build windows

// Package process_windows attaches to live Windows processes through the
// Win32 debugging and Toolhelp APIs. It only ever requests read access.
package process_windows

import (
	"fmt"
	"sync"
	"unsafe"

	"memscope/process"
	"memscope/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

const accessRights = windows.PROCESS_VM_READ | windows.PROCESS_QUERY_INFORMATION

// WindowsProcess implements process.Process for Windows systems.
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	mu     sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

func New() *WindowsProcess {
	return &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a WindowsProcess and opens pid.
func NewWithPID(pid process.ProcessID) (*WindowsProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	handle, err := windows.OpenProcess(accessRights, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}

	p.mu.Lock()
	p.pid = pid
	p.handle = handle
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		p.Close()
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle: %w", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// UpdateMemoryMap walks the committed regions with VirtualQueryEx.
func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.QueryRegions(p.handle)
	if err != nil {
		return err
	}
	memory_map.Sort(mm)

	p.mm = mm
	p.log.Debugln("memory map has", len(mm), "regions")
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item := memory_map.IsValidAddress2(uint64(addr), p.mm); item != nil {
		return item.IsReadable()
	}
	return false
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	buf := make([]byte, size)
	var n uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &n); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory(%s, %d): %w", addr.ToString(), size, err)
	}
	if n != uintptr(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d", size, n)
	}

	return buf, nil
}

// Modules lists the loaded images with a Toolhelp32 module snapshot.
func (p *WindowsProcess) Modules() ([]process.ModuleInfo, error) {
	pid := p.GetPID()
	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var modules []process.ModuleInfo
	for err = windows.Module32First(snap, &entry); err == nil; err = windows.Module32Next(snap, &entry) {
		modules = append(modules, process.ModuleInfo{
			Name: windows.UTF16ToString(entry.Module[:]),
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: process.ProcessMemorySize(entry.ModBaseSize),
			Path: windows.UTF16ToString(entry.ExePath[:]),
		})
	}
	if err != windows.ERROR_NO_MORE_FILES {
		return nil, fmt.Errorf("Module32Next: %w", err)
	}

	return modules, nil
}
