//go:build linux

// Package process_linux attaches to live Linux processes, including Windows
// games running under Wine or Proton, whose PE images show up as mapped files.
package process_linux

import (
	"fmt"
	"os"
	"sync"

	"memscope/process"
	"memscope/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// highest canonical user-space address on x86-64
const userSpaceEnd = 0x7FFFFFFFFFFF

// LinuxProcess implements process.Process on top of /proc and process_vm_readv.
type LinuxProcess struct {
	pid process.ProcessID
	log *logger.Logger
	mm  []memory_map.MemoryMapItem
	mu  sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a LinuxProcess that is not attached to anything yet.
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a LinuxProcess and opens pid.
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Infoln("Closing process")

	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// UpdateMemoryMap re-reads /proc/<pid>/maps.
func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// IsValidAddress2 requires the memory map to be sorted by address
	memory_map.Sort(mm)

	p.mm = mm
	p.log.Debugln("memory map has", len(mm), "regions")
	return nil
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.isValidAddressInternal(addr)
}

// assumes p.mu is held
func (p *LinuxProcess) isValidAddressInternal(addr process.ProcessMemoryAddress) bool {
	if addr <= 0x10000 || addr > userSpaceEnd {
		return false
	}

	if item := memory_map.IsValidAddress2(uint64(addr), p.mm); item != nil {
		return item.IsReadable()
	}

	return false
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

// Modules derives the module table from file-backed mappings. A PE image
// loaded by Wine is mapped from its .dll path, so it is found by file name
// just like a native shared object.
func (p *LinuxProcess) Modules() ([]process.ModuleInfo, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	var modules []process.ModuleInfo
	for _, img := range memory_map.Images(mm) {
		modules = append(modules, process.ModuleInfo{
			Name: img.Name,
			Base: process.ProcessMemoryAddress(img.Base),
			Size: process.ProcessMemorySize(img.Size),
			Path: img.Path,
		})
	}
	return modules, nil
}
