package process

import (
	"memscope/process/memory_map"
)

// MemoryReader is the only capability the introspection engine needs from a target.
type MemoryReader interface {
	// ReadMemory reads size bytes starting at addr
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// IsValidAddress checks if the given memory address is mapped and readable
	IsValidAddress(addr ProcessMemoryAddress) bool
}

// Target is a readable address space that also knows which modules are loaded in it.
// Live processes and offline snapshots both satisfy it.
type Target interface {
	MemoryReader

	// Modules returns the loaded module table
	Modules() ([]ModuleInfo, error)
}

// Process is the interface that defines operations for attaching to a live system process.
// There is deliberately no write path.
type Process interface {
	Target

	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// Memory scanning operations
	MemoryScanner
}

// MemoryScanner defines operations for searching patterns across every readable region
type MemoryScanner interface {
	// Scan searches for a pattern in process memory
	Scan(aob AOB) ([]ProcessMemoryAddress, error)

	// ScanParallel searches for a pattern in process memory using parallel scanning
	ScanParallel(aob AOB, maxdop uint) ([]ProcessMemoryAddress, error)

	// ScanFirst searches for the first occurrence of a pattern in process memory
	ScanFirst(aob AOB) (ProcessMemoryAddress, error)
}
