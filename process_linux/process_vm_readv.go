//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"memscope/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv copies size bytes at remoteAddr in pid into a fresh buffer.
func process_vm_readv(pid process.ProcessID, remoteAddr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	localBuf := make([]byte, size)

	localIov := unix.Iovec{
		Base: &localBuf[0],
		Len:  uint64(size),
	}

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  int(size),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)),
		uintptr(1),
		uintptr(unsafe.Pointer(&remoteIov)),
		uintptr(1),
		uintptr(0),
	)

	if errno != 0 {
		return nil, fmt.Errorf("process_vm_readv failed: %s (errno: %d)", errno.Error(), errno)
	}

	if int(n) != int(size) {
		return nil, fmt.Errorf("partial read: %d of %d bytes", n, size)
	}

	return localBuf, nil
}

// ReadMemory reads size bytes at addr. The address must fall inside a
// readable region of the last memory map read.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	pid := p.pid
	valid := p.isValidAddressInternal(addr)
	// the syscall runs without the lock
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	if !valid {
		return nil, fmt.Errorf("0x%x: %w", uint64(addr), process.ErrAddressNotMapped)
	}

	data, err := process_vm_readv(pid, addr, size)
	if err != nil {
		return nil, fmt.Errorf("read %d bytes at %s: %w", size, addr.ToString(), err)
	}

	return data, nil
}
