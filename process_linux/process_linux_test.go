//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"slices"
	"strings"
	"testing"
	"unsafe"

	"memscope/process"
)

func TestParseStatusPPid(t *testing.T) {
	status := "Name:\tgame.exe\nState:\tS (sleeping)\nTgid:\t4242\nPid:\t4242\nPPid:\t17\nTracerPid:\t0\n"
	if ppid := parseStatusPPid(strings.NewReader(status)); ppid != 17 {
		t.Fatalf("PPid = %d, want 17", ppid)
	}
	if ppid := parseStatusPPid(strings.NewReader("Name:\tx\n")); ppid != 0 {
		t.Fatalf("PPid = %d, want 0", ppid)
	}
}

func TestFindProcessByPIDSelf(t *testing.T) {
	info, err := NewProcessFinder().FindProcessByPID(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("FindProcessByPID returned error: %v", err)
	}
	if info.PID != process.ProcessID(os.Getpid()) || info.Name == "" {
		t.Fatalf("unexpected process info %+v", info)
	}
}

func TestClosedProcess(t *testing.T) {
	p := New()
	if _, err := p.ReadMemory(0x400000, 8); !errors.Is(err, process.ErrProcessNotOpen) {
		t.Fatalf("expected ErrProcessNotOpen, got %v", err)
	}
	if _, err := p.Modules(); !errors.Is(err, process.ErrProcessNotOpen) {
		t.Fatalf("expected ErrProcessNotOpen, got %v", err)
	}
	if p.IsValidAddress(0x400000) {
		t.Fatalf("closed process reports a valid address")
	}
}

func TestReadSelf(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("NewWithPID returned error: %v", err)
	}
	defer p.Close()

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x13, 0x37, 0xC0, 0xDE}
	buf := make([]byte, len(want))
	copy(buf, want)
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&buf[0])))

	// the heap grows after the map was read
	if err := p.UpdateMemoryMap(); err != nil {
		t.Fatalf("UpdateMemoryMap returned error: %v", err)
	}
	got, err := p.ReadMemory(addr, process.ProcessMemorySize(len(want)))
	if err != nil {
		t.Skipf("process_vm_readv is not permitted here: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("ReadMemory = %x, want %x", got, want)
	}

	if _, err := p.ReadMemory(0x1000, 8); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("expected ErrAddressNotMapped, got %v", err)
	}
}

func TestScanSelf(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("NewWithPID returned error: %v", err)
	}
	defer p.Close()

	// built at run time so the bytes are not also in the binary's data
	buf := make([]byte, 24)
	for i := range buf {
		buf[i] = byte(0xA5 ^ (i * 37) ^ os.Getpid())
	}
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&buf[0])))

	if err := p.UpdateMemoryMap(); err != nil {
		t.Fatalf("UpdateMemoryMap returned error: %v", err)
	}
	if _, err := p.ReadMemory(addr, 8); err != nil {
		t.Skipf("process_vm_readv is not permitted here: %v", err)
	}

	aob, err := process.NewAOB(buf, bytes.Repeat([]byte{0xFF}, len(buf)))
	if err != nil {
		t.Fatalf("NewAOB returned error: %v", err)
	}
	all, err := p.Scan(aob)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if !slices.Contains(all, addr) {
		t.Fatalf("Scan did not report 0x%x among %d matches", uint64(addr), len(all))
	}

	first, err := p.ScanFirst(aob)
	if err != nil {
		t.Fatalf("ScanFirst returned error: %v", err)
	}
	// copies of the pattern come and go on the heap, but buf stays put
	if first > addr {
		t.Fatalf("ScanFirst = 0x%x, above 0x%x", uint64(first), uint64(addr))
	}
	runtime.KeepAlive(buf)

	if _, err := process.NewAOB(buf, []byte{0xFF}); err == nil {
		t.Fatalf("NewAOB accepted a short mask")
	}
}
