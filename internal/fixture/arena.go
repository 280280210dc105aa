// Package fixture lays out synthetic foreign structures in memory so the
// registry and schema walkers can be tested without a live host.
package fixture

import (
	"encoding/binary"
	"fmt"

	"memscope/process"
	"memscope/process_blob"
)

const align = 16

// Arena is a growing block of fake foreign memory starting at a fixed base.
type Arena struct {
	base process.ProcessMemoryAddress
	buf  []byte
}

func New(base process.ProcessMemoryAddress) *Arena {
	return &Arena{base: base}
}

func (a *Arena) Base() process.ProcessMemoryAddress { return a.base }

// Alloc reserves size zeroed bytes, 16-byte aligned.
func (a *Arena) Alloc(size int) process.ProcessMemoryAddress {
	if pad := len(a.buf) % align; pad != 0 {
		a.buf = append(a.buf, make([]byte, align-pad)...)
	}
	at := a.base + process.ProcessMemoryAddress(len(a.buf))
	a.buf = append(a.buf, make([]byte, size)...)
	return at
}

// Bytes copies data into a fresh allocation.
func (a *Arena) Bytes(data []byte) process.ProcessMemoryAddress {
	at := a.Alloc(len(data))
	a.Put(at, data)
	return at
}

// CString stores s with a NUL terminator.
func (a *Arena) CString(s string) process.ProcessMemoryAddress {
	return a.Bytes(append([]byte(s), 0))
}

func (a *Arena) slice(at process.ProcessMemoryAddress, n int) []byte {
	off := int(at - a.base)
	if at < a.base || off+n > len(a.buf) {
		panic(fmt.Sprintf("fixture: write of %d bytes at %s outside arena", n, at.ToString()))
	}
	return a.buf[off : off+n]
}

func (a *Arena) Put(at process.ProcessMemoryAddress, data []byte) {
	copy(a.slice(at, len(data)), data)
}

func (a *Arena) PutPointer(at, v process.ProcessMemoryAddress) {
	binary.LittleEndian.PutUint64(a.slice(at, 8), uint64(v))
}

func (a *Arena) PutInt64(at process.ProcessMemoryAddress, v int64) {
	binary.LittleEndian.PutUint64(a.slice(at, 8), uint64(v))
}

func (a *Arena) PutInt32(at process.ProcessMemoryAddress, v int32) {
	binary.LittleEndian.PutUint32(a.slice(at, 4), uint32(v))
}

func (a *Arena) PutUint32(at process.ProcessMemoryAddress, v uint32) {
	binary.LittleEndian.PutUint32(a.slice(at, 4), v)
}

func (a *Arena) PutInt16(at process.ProcessMemoryAddress, v int16) {
	binary.LittleEndian.PutUint16(a.slice(at, 2), uint16(v))
}

func (a *Arena) PutUint8(at process.ProcessMemoryAddress, v uint8) {
	a.slice(at, 1)[0] = v
}

// Blob freezes the arena into a reader. Call it after the last write.
func (a *Arena) Blob() *process_blob.ProcessBlob {
	return process_blob.NewProcessBlob(a.base, a.buf)
}

func rel32(from, to process.ProcessMemoryAddress) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(int64(to)-int64(from))))
	return b[:]
}

// LeaRet writes `lea rax, [rip+disp32]; ret` returning target.
func (a *Arena) LeaRet(target process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	at := a.Alloc(8)
	code := append([]byte{0x48, 0x8D, 0x05}, rel32(at+7, target)...)
	a.Put(at, append(code, 0xC3))
	return at
}

// MovR9 writes `mov r9, [rip+disp32]` referencing slot, followed by the rest
// of a plausible export body.
func (a *Arena) MovR9(slot process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	at := a.Alloc(16)
	code := append([]byte{0x4C, 0x8B, 0x0D}, rel32(at+7, slot)...)
	a.Put(at, append(code, 0x4C, 0x8B, 0xD2, 0xC3))
	return at
}
