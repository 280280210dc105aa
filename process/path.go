package process

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unsafe"
)

// PointerSize is the width of a foreign pointer. Only 64-bit targets are supported.
const PointerSize = 8

// ntsChunk is how much ReadNTS fetches per step; strings near the end of a
// mapping would fail a single large read.
const ntsChunk = 64

// ReadPath reads a value of type T at the end of a pointer path.
// It starts at base, adds the first offset, reads a pointer, adds the next offset, reads a pointer, etc.
// The last offset is added to the final pointer, and then T is read from that address.
// If offsets is empty, it reads T from base.
func ReadPath[T any](r MemoryReader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (T, error) {
	currentAddr := base

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := currentAddr + ProcessMemoryAddress(offsets[i])

		ptrVal, err := ReadPointer(r, ptrAddr)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("failed to read pointer at offset %d (addr 0x%x): %w", i, ptrAddr, err)
		}

		if ptrVal == 0 {
			var zero T
			return zero, fmt.Errorf("pointer at offset %d (addr 0x%x): %w", i, ptrAddr, ErrNullPointer)
		}

		currentAddr = ptrVal
	}

	finalOffset := ProcessMemorySize(0)
	if len(offsets) > 0 {
		finalOffset = offsets[len(offsets)-1]
	}

	finalAddr := currentAddr + ProcessMemoryAddress(finalOffset)

	val, err := Read[T](r, finalAddr)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to read final value at 0x%x: %w", finalAddr, err)
	}

	return val, nil
}

// Read copies sizeof(T) bytes at addr into a T. T must be plain data.
func Read[T any](r MemoryReader, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return t, err
	}
	if len(data) < int(size) {
		return t, fmt.Errorf("short read at 0x%x: %d of %d bytes", addr, len(data), size)
	}

	CopyTo(&t, data)
	return t, nil
}

// CopyTo copies the leading sizeof(T) bytes of src into *dst.
func CopyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	if len(src) < size {
		return
	}

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}

// ReadPointer reads a 64-bit little-endian pointer.
func ReadPointer(r MemoryReader, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	if addr == 0 {
		return 0, fmt.Errorf("read pointer: %w", ErrNullPointer)
	}

	data, err := r.ReadMemory(addr, PointerSize)
	if err != nil {
		return 0, err
	}
	if len(data) < PointerSize {
		return 0, fmt.Errorf("short pointer read at 0x%x", addr)
	}

	return ProcessMemoryAddress(binary.LittleEndian.Uint64(data)), nil
}

// ReadPointers reads count consecutive pointers starting at base.
func ReadPointers(r MemoryReader, base ProcessMemoryAddress, count int) ([]ProcessMemoryAddress, error) {
	if count <= 0 {
		return nil, nil
	}

	data, err := r.ReadMemory(base, ProcessMemorySize(count*PointerSize))
	if err != nil {
		return nil, fmt.Errorf("read %d pointers at 0x%x: %w", count, base, err)
	}

	results := make([]ProcessMemoryAddress, count)
	for i := range count {
		results[i] = ProcessMemoryAddress(binary.LittleEndian.Uint64(data[i*PointerSize:]))
	}
	return results, nil
}

// ReadNTS reads a null-terminated string of at most maxLength bytes.
// Invalid UTF-8 is replaced rather than rejected.
func ReadNTS(r MemoryReader, addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("read string: %w", ErrNullPointer)
	}

	var buf []byte
	chunk := ProcessMemorySize(ntsChunk)
	for read := ProcessMemorySize(0); read < maxLength; {
		n := min(chunk, maxLength-read)
		data, err := r.ReadMemory(addr+ProcessMemoryAddress(read), n)
		if err != nil {
			// shrink the window until it fits inside the mapping
			if n > 1 {
				chunk = n / 2
				continue
			}
			if read == 0 {
				return "", err
			}
			break
		}

		if i := bytes.IndexByte(data, 0); i >= 0 {
			buf = append(buf, data[:i]...)
			return DecodeString(buf), nil
		}

		buf = append(buf, data...)
		read += n
	}

	return DecodeString(buf), nil
}

// CString returns the bytes before the first NUL, decoded loosely.
func CString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return DecodeString(data)
}

// DecodeString turns foreign bytes into a Go string, substituting U+FFFD for invalid sequences.
func DecodeString(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
