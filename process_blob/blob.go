package process_blob

import (
	"encoding/binary"
	"fmt"

	"memscope/process"
)

// ProcessBlob is a contiguous run of foreign bytes pinned at the address it was read from.
// It serves both as a decoded record (read once, then picked apart with the Offset
// methods) and as a standalone in-memory target.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

var _ process.MemoryReader = (*ProcessBlob)(nil)

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

// Read fetches size bytes at addr from r into a blob.
func Read(r process.MemoryReader, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*ProcessBlob, error) {
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}

	if len(data) < int(size) {
		return nil, fmt.Errorf("read less data than requested at 0x%x: %d of %d", addr, len(data), size)
	}

	return NewProcessBlob(addr, data[:size]), nil
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) Size() process.ProcessMemorySize {
	return process.ProcessMemorySize(len(p.data))
}

func (p *ProcessBlob) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	return addr >= p.baseaddress && uint64(addr-p.baseaddress) < uint64(len(p.data))
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr < p.baseaddress {
		return nil, fmt.Errorf("0x%x: %w", addr, process.ErrAddressNotMapped)
	}

	offset := uint64(addr - p.baseaddress)
	if offset > uint64(len(p.data)) || uint64(size) > uint64(len(p.data))-offset {
		return nil, fmt.Errorf("0x%x+%d: %w", addr, size, process.ErrAddressNotMapped)
	}

	return p.data[offset : offset+uint64(size)], nil
}

// Offset methods decode fields of the blob relative to its base address

func (p *ProcessBlob) slice(offset process.ProcessMemoryAddress, size int) ([]byte, error) {
	if uint64(offset)+uint64(size) > uint64(len(p.data)) {
		return nil, fmt.Errorf("offset 0x%x+%d outside blob of %d bytes at 0x%x", offset, size, len(p.data), p.baseaddress)
	}
	return p.data[offset : int(offset)+size], nil
}

// OffsetUINT8 returns an unsigned 8-bit integer at offset
func (p *ProcessBlob) OffsetUINT8(offset process.ProcessMemoryAddress) (uint8, error) {
	data, err := p.slice(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// OffsetINT16 returns a signed 16-bit integer at offset
func (p *ProcessBlob) OffsetINT16(offset process.ProcessMemoryAddress) (int16, error) {
	data, err := p.slice(offset, 2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(data)), nil
}

// OffsetINT32 returns a signed 32-bit integer at offset
func (p *ProcessBlob) OffsetINT32(offset process.ProcessMemoryAddress) (int32, error) {
	data, err := p.slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// OffsetUINT32 returns an unsigned 32-bit integer at offset
func (p *ProcessBlob) OffsetUINT32(offset process.ProcessMemoryAddress) (uint32, error) {
	data, err := p.slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// OffsetINT64 returns a signed 64-bit integer at offset
func (p *ProcessBlob) OffsetINT64(offset process.ProcessMemoryAddress) (int64, error) {
	data, err := p.slice(offset, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// OffsetPOINTER returns a pointer value at offset
func (p *ProcessBlob) OffsetPOINTER(offset process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	data, err := p.slice(offset, process.PointerSize)
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data)), nil
}

// OffsetPOINTER2 returns a pointer value at offset, zero on error
func (p *ProcessBlob) OffsetPOINTER2(offset process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	ptr, err := p.OffsetPOINTER(offset)
	if err != nil {
		return 0
	}
	return ptr
}

// OffsetNTS returns an inline null-terminated string of at most maxLength bytes at offset
func (p *ProcessBlob) OffsetNTS(offset process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	data, err := p.slice(offset, int(maxLength))
	if err != nil {
		return "", err
	}
	return process.CString(data), nil
}

// OffsetBlob returns a sub-blob of size bytes at offset
func (p *ProcessBlob) OffsetBlob(offset process.ProcessMemoryAddress, size process.ProcessMemorySize) (*ProcessBlob, error) {
	data, err := p.slice(offset, int(size))
	if err != nil {
		return nil, err
	}
	return NewProcessBlob(p.baseaddress+offset, data), nil
}
