package process_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"memscope/process"
	"memscope/process_blob"
)

func TestReadPath(t *testing.T) {
	const base = 0x10000
	mem := make([]byte, 0x100)
	// base+0x08 -> 0x10040, 0x10040+0x10 -> 0x10080, value at 0x10080+0x04
	binary.LittleEndian.PutUint64(mem[0x08:], base+0x40)
	binary.LittleEndian.PutUint64(mem[0x50:], base+0x80)
	binary.LittleEndian.PutUint32(mem[0x84:], 1337)
	r := process_blob.NewProcessBlob(base, mem)

	got, err := process.ReadPath[uint32](r, base, 0x08, 0x10, 0x04)
	if err != nil {
		t.Fatalf("ReadPath returned error: %v", err)
	}
	if got != 1337 {
		t.Fatalf("ReadPath = %d, want 1337", got)
	}

	direct, err := process.ReadPath[uint32](r, base+0x84)
	if err != nil || direct != 1337 {
		t.Fatalf("ReadPath without offsets = %d, %v", direct, err)
	}

	// a null link in the chain
	if _, err := process.ReadPath[uint32](r, base, 0x18, 0x00); !errors.Is(err, process.ErrNullPointer) {
		t.Fatalf("expected ErrNullPointer, got %v", err)
	}
}

func TestReadStruct(t *testing.T) {
	type vec3 struct{ X, Y, Z float32 }

	mem := make([]byte, 16)
	binary.LittleEndian.PutUint32(mem[0:], 0x3F800000) // 1.0
	binary.LittleEndian.PutUint32(mem[4:], 0x40000000) // 2.0
	binary.LittleEndian.PutUint32(mem[8:], 0x40400000) // 3.0
	r := process_blob.NewProcessBlob(0x2000, mem)

	v, err := process.Read[vec3](r, 0x2000)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if v != (vec3{1, 2, 3}) {
		t.Fatalf("Read = %+v", v)
	}

	if _, err := process.Read[vec3](r, 0x2008); err == nil {
		t.Fatalf("expected error reading past the end")
	}
}

func TestReadPointers(t *testing.T) {
	mem := make([]byte, 24)
	for i := range 3 {
		binary.LittleEndian.PutUint64(mem[i*8:], uint64(0x1000*(i+1)))
	}
	r := process_blob.NewProcessBlob(0x3000, mem)

	ptrs, err := process.ReadPointers(r, 0x3000, 3)
	if err != nil {
		t.Fatalf("ReadPointers returned error: %v", err)
	}
	if len(ptrs) != 3 || ptrs[2] != 0x3000 {
		t.Fatalf("ReadPointers = %v", ptrs)
	}

	if _, err := process.ReadPointer(r, 0); !errors.Is(err, process.ErrNullPointer) {
		t.Fatalf("expected ErrNullPointer for address zero, got %v", err)
	}
}

func TestReadNTS(t *testing.T) {
	mem := []byte("Source2Client002\x00tail")
	r := process_blob.NewProcessBlob(0x4000, mem)

	s, err := process.ReadNTS(r, 0x4000, 256)
	if err != nil {
		t.Fatalf("ReadNTS returned error: %v", err)
	}
	if s != "Source2Client002" {
		t.Fatalf("ReadNTS = %q", s)
	}

	// terminator missing before the end of the mapping: read what is there
	s, err = process.ReadNTS(r, 0x4000+17, 256)
	if err != nil || s != "tail" {
		t.Fatalf("ReadNTS at end of mapping = %q, %v", s, err)
	}

	// maxLength cuts the string
	s, _ = process.ReadNTS(r, 0x4000, 7)
	if s != "Source2" {
		t.Fatalf("ReadNTS with short max = %q", s)
	}
}

func TestDecodeStringIsLossy(t *testing.T) {
	got := process.CString([]byte{'h', 0xFF, 'i', 0, 'x'})
	if got != "h\uFFFDi" {
		t.Fatalf("CString = %q", got)
	}
}

func TestFindModule(t *testing.T) {
	modules := []process.ModuleInfo{
		{Name: "engine2.dll", Base: 0x1000, Size: 0x100},
		{Name: "client.dll", Base: 0x2000, Size: 0x100},
	}

	m, err := process.FindModule(modules, `C:\game\bin\Client.dll`)
	if err != nil {
		t.Fatalf("FindModule returned error: %v", err)
	}
	if m.Base != 0x2000 || !m.Contains(0x20FF) || m.Contains(0x2100) {
		t.Fatalf("unexpected module %v", m)
	}

	if _, err := process.FindModule(modules, "server.dll"); !errors.Is(err, process.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}
