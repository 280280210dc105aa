package module

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"memscope/process"
	"memscope/process_blob"
	"memscope/sig"
)

const testBase = 0x180000000

func TestScan(t *testing.T) {
	image := make([]byte, 0x200)
	copy(image[0x120:], []byte{0x4C, 0x8B, 0x05, 0x11, 0x22, 0x33, 0x44, 0xC3})

	m := New(process.ModuleInfo{Name: "client.dll", Base: testBase, Size: 0x200}, process_blob.NewProcessBlob(testBase, image))

	match, err := m.Scan(sig.MustCompile("4C 8B 05 ? ? ? ? C3"))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if match.Address != testBase+0x120 || match.RVA() != 0x120 {
		t.Fatalf("unexpected match %s", match.String())
	}

	_, err = m.Scan(sig.MustCompile("DE AD BE EF"))
	var nf *sig.PatternNotFoundError
	if !errors.As(err, &nf) || nf.Module != "client.dll" {
		t.Fatalf("expected PatternNotFoundError for client.dll, got %v", err)
	}
	if !errors.Is(err, sig.ErrPatternNotFound) {
		t.Fatalf("expected ErrPatternNotFound, got %v", err)
	}
}

func TestScanAll(t *testing.T) {
	image := bytes.Repeat([]byte{0x90, 0xCC}, 8)
	m := New(process.ModuleInfo{Name: "a.dll", Base: testBase, Size: 16}, process_blob.NewProcessBlob(testBase, image))

	matches, err := m.ScanAll(sig.MustCompile("90 CC"))
	if err != nil {
		t.Fatalf("ScanAll returned error: %v", err)
	}
	if len(matches) != 8 {
		t.Fatalf("expected 8 matches, got %d", len(matches))
	}
}

func TestImageZeroFillsUnreadablePages(t *testing.T) {
	snap := process_blob.NewSnapshot()
	snap.AddRegion(testBase, bytes.Repeat([]byte{0xAA}, pageSize), "r--p", "client.dll")
	snap.AddRegion(testBase+2*pageSize, bytes.Repeat([]byte{0xBB}, pageSize), "r-xp", "client.dll")

	m := New(process.ModuleInfo{Name: "client.dll", Base: testBase, Size: 3 * pageSize}, snap)

	image, err := m.Image()
	if err != nil {
		t.Fatalf("Image returned error: %v", err)
	}
	if len(image) != 3*pageSize {
		t.Fatalf("image is %d bytes, want %d", len(image), 3*pageSize)
	}
	if image[0] != 0xAA || image[pageSize] != 0 || image[2*pageSize] != 0xBB {
		t.Fatalf("unexpected page contents %x %x %x", image[0], image[pageSize], image[2*pageSize])
	}

	match, err := m.Scan(sig.MustCompile("BB BB BB BB"))
	if err != nil || match.RVA() != 2*pageSize {
		t.Fatalf("Scan across gap = %s, %v", match.String(), err)
	}
}

func TestImageUnmapped(t *testing.T) {
	m := New(process.ModuleInfo{Name: "gone.dll", Base: 0x1000, Size: pageSize}, process_blob.NewSnapshot())
	if _, err := m.Image(); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("expected ErrAddressNotMapped, got %v", err)
	}
}

func TestExportFromModuleInfo(t *testing.T) {
	info := process.ModuleInfo{
		Name: "schemasystem.dll",
		Base: testBase,
		Size: 0x100,
		Exports: map[string]process.ProcessMemoryAddress{
			"CreateInterface": testBase + 0x40,
		},
	}
	m := New(info, process_blob.NewProcessBlob(testBase, make([]byte, 0x100)))

	addr, err := m.Export("CreateInterface")
	if err != nil || addr != testBase+0x40 {
		t.Fatalf("Export = %s, %v", addr.ToString(), err)
	}

	if _, err := m.Export("Missing"); !errors.Is(err, ErrExportNotFound) {
		t.Fatalf("expected ErrExportNotFound, got %v", err)
	}
}

func TestExportsRejectsNonPEImage(t *testing.T) {
	m := New(process.ModuleInfo{Name: "junk.dll", Base: testBase, Size: 0x400}, process_blob.NewProcessBlob(testBase, make([]byte, 0x400)))
	if _, err := m.Export("CreateInterface"); err == nil || errors.Is(err, ErrExportNotFound) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestImageReaderAt(t *testing.T) {
	data := []byte("0123456789")
	ra := &imageReaderAt{r: process_blob.NewProcessBlob(testBase, data), base: testBase, size: 10}

	buf := make([]byte, 4)
	n, err := ra.ReadAt(buf, 2)
	if err != nil || n != 4 || string(buf) != "2345" {
		t.Fatalf("ReadAt = %d %q %v", n, buf, err)
	}

	n, err = ra.ReadAt(buf, 8)
	if err != io.EOF || n != 2 || string(buf[:n]) != "89" {
		t.Fatalf("short ReadAt = %d %q %v", n, buf[:n], err)
	}

	if _, err := ra.ReadAt(buf, 10); err != io.EOF {
		t.Fatalf("expected io.EOF past the image, got %v", err)
	}
}
