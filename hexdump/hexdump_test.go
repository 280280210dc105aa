package hexdump

import (
	"strings"
	"testing"

	"memscope/process/memory_map"
	"memscope/process_blob"
	"memscope/sig"
)

func plain() Options {
	o := DefaultOptions()
	o.Plain = true
	o.OffsetWidth = 8
	return o
}

func TestDumpPlain(t *testing.T) {
	data := []byte("Hello, memscope!\x00\x01AB")
	got := Dump(data, plain())
	want := "" +
		"00000000  48 65 6c 6c 6f 2c 20 6d | 65 6d 73 63 6f 70 65 21 | Hello, m emscope!\n" +
		"00000010  00 01 41 42                                       | ..AB\n"
	if got != want {
		t.Fatalf("unexpected dump:\n%q\nwant:\n%q", got, want)
	}
}

func TestMaxLines(t *testing.T) {
	o := plain()
	o.MaxLines = 1
	got := Dump(make([]byte, 40), o)
	if !strings.HasSuffix(got, "... 24 more bytes\n") {
		t.Fatalf("unexpected dump tail:\n%s", got)
	}
}

func TestClassify(t *testing.T) {
	p := sig.MustCompile("48 8D 05 ? ? ? ? C3")
	o := plain()
	o.Highlight = &p
	o.HighlightAt = 2

	cases := map[int]byteClass{
		0: plainByte, 1: plainByte,
		2: exactByte, 4: exactByte,
		5: wildcardByte, 8: wildcardByte,
		9: exactByte, 10: plainByte,
	}
	for i, want := range cases {
		if got := o.classify(i); got != want {
			t.Fatalf("classify(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestMatchColorsExactAndWildcard(t *testing.T) {
	image := []byte{0x90, 0x90, 0x48, 0x8D, 0x05, 0x10, 0x20, 0x30, 0x40, 0xC3, 0xCC, 0xCC}
	blob := process_blob.NewProcessBlob(0x140001000, image)
	p := sig.MustCompile("48 8D 05 ? ? ? ? C3")
	m, ok := sig.Find(image, 0x140001000, p)
	if !ok {
		t.Fatalf("pattern not found")
	}

	o := DefaultOptions()
	o.HighlightColor = 33
	o.WildcardColor = 35
	out, err := Match(blob, m, p, 2, 2, o)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if !strings.HasPrefix(out, "\033") || !strings.Contains(out, "140001000") {
		t.Fatalf("unexpected dump %q", out)
	}
	if !strings.Contains(out, "\033[33") || !strings.Contains(out, "\033[35") {
		t.Fatalf("expected exact and wildcard highlight colors in %q", out)
	}

	if _, err := Match(blob, m, p, 8, 0, o); err == nil {
		t.Fatalf("expected error reading before the blob")
	}
}

func TestShowPointers(t *testing.T) {
	o := plain()
	o.ShowPointers = true
	o.MemoryMap = []memory_map.MemoryMapItem{{Address: 0x7FFC00000000, Size: 0x1000, Perms: "r--p"}}

	data := []byte{
		0x10, 0x00, 0x00, 0x00, 0xFC, 0x7F, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	got := Dump(data, o)
	if !strings.HasSuffix(got, " | 0x7ffc00000010\n") {
		t.Fatalf("unexpected pointer preview %q", got)
	}
}
