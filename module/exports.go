package module

import (
	"fmt"
	"io"

	"github.com/Binject/debug/pe"

	"memscope/process"
)

// imageReaderAt exposes a mapped image as an io.ReaderAt over its RVAs, which
// is the view pe.NewFileFromMemory expects.
type imageReaderAt struct {
	r    process.MemoryReader
	base process.ProcessMemoryAddress
	size process.ProcessMemorySize
}

func (ra *imageReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(ra.size) {
		return 0, io.EOF
	}

	n := len(p)
	short := false
	if remain := int64(ra.size) - off; int64(n) > remain {
		n = int(remain)
		short = true
	}

	data, err := ra.r.ReadMemory(ra.base+process.ProcessMemoryAddress(off), process.ProcessMemorySize(n))
	if err != nil {
		return 0, err
	}
	copy(p, data)

	if short {
		return n, io.EOF
	}
	return n, nil
}

func parseExports(r process.MemoryReader, base process.ProcessMemoryAddress, size process.ProcessMemorySize) (map[string]process.ProcessMemoryAddress, error) {
	file, err := pe.NewFileFromMemory(&imageReaderAt{r: r, base: base, size: size})
	if err != nil {
		return nil, fmt.Errorf("parse PE image at %s: %w", base.ToString(), err)
	}
	defer file.Close()

	exports, err := file.Exports()
	if err != nil {
		return nil, fmt.Errorf("read export directory at %s: %w", base.ToString(), err)
	}

	table := make(map[string]process.ProcessMemoryAddress, len(exports))
	for _, export := range exports {
		if export.Name == "" {
			continue
		}
		table[export.Name] = base + process.ProcessMemoryAddress(export.VirtualAddress)
	}
	return table, nil
}
