// Package hexdump renders colored hex dumps of foreign memory, with the
// bytes of a signature match highlighted.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/Moonlight-Companies/gologger/coloransi"

	"memscope/process"
	"memscope/process/memory_map"
	"memscope/sig"
)

// Options customizes the dump.
type Options struct {
	BytesPerLine int
	GroupSize    int
	ShowASCII    bool

	// StartAddress is the address of data[0]
	StartAddress uint64
	OffsetWidth  int

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	ZeroColor         coloransi.ColorCode

	// Highlight marks Pattern.Len() bytes starting at HighlightAt. Exact
	// bytes use HighlightColor, wildcard positions use WildcardColor.
	Highlight           *sig.Pattern
	HighlightAt         int
	HighlightColor      coloransi.ColorCode
	HighlightBackground coloransi.ColorCode
	WildcardColor       coloransi.ColorCode

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// ShowPointers previews the two qwords of each line that land in MemoryMap.
	ShowPointers bool
	MemoryMap    []memory_map.MemoryMapItem

	// Plain disables ANSI colors.
	Plain bool
}

func DefaultOptions() Options {
	return Options{
		BytesPerLine:        16,
		GroupSize:           1,
		ShowASCII:           true,
		OffsetWidth:         12,
		OffsetColor:         coloransi.ColorTeal,
		HexColor:            coloransi.ColorLimeGreen,
		ASCIIColor:          coloransi.ColorWhite,
		NonPrintableColor:   coloransi.Red,
		ZeroColor:           coloransi.BrightBlack,
		HighlightColor:      coloransi.Yellow,
		HighlightBackground: coloransi.Black,
		WildcardColor:       coloransi.Magenta,
	}
}

// Dump renders data with options.
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes the dump of data to writer.
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}

	lineCount := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], offset, options)
		lineCount++
	}
}

type byteClass int

const (
	plainByte byteClass = iota
	exactByte
	wildcardByte
)

// classify reports how the byte at index i of the whole dump is highlighted.
func (o *Options) classify(i int) byteClass {
	if o.Highlight == nil {
		return plainByte
	}
	j := i - o.HighlightAt
	if j < 0 || j >= o.Highlight.Len() {
		return plainByte
	}
	if o.Highlight.IsWildcard(j) {
		return wildcardByte
	}
	return exactByte
}

func (o *Options) fg(c coloransi.ColorCode, s string) string {
	if o.Plain {
		return s
	}
	return coloransi.Foreground(c, s)
}

func (o *Options) fgbg(fg, bg coloransi.ColorCode, s string) string {
	if o.Plain {
		return s
	}
	return coloransi.Color(fg, bg, s)
}

// paint colors one rendered byte (hex pair or ASCII cell).
func (o *Options) paint(b byte, class byteClass, s string, base coloransi.ColorCode) string {
	switch class {
	case exactByte:
		return o.fgbg(o.HighlightColor, o.HighlightBackground, s)
	case wildcardByte:
		return o.fgbg(o.WildcardColor, o.HighlightBackground, s)
	}
	if b == 0 {
		return o.fg(o.ZeroColor, s)
	}
	return o.fg(base, s)
}

// formatLine renders one line; start is the index of data[0] in the dump.
//
//	0000dead0000  48 8d 05 00 00 00 00 c3 | 00 00 00 00 00 00 00 00 | H....... ........ | 0x7ffc00001000
func formatLine(writer io.Writer, data []byte, start int, options Options) {
	addr := options.StartAddress + uint64(start)
	fmt.Fprint(writer, options.fg(options.OffsetColor, fmt.Sprintf("%0*x", options.OffsetWidth, addr)), "  ")

	groups := formatHexValues(data, start, options)
	half := options.BytesPerLine / options.GroupSize / 2
	split := options.BytesPerLine >= 8 && half > 0 && half < len(groups)
	if split {
		fmt.Fprint(writer, strings.Join(groups[:half], " "), " | ", strings.Join(groups[half:], " "))
	} else {
		fmt.Fprint(writer, strings.Join(groups, " "))
	}

	// pad short lines so the ASCII column stays aligned
	if missing := options.BytesPerLine - len(data); missing > 0 {
		fullGroups := (options.BytesPerLine + options.GroupSize - 1) / options.GroupSize
		width := options.BytesPerLine*2 + fullGroups - 1
		if options.BytesPerLine >= 8 {
			width += 2
		}
		used := len(data)*2 + max(len(groups)-1, 0)
		if split {
			used += 2
		}
		fmt.Fprint(writer, strings.Repeat(" ", width-used))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")
		mid := options.BytesPerLine / 2
		if options.BytesPerLine >= 8 && len(data) > mid {
			formatASCII(writer, data[:mid], start, options)
			fmt.Fprint(writer, " ")
			formatASCII(writer, data[mid:], start+mid, options)
		} else {
			formatASCII(writer, data, start, options)
		}
	}

	if options.ShowPointers {
		var ptrs []string
		for i := 0; i+8 <= len(data) && i < 16; i += 8 {
			ptr := binary.LittleEndian.Uint64(data[i:])
			if memory_map.IsValidAddress2(ptr, options.MemoryMap) != nil {
				ptrs = append(ptrs, options.fg(coloransi.Yellow, fmt.Sprintf("0x%x", ptr)))
			}
		}
		if len(ptrs) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(ptrs, " "))
		}
	}

	fmt.Fprintln(writer)
}

func formatASCII(writer io.Writer, data []byte, start int, options Options) {
	for i, b := range data {
		c := rune(b)
		cell := "."
		color := options.NonPrintableColor
		if b < 0x80 && unicode.IsPrint(c) {
			cell = string(c)
			color = options.ASCIIColor
		}
		fmt.Fprint(writer, options.paint(b, options.classify(start+i), cell, color))
	}
}

func formatHexValues(data []byte, start int, options Options) []string {
	var result []string
	var group strings.Builder

	for i, b := range data {
		group.WriteString(options.paint(b, options.classify(start+i), fmt.Sprintf("%02x", b), options.HexColor))

		if (i+1)%options.GroupSize == 0 || i == len(data)-1 {
			result = append(result, group.String())
			group.Reset()
		}
	}

	return result
}

// Match reads the bytes around a signature hit and renders them with the
// pattern's exact and wildcard bytes highlighted. before and after are the
// number of context bytes on either side.
func Match(r process.MemoryReader, m sig.Match, p sig.Pattern, before, after int, options Options) (string, error) {
	start := m.Address.Add(-int64(before))
	data, err := r.ReadMemory(start, process.ProcessMemorySize(before+p.Len()+after))
	if err != nil {
		return "", fmt.Errorf("read match context at %s: %w", m.Address.ToString(), err)
	}

	options.StartAddress = uint64(start)
	options.Highlight = &p
	options.HighlightAt = before
	return Dump(data, options), nil
}
