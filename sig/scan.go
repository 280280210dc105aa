package sig

import (
	"bytes"
	"fmt"

	"memscope/process"
)

// Match is the location of a pattern inside a module image.
type Match struct {
	Address    process.ProcessMemoryAddress
	ModuleBase process.ProcessMemoryAddress
}

// Offset returns a new match displaced by k bytes. No bounds are checked.
func (m Match) Offset(k int64) Match {
	return Match{
		Address:    m.Address.Add(k),
		ModuleBase: m.ModuleBase,
	}
}

// RVA is the match address relative to the module base.
func (m Match) RVA() uint64 {
	return uint64(m.Address - m.ModuleBase)
}

func (m Match) String() string {
	return fmt.Sprintf("%s (base %s + 0x%X)", m.Address.ToString(), m.ModuleBase.ToString(), m.RVA())
}

// Find scans image left to right and returns the first position where every
// exact byte of p matches. base is the address image[0] was read from.
func Find(image []byte, base process.ProcessMemoryAddress, p Pattern) (Match, bool) {
	i := p.index(image, 0)
	if i < 0 {
		return Match{}, false
	}
	return Match{Address: base + process.ProcessMemoryAddress(i), ModuleBase: base}, true
}

// FindAll returns every match of p in image, in ascending order. Overlapping matches are reported.
func FindAll(image []byte, base process.ProcessMemoryAddress, p Pattern) []Match {
	var matches []Match
	for from := 0; ; {
		i := p.index(image, from)
		if i < 0 {
			return matches
		}
		matches = append(matches, Match{Address: base + process.ProcessMemoryAddress(i), ModuleBase: base})
		from = i + 1
	}
}

// index returns the first match position at or after from, or -1.
func (p Pattern) index(data []byte, from int) int {
	n := len(p.bytes)
	if n == 0 || len(data) < n {
		return -1
	}

	last := len(data) - n
	anchor := p.bytes[p.anchor]
	for i := from; i <= last; {
		// jump to the next position where the anchor byte lines up
		j := bytes.IndexByte(data[i+p.anchor:last+p.anchor+1], anchor)
		if j < 0 {
			return -1
		}
		i += j
		if p.matchAt(data, i) {
			return i
		}
		i++
	}
	return -1
}
