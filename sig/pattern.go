// Package sig compiles and scans for byte signatures: partially wildcarded byte
// sequences that locate known code inside an unlabeled image.
package sig

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"memscope/process"
)

const (
	maskExact    = 0xFF
	maskWildcard = 0x00
)

// Pattern is a compiled signature. The zero value is not a valid pattern; use Compile.
type Pattern struct {
	bytes []byte
	mask  []byte
	// anchor is the index of the first exact byte, used to skip ahead with IndexByte
	anchor int
}

// Compile parses whitespace-separated tokens. Each token is two hex digits or a
// wildcard standing for exactly one byte of any value. The documented wildcard
// is the single "?", but catalogs and disassemblers write "??", so both are
// read as one wildcard byte: "48 8B 05 ?? ?? ?? ??" and "48 8B 05 ? ? ? ?" are
// the same pattern. "???" and longer runs are rejected.
func Compile(text string) (Pattern, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Pattern{}, &PatternCompileError{Pattern: text, Reason: "empty pattern"}
	}

	p := Pattern{
		bytes:  make([]byte, len(tokens)),
		mask:   make([]byte, len(tokens)),
		anchor: -1,
	}

	for i, tok := range tokens {
		if tok == "?" || tok == "??" {
			p.mask[i] = maskWildcard
			continue
		}

		if len(tok) != 2 {
			return Pattern{}, &PatternCompileError{Pattern: text, Token: tok, Index: i, Reason: "token is not two hex digits or a wildcard"}
		}

		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Pattern{}, &PatternCompileError{Pattern: text, Token: tok, Index: i, Reason: "invalid hex byte"}
		}

		p.bytes[i] = byte(v)
		p.mask[i] = maskExact
		if p.anchor < 0 {
			p.anchor = i
		}
	}

	if p.anchor < 0 {
		return Pattern{}, &PatternCompileError{Pattern: text, Reason: "pattern has no exact byte"}
	}

	return p, nil
}

// MustCompile is like Compile but panics on error. It is meant for package-level
// signature tables whose text is fixed at build time.
func MustCompile(text string) Pattern {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}

// FromAOB validates a backend AOB and turns it into a Pattern.
// A missing mask means every byte is exact.
func FromAOB(aob process.AOB) (Pattern, error) {
	if len(aob.Mask) == 0 {
		aob.Mask = bytes.Repeat([]byte{maskExact}, len(aob.Pattern))
	}
	if !aob.IsValid() {
		return Pattern{}, &PatternCompileError{Reason: fmt.Sprintf("mask length (%d) doesn't match pattern length (%d)", len(aob.Mask), len(aob.Pattern))}
	}
	if len(aob.Pattern) == 0 {
		return Pattern{}, &PatternCompileError{Reason: "empty pattern"}
	}

	p := Pattern{
		bytes:  make([]byte, len(aob.Pattern)),
		mask:   make([]byte, len(aob.Pattern)),
		anchor: -1,
	}
	for i := range aob.Pattern {
		if aob.Mask[i] == maskWildcard {
			continue
		}
		if aob.Mask[i] != maskExact {
			return Pattern{}, &PatternCompileError{Index: i, Reason: fmt.Sprintf("partial mask 0x%02x is not supported", aob.Mask[i])}
		}
		p.bytes[i] = aob.Pattern[i]
		p.mask[i] = maskExact
		if p.anchor < 0 {
			p.anchor = i
		}
	}
	if p.anchor < 0 {
		return Pattern{}, &PatternCompileError{Reason: "pattern has no exact byte"}
	}

	return p, nil
}

// AOB converts the pattern into the value/mask form the process backends scan with.
func (p Pattern) AOB() process.AOB {
	// bytes and mask always have the same length
	aob, _ := process.NewAOB(bytes.Clone(p.bytes), bytes.Clone(p.mask))
	return aob
}

// Len is the number of bytes the pattern spans.
func (p Pattern) Len() int {
	return len(p.bytes)
}

// IsWildcard reports whether position i matches any byte.
func (p Pattern) IsWildcard(i int) bool {
	return p.mask[i] == maskWildcard
}

// Byte returns the exact byte at position i (zero for wildcards).
func (p Pattern) Byte(i int) byte {
	return p.bytes[i]
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i := range p.bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.mask[i] == maskWildcard {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", p.bytes[i])
		}
	}
	return sb.String()
}

// matchAt reports whether the pattern matches data starting at i. The caller
// guarantees i+len(p) <= len(data).
func (p Pattern) matchAt(data []byte, i int) bool {
	for j, m := range p.mask {
		if m == maskExact && data[i+j] != p.bytes[j] {
			return false
		}
	}
	return true
}
