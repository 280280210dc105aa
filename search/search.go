// Package search probes foreign structures for a known value and reports the
// pointer paths that lead to it. It is used to rediscover layout offsets after
// a host update moves them.
package search

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"memscope/pod"
	"memscope/process"
)

var ErrNoTarget = errors.New("no search target specified")

// Searcher holds configuration for the search
type Searcher struct {
	MaxStructSize uint
	MaxDepth      int
	MinAlignment  uint
	MaxResults    int
	SearchFor     func([]byte) bool

	err error
}

// Option is a function that configures a Searcher
type Option func(*Searcher)

func WithMaxStructSize(size uint) Option {
	return func(s *Searcher) {
		s.MaxStructSize = size
	}
}

func WithMaxDepth(depth int) Option {
	return func(s *Searcher) {
		s.MaxDepth = depth
	}
}

func WithMinAlignment(align uint) Option {
	return func(s *Searcher) {
		if align > 0 {
			s.MinAlignment = align
		}
	}
}

func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		s.MaxResults = n
	}
}

// WithValue searches for the in-memory bytes of val. T must be plain data.
func WithValue[T any](val T) Option {
	return func(s *Searcher) {
		if err := pod.Check[T](); err != nil {
			s.err = err
			return
		}
		want := bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(&val)), int(unsafe.Sizeof(val))))
		s.SearchFor = func(data []byte) bool {
			return bytes.HasPrefix(data, want)
		}
	}
}

// WithString searches for str stored inline and NUL terminated.
func WithString(str string) Option {
	return func(s *Searcher) {
		if str == "" {
			s.err = fmt.Errorf("empty search string")
			return
		}
		want := append([]byte(str), 0)
		s.SearchFor = func(data []byte) bool {
			return bytes.HasPrefix(data, want)
		}
	}
}

// SearchResult is one path from the base to a match, in the form
// process.ReadPath takes: every offset but the last is dereferenced.
type SearchResult struct {
	Path []process.ProcessMemorySize
}

func (r SearchResult) String() string {
	parts := make([]string, len(r.Path))
	for i, off := range r.Path {
		parts[i] = fmt.Sprintf("+0x%x", uint(off))
	}
	return "[base]" + strings.Join(parts, " -> ")
}

// Depth is the number of pointers followed.
func (r SearchResult) Depth() int {
	return len(r.Path) - 1
}

// Search walks the structure at base, following every plausible pointer up
// to MaxDepth, and returns each path at which the target appears.
func Search(r process.MemoryReader, base process.ProcessMemoryAddress, options ...Option) ([]SearchResult, error) {
	s := &Searcher{
		MaxStructSize: 256,
		MaxDepth:      3,
		MinAlignment:  4,
		MaxResults:    256,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.err != nil {
		return nil, s.err
	}
	if s.SearchFor == nil {
		return nil, ErrNoTarget
	}

	type node struct {
		addr process.ProcessMemoryAddress
		path []process.ProcessMemorySize
	}

	// breadth first, so the shortest path to each structure is the one reported
	var results []SearchResult
	visited := map[process.ProcessMemoryAddress]bool{base: true}
	level := []node{{addr: base}}

	for depth := 0; len(level) > 0 && !s.full(results); depth++ {
		var next []node
		for _, n := range level {
			data := s.read(r, n.addr)

			for offset := uint(0); offset+s.MinAlignment <= uint(len(data)); offset += s.MinAlignment {
				if s.full(results) {
					break
				}

				if s.SearchFor(data[offset:]) {
					results = append(results, SearchResult{Path: extend(n.path, offset)})
				}

				if offset%process.PointerSize != 0 || depth >= s.MaxDepth || offset+process.PointerSize > uint(len(data)) {
					continue
				}

				ptr := process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[offset:]))
				if ptr != 0 && !visited[ptr] && r.IsValidAddress(ptr) {
					visited[ptr] = true
					next = append(next, node{addr: ptr, path: extend(n.path, offset)})
				}
			}
		}
		level = next
	}

	return results, nil
}

func (s *Searcher) full(results []SearchResult) bool {
	return s.MaxResults > 0 && len(results) >= s.MaxResults
}

// read fetches MaxStructSize bytes at addr, falling back to smaller reads for
// objects that sit near the end of a mapping.
func (s *Searcher) read(r process.MemoryReader, addr process.ProcessMemoryAddress) []byte {
	for size := s.MaxStructSize; size >= process.PointerSize; size /= 2 {
		if data, err := r.ReadMemory(addr, process.ProcessMemorySize(size)); err == nil {
			return data
		}
	}
	return nil
}

func extend(path []process.ProcessMemorySize, offset uint) []process.ProcessMemorySize {
	out := make([]process.ProcessMemorySize, len(path), len(path)+1)
	copy(out, path)
	return append(out, process.ProcessMemorySize(offset))
}
