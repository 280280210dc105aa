package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string `json:",omitempty"` // Backing file, empty for anonymous regions
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return len(mmItem.Perms) > 2 && mmItem.Perms[2] == 'x'
}

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]MemoryMapItem, error)

	// IsReadablePerms checks if a memory region has read permissions
	IsReadablePerms(perms string) bool
}

// ParseMaps parses the /proc/[pid]/maps text format.
func ParseMaps(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil {
			continue
		}

		item := MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
		}

		// address perms offset dev inode [pathname]; pathnames may contain spaces
		if len(fields) > 5 {
			item.Path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return memoryMap, nil
}

// Sort orders regions by start address, which IsValidAddress2 requires.
func Sort(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// IsValidAddress2 returns the region containing addr using binary search.
// memoryMap must be sorted by address.
func IsValidAddress2(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].Address+uint64(memoryMap[i].Size) > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// Image is one file-backed image reconstructed from the regions that map it.
type Image struct {
	Name string
	Path string
	Base uint64
	Size uint
}

// Images groups file-backed regions by path. Each image spans from its lowest
// to its highest mapped byte, in order of first appearance.
func Images(memoryMap []MemoryMapItem) []Image {
	index := map[string]int{}
	var images []Image

	for _, item := range memoryMap {
		if item.Path == "" || strings.HasPrefix(item.Path, "[") {
			continue
		}

		i, ok := index[item.Path]
		if !ok {
			index[item.Path] = len(images)
			images = append(images, Image{
				Name: baseName(item.Path),
				Path: item.Path,
				Base: item.Address,
				Size: item.Size,
			})
			continue
		}

		img := &images[i]
		end := max(img.Base+uint64(img.Size), item.End())
		img.Base = min(img.Base, item.Address)
		img.Size = uint(end - img.Base)
	}

	return images
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
