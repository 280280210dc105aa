package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memscope/process"
	"memscope/process/memory_map"
)

// Snapshot is an offline target: a set of captured regions plus the module table
// recorded alongside them. It is loaded from a directory and never written by memscope.
//
// Layout of the directory:
//
//	metadata.json              {"pid": 1234, "name": "game", "modules": [...]}
//	process_memory_map.json    [{"Address": ..., "Size": ..., "Perms": "r-xp", "Path": ...}]
//	blob_0x<addr>_<size>.bin   raw bytes of each captured region
type Snapshot struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64]*ProcessBlob // region address -> data

	modules []process.ModuleInfo
}

var _ process.Target = (*Snapshot)(nil)

// NewSnapshot creates an empty snapshot; regions are added with AddRegion or Load.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Blobs: make(map[uint64]*ProcessBlob),
	}
}

// LoadSnapshot reads a snapshot directory.
func LoadSnapshot(dirname string) (*Snapshot, error) {
	s := NewSnapshot()
	if err := s.Load(dirname); err != nil {
		return nil, err
	}
	return s, nil
}

// AddRegion registers captured bytes as a readable region.
func (s *Snapshot) AddRegion(addr process.ProcessMemoryAddress, data []byte, perms, path string) {
	s.MemoryMap = append(s.MemoryMap, memory_map.MemoryMapItem{
		Address: uint64(addr),
		Size:    uint(len(data)),
		Perms:   perms,
		Path:    path,
	})
	memory_map.Sort(s.MemoryMap)
	s.Blobs[uint64(addr)] = NewProcessBlob(addr, data)
}

// SetModules overrides the module table derived from region paths.
func (s *Snapshot) SetModules(modules []process.ModuleInfo) {
	s.modules = modules
}

func (s *Snapshot) Modules() ([]process.ModuleInfo, error) {
	if s.modules != nil {
		return s.modules, nil
	}

	var modules []process.ModuleInfo
	for _, img := range memory_map.Images(s.MemoryMap) {
		modules = append(modules, process.ModuleInfo{
			Name: img.Name,
			Base: process.ProcessMemoryAddress(img.Base),
			Size: process.ProcessMemorySize(img.Size),
			Path: img.Path,
		})
	}
	return modules, nil
}

func (s *Snapshot) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	result := make([]memory_map.MemoryMapItem, len(s.MemoryMap))
	copy(result, s.MemoryMap)
	return result, nil
}

func (s *Snapshot) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	region := memory_map.IsValidAddress2(uint64(addr), s.MemoryMap)
	if region == nil {
		return false
	}
	_, ok := s.Blobs[region.Address]
	return ok
}

func (s *Snapshot) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	region := memory_map.IsValidAddress2(uint64(addr), s.MemoryMap)
	if region == nil {
		return nil, fmt.Errorf("0x%x: %w", addr, process.ErrAddressNotMapped)
	}

	blob, ok := s.Blobs[region.Address]
	if !ok {
		return nil, fmt.Errorf("no data for region 0x%x: %w", region.Address, process.ErrAddressNotMapped)
	}

	data, err := blob.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}

	result := make([]byte, size)
	copy(result, data)
	return result, nil
}

type snapshotMetadata struct {
	PID     process.ProcessID    `json:"pid"`
	Name    string               `json:"name"`
	Modules []process.ModuleInfo `json:"modules,omitempty"`
}

// Load reads metadata, the memory map and every region blob present in dirname.
func (s *Snapshot) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, "metadata.json"))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata snapshotMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	s.PID = metadata.PID
	s.Name = metadata.Name
	s.modules = metadata.Modules

	mmBytes, err := os.ReadFile(filepath.Join(dirname, "process_memory_map.json"))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	var regions []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &regions); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	for _, region := range regions {
		filename := filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			// region was not captured (unreadable or too large)
			continue
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		s.Blobs[region.Address] = NewProcessBlob(process.ProcessMemoryAddress(region.Address), data)
	}

	s.MemoryMap = regions
	memory_map.Sort(s.MemoryMap)

	return nil
}
