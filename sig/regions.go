package sig

import (
	"errors"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"memscope/process"
	"memscope/process/memory_map"
)

// ScanRegions searches every readable region for p, reading at most maxdop
// regions at a time. Regions that cannot be read are skipped. Results are sorted.
func ScanRegions(r process.MemoryReader, regions []memory_map.MemoryMapItem, p Pattern, maxdop uint) ([]process.ProcessMemoryAddress, error) {
	if p.Len() == 0 {
		return nil, &PatternCompileError{Reason: "empty pattern"}
	}

	if maxdop == 0 {
		maxdop = 1
	}
	if n := uint(runtime.NumCPU()); maxdop > n {
		maxdop = n
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []process.ProcessMemoryAddress
	)
	g.SetLimit(int(maxdop))

	for _, region := range regions {
		if !region.IsReadable() || region.Size < uint(p.Len()) {
			continue
		}

		g.Go(func() error {
			base := process.ProcessMemoryAddress(region.Address)
			data, err := r.ReadMemory(base, process.ProcessMemorySize(region.Size))
			if err != nil {
				// regions can disappear or be protected between the map read and the scan
				return nil
			}

			matches := FindAll(data, base, p)
			if len(matches) == 0 {
				return nil
			}

			mu.Lock()
			for _, m := range matches {
				results = append(results, m.Address)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(results)
	return results, nil
}

// ScanRegionsFirst returns the lowest matching address.
func ScanRegionsFirst(r process.MemoryReader, regions []memory_map.MemoryMapItem, p Pattern, maxdop uint) (process.ProcessMemoryAddress, error) {
	results, err := ScanRegions(r, regions, p, maxdop)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, &PatternNotFoundError{Module: "process memory", Pattern: p}
	}
	return results[0], nil
}

var errNoRegions = errors.New("no regions to scan")

// ScanAOB is the entry point used by process backends that receive a raw AOB.
func ScanAOB(r process.MemoryReader, regions []memory_map.MemoryMapItem, aob process.AOB, maxdop uint) ([]process.ProcessMemoryAddress, error) {
	if len(regions) == 0 {
		return nil, errNoRegions
	}
	p, err := FromAOB(aob)
	if err != nil {
		return nil, err
	}
	return ScanRegions(r, regions, p, maxdop)
}
