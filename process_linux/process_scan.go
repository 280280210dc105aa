//go:build linux

package process_linux

import (
	"fmt"

	"memscope/process"
	"memscope/sig"
)

// Scan searches every readable region for aob, one region at a time.
func (p *LinuxProcess) Scan(aob process.AOB) ([]process.ProcessMemoryAddress, error) {
	return p.ScanParallel(aob, 1)
}

// ScanParallel searches every readable region for aob with up to maxdop
// regions in flight.
func (p *LinuxProcess) ScanParallel(aob process.AOB, maxdop uint) ([]process.ProcessMemoryAddress, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	p.log.Infoln("Starting memory scan for pattern of length", len(aob.Pattern), "maxdop", maxdop)
	results, err := sig.ScanAOB(p, mm, aob, maxdop)
	if err != nil {
		return nil, err
	}
	p.log.Infoln("Scan found", len(results), "matches")
	return results, nil
}

// ScanFirst returns the lowest address matching aob.
func (p *LinuxProcess) ScanFirst(aob process.AOB) (process.ProcessMemoryAddress, error) {
	pattern, err := sig.FromAOB(aob)
	if err != nil {
		return 0, err
	}
	mm, err := p.GetMemoryMap()
	if err != nil {
		return 0, fmt.Errorf("failed to get memory map: %w", err)
	}
	return sig.ScanRegionsFirst(p, mm, pattern, 1)
}
