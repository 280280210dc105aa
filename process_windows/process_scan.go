//go:build windows

package process_windows

import (
	"fmt"

	"memscope/process"
	"memscope/sig"
)

func (p *WindowsProcess) Scan(aob process.AOB) ([]process.ProcessMemoryAddress, error) {
	return p.ScanParallel(aob, 1)
}

// ScanParallel searches every readable committed region with up to maxdop
// regions in flight.
func (p *WindowsProcess) ScanParallel(aob process.AOB, maxdop uint) ([]process.ProcessMemoryAddress, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	p.log.Infoln("Starting memory scan for pattern of length", len(aob.Pattern), "maxdop", maxdop)
	return sig.ScanAOB(p, mm, aob, maxdop)
}

func (p *WindowsProcess) ScanFirst(aob process.AOB) (process.ProcessMemoryAddress, error) {
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
