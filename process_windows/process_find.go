//go:build windows

package process_windows

import (
	"fmt"
	"sort"
	"strings"
	"unsafe"

	"memscope/process"

	"golang.org/x/sys/windows"
)

// WindowsProcessFinder implements process.ProcessFinder with Toolhelp32
// process snapshots.
type WindowsProcessFinder struct{}

func NewProcessFinder() process.ProcessFinder {
	return &WindowsProcessFinder{}
}

// FindProcess returns the lowest PID whose image name matches.
func FindProcess(name string) (process.ProcessID, error) {
	processes, err := NewProcessFinder().FindProcessByName(name)
	if err != nil {
		return 0, err
	}
	if len(processes) == 0 {
		return 0, fmt.Errorf("no process found with name '%s'", name)
	}
	return processes[0].PID, nil
}

func (f *WindowsProcessFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	all, err := listProcesses()
	if err != nil {
		return nil, err
	}
	for _, info := range all {
		if info.PID == pid {
			return &info, nil
		}
	}
	return nil, fmt.Errorf("process with PID %d does not exist", pid)
}

// FindProcessByName compares image names case-insensitively.
func (f *WindowsProcessFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	all, err := listProcesses()
	if err != nil {
		return nil, err
	}

	var results []process.ProcessInfo
	for _, info := range all {
		if strings.EqualFold(info.Name, name) {
			results = append(results, info)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})
	return results, nil
}

func listProcesses() ([]process.ProcessInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var out []process.ProcessInfo
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		out = append(out, process.ProcessInfo{
			PID:  process.ProcessID(entry.ProcessID),
			PPID: process.ProcessID(entry.ParentProcessID),
			Name: windows.UTF16ToString(entry.ExeFile[:]),
		})
	}
	if err != windows.ERROR_NO_MORE_FILES {
		return nil, fmt.Errorf("Process32Next: %w", err)
	}
	return out, nil
}
