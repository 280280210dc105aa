//go:build linux

package process_linux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"memscope/process"
)

// LinuxProcessFinder implements process.ProcessFinder over /proc.
type LinuxProcessFinder struct{}

func NewProcessFinder() process.ProcessFinder {
	return &LinuxProcessFinder{}
}

// FindProcess returns the lowest PID whose name matches.
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

func (f *LinuxProcessFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("process with PID %d does not exist", pid)
	}

	return getProcessInfo(pid)
}

// FindProcessByName matches name against comm and the executable's base
// name, like pidof. Wine processes are found by their .exe name. Results
// are ordered by PID.
func (f *LinuxProcessFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("empty process name")
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc: %w", err)
	}

	self := os.Getpid()
	var results []process.ProcessInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 || pid == self {
			continue
		}

		info, err := getProcessInfo(process.ProcessID(pid))
		if err != nil {
			// process may have exited while we were reading
			continue
		}

		if info.Name == name || (info.Exe != "" && filepath.Base(info.Exe) == name) {
			results = append(results, *info)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})
	return results, nil
}

func getProcessInfo(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)

	nameBytes, err := os.ReadFile(filepath.Join(procPath, "comm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}

	// kernel threads and zombies have no exe link
	exe, _ := os.Readlink(filepath.Join(procPath, "exe"))

	info := &process.ProcessInfo{
		PID:  pid,
		Name: strings.TrimSpace(string(nameBytes)),
		Exe:  exe,
	}

	if f, err := os.Open(filepath.Join(procPath, "status")); err == nil {
		info.PPID = parseStatusPPid(f)
		f.Close()
	}

	return info, nil
}

// parseStatusPPid pulls the PPid line out of /proc/<pid>/status.
func parseStatusPPid(r io.Reader) process.ProcessID {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "PPid" {
			continue
		}
		if ppid, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return process.ProcessID(ppid)
		}
		break
	}
	return 0
}
