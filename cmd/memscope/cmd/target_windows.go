//go:build windows

package cmd

import (
	"memscope/process"
	"memscope/process_windows"
)

func openProcess(pid process.ProcessID) (process.Process, error) {
	return process_windows.NewWithPID(pid)
}

func findProcess(name string) (process.ProcessID, error) {
	return process_windows.FindProcess(name)
}
