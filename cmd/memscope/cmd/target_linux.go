//go:build linux

package cmd

import (
	"memscope/process"
	"memscope/process_linux"
)

func openProcess(pid process.ProcessID) (process.Process, error) {
	return process_linux.NewWithPID(pid)
}

func findProcess(name string) (process.ProcessID, error) {
	return process_linux.FindProcess(name)
}
