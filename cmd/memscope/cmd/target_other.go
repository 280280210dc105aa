//go:build !linux && !windows

package cmd

import (
	"fmt"
	"runtime"

	"memscope/process"
)

func openProcess(pid process.ProcessID) (process.Process, error) {
	return nil, fmt.Errorf("live processes are not supported on %s, use --from", runtime.GOOS)
}

func findProcess(name string) (process.ProcessID, error) {
	return 0, fmt.Errorf("live processes are not supported on %s, use --from", runtime.GOOS)
}
