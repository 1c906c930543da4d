//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// alive reports whether pid names a live process. FindProcess opens a
// handle on Windows, so it fails for processes that have exited.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// terminate kills the process; Windows has no SIGTERM delivery.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
