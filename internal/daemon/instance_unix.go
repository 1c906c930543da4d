//go:build !windows

package daemon

import "syscall"

// alive uses signal 0, which checks for the process without signalling it.
func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
