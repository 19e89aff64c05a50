//go:build !windows

package processstate

import (
	"errors"
	"fmt"
	"syscall"
)

// IsProcessRunning probes pid with signal 0. A process owned by another
// user (EPERM) counts as running. A zombie also counts as running until its
// parent reaps it.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID: %d", pid)
	}

	err := syscall.Kill(pid, syscall.Signal(0))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.ESRCH):
		return false, nil
	case errors.Is(err, syscall.EPERM):
		return true, nil
	default:
		return false, err
	}
}
