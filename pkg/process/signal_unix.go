//go:build !windows

package process

import (
	"errors"
	"syscall"
)

func signalGraceful(h Handle) error {
	return signalHandle(h, syscall.SIGTERM)
}

func signalForceful(h Handle) error {
	return signalHandle(h, syscall.SIGKILL)
}

// signalHandle signals the process group when there is one, and the target
// PID separately when it was resolved to a process outside the group
// leader. It fails with errProcessGone only if every target is gone.
func signalHandle(h Handle, sig syscall.Signal) error {
	targets := []int{h.PID}
	if h.PGID > 0 {
		targets = []int{-h.PGID}
		if h.PID != h.PGID {
			targets = append(targets, h.PID)
		}
	}

	var lastErr error
	delivered := false
	gone := 0
	for _, target := range targets {
		err := syscall.Kill(target, sig)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, syscall.ESRCH):
			gone++
		default:
			lastErr = err
		}
	}

	if delivered {
		return nil
	}
	if gone == len(targets) {
		return errProcessGone
	}
	return lastErr
}

// groupAlive reports whether any process of group pgid exists.
func groupAlive(pgid int) bool {
	err := syscall.Kill(-pgid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
