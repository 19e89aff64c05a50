//go:build windows

package process

import (
	"errors"
	"os"
)

// Windows has no SIGTERM for detached console processes; termination goes
// straight to the forceful step.
func signalGraceful(h Handle) error {
	return errGracefulUnsupported
}

func signalForceful(h Handle) error {
	proc := h.process
	if proc == nil {
		var err error
		proc, err = os.FindProcess(h.PID)
		if err != nil {
			return errProcessGone
		}
	}
	if err := proc.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return errProcessGone
		}
		return err
	}
	return nil
}

// Windows spawns carry no process group to probe.
func groupAlive(int) bool {
	return false
}
