package process

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/processstate"
)

// TerminationOutcome is what actually happened to a process on shutdown.
type TerminationOutcome string

const (
	OutcomeAlreadyExited TerminationOutcome = "already-exited"
	OutcomeGraceful      TerminationOutcome = "graceful"
	OutcomeForced        TerminationOutcome = "forced"
	OutcomeFailed        TerminationOutcome = "failed"
)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultKillGrace       = 2 * time.Second
	pollInterval           = 100 * time.Millisecond
)

var (
	errProcessGone         = stderrors.New("process is gone")
	errGracefulUnsupported = stderrors.New("graceful termination not supported on this platform")
)

// terminate runs the signal, wait, kill escalation against h. A cancelled
// ctx cuts the graceful wait short and escalates immediately.
func terminate(ctx context.Context, h Handle, timeout, killGrace time.Duration, logger logging.Logger) (TerminationOutcome, error) {
	if h.IsForeground() {
		return OutcomeFailed, errors.NewValidationError("foreground handles cannot be terminated", nil)
	}
	if timeout <= 0 {
		timeout = defaultGracefulTimeout
	}
	if killGrace <= 0 {
		killGrace = defaultKillGrace
	}

	if !alive(h) {
		logger.Infof("Process already exited, %s", h)
		return OutcomeAlreadyExited, nil
	}

	logger.Infof("Sending termination signal, %s, timeout: %v", h, timeout)
	err := signalGraceful(h)
	switch {
	case err == nil:
		if waitExit(ctx, h, timeout) {
			logger.Infof("Process terminated gracefully, %s", h)
			return OutcomeGraceful, nil
		}
		if ctx.Err() != nil {
			logger.Warnf("Context cancelled during graceful termination, %s, forcing termination", h)
		} else {
			logger.Warnf("Process did not terminate within %v, %s, forcing termination", timeout, h)
		}
	case stderrors.Is(err, errProcessGone):
		logger.Infof("Process exited before termination signal, %s", h)
		return OutcomeAlreadyExited, nil
	case stderrors.Is(err, errGracefulUnsupported):
		logger.Debugf("Graceful termination unsupported, %s", h)
	default:
		logger.Warnf("Failed to send termination signal, %s, error: %v", h, err)
	}

	logger.Warnf("Force killing process, %s", h)
	if err := signalForceful(h); err != nil {
		if stderrors.Is(err, errProcessGone) {
			return OutcomeGraceful, nil
		}
		return OutcomeFailed, errors.NewTerminationError("failed to kill process", err).WithContext("pid", h.PID)
	}

	// Wait for the kill even if ctx is already done.
	if waitExit(context.Background(), h, killGrace) {
		logger.Infof("Process force terminated, %s", h)
		return OutcomeForced, nil
	}

	return OutcomeFailed, errors.NewTerminationError("process did not terminate even after force termination", nil).
		WithContext("pid", h.PID).
		WithContext("kill_grace", killGrace.String())
}

// alive reports whether the target process or any member of its process
// group still runs. A resolved target may exit while the wrapper that
// spawned it keeps the group alive.
func alive(h Handle) bool {
	if targetAlive(h) {
		return true
	}
	return h.PGID > 0 && groupAlive(h.PGID)
}

func targetAlive(h Handle) bool {
	if h.Native() {
		select {
		case <-h.done:
			return false
		default:
			return true
		}
	}
	running, err := processstate.IsProcessRunning(h.PID)
	if err != nil {
		return true
	}
	return running
}

// waitExit reports whether h exited within timeout.
func waitExit(ctx context.Context, h Handle, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if h.Native() && h.PGID == 0 {
		select {
		case <-h.done:
			return true
		case <-timer.C:
			return false
		case <-ctx.Done():
			return !alive(h)
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if !alive(h) {
			return true
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return !alive(h)
		case <-ctx.Done():
			return !alive(h)
		}
	}
}
