//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

var supportedStrategies = []Strategy{StrategySession, StrategyProcessGroup}

// applyStrategy configures cmd for a detached spawn and reports whether the
// child leads its own process group, which lets termination signal the
// whole tree (wrapper plus the worker it forks).
func applyStrategy(cmd *exec.Cmd, strategy Strategy) bool {
	switch strategy {
	case StrategySession:
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		return true
	case StrategyProcessGroup:
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		return true
	}
	return false
}
