//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const createNewConsole = 0x00000010

var supportedStrategies = []Strategy{StrategyConsole, StrategyProcessGroup}

// applyStrategy configures cmd for a detached spawn. Windows process groups
// cannot be signalled as a unit, so it never reports a group leader.
func applyStrategy(cmd *exec.Cmd, strategy Strategy) bool {
	switch strategy {
	case StrategyConsole:
		cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewConsole}
	case StrategyProcessGroup:
		cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
	}
	return false
}
