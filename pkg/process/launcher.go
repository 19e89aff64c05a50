package process

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/processfile"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// Launcher starts units and tears down what it started.
type Launcher interface {
	// Launch runs a foreground unit to completion or spawns a background
	// unit detached. Failures are launch errors.
	Launch(ctx context.Context, unit topology.Unit) (Handle, error)

	// Terminate stops a background handle: graceful signal, wait up to
	// timeout, then kill.
	Terminate(ctx context.Context, handle Handle, timeout time.Duration) (TerminationOutcome, error)
}

// LauncherConfig configures ExecLauncher.
type LauncherConfig struct {
	Strategy Strategy

	// LogDirectory receives <unit>.log for every background unit.
	LogDirectory string

	// Stdout and Stderr receive foreground command output.
	Stdout io.Writer
	Stderr io.Writer

	// KillGrace bounds the wait after a forceful kill.
	KillGrace time.Duration
}

// ExecLauncher launches units as operating system processes.
type ExecLauncher struct {
	config LauncherConfig
	sinks  *processfile.LogSinkManager
	logger logging.Logger
}

var _ Launcher = (*ExecLauncher)(nil)

func NewExecLauncher(config LauncherConfig, logger logging.Logger) (*ExecLauncher, error) {
	if config.Strategy == "" {
		config.Strategy = DefaultStrategy()
	}
	if err := ValidateStrategy(config.Strategy); err != nil {
		return nil, err
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}

	return &ExecLauncher{
		config: config,
		sinks:  processfile.NewLogSinkManager(processfile.LogSinkConfig{Directory: config.LogDirectory}, logger),
		logger: logger,
	}, nil
}

func (l *ExecLauncher) Launch(ctx context.Context, unit topology.Unit) (Handle, error) {
	if err := validateLaunch(unit); err != nil {
		l.logger.Errorf("Unit validation failed, unit: %s, error: %v", unit.Name, err)
		return Handle{}, errors.NewLaunchError("invalid unit", err).WithContext("unit", unit.Name)
	}

	if unit.IsBackground() {
		return l.launchBackground(unit)
	}
	return l.launchForeground(ctx, unit)
}

func (l *ExecLauncher) Terminate(ctx context.Context, handle Handle, timeout time.Duration) (TerminationOutcome, error) {
	return terminate(ctx, handle, timeout, l.config.KillGrace, l.logger)
}

func (l *ExecLauncher) launchForeground(ctx context.Context, unit topology.Unit) (Handle, error) {
	l.logger.Infof("Running foreground unit, unit: %s, command: %v, dir: '%s'", unit.Name, unit.Command, unit.WorkingDirectory)

	cmd := exec.CommandContext(ctx, unit.Command[0], unit.Command[1:]...)
	cmd.Dir = unit.WorkingDirectory
	cmd.Env = unitEnvironment(unit)
	cmd.Stdout = l.config.Stdout
	cmd.Stderr = l.config.Stderr

	if err := cmd.Run(); err != nil {
		launchErr := errors.NewLaunchError("foreground command failed", err).
			WithContext("unit", unit.Name).
			WithContext("command", unit.Command)
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			launchErr.WithContext("exit_code", exitErr.ExitCode())
		}
		return Handle{}, launchErr
	}

	l.logger.Infof("Foreground unit completed, unit: %s", unit.Name)
	return ForegroundHandle(), nil
}

// launchBackground spawns the unit detached. The spawn is deliberately not
// bound to a context: the unit must outlive the invocation that started it.
func (l *ExecLauncher) launchBackground(unit topology.Unit) (Handle, error) {
	logFile, err := l.sinks.OpenUnitLog(unit.Name)
	if err != nil {
		return Handle{}, errors.NewLaunchError("failed to open unit log", err).WithContext("unit", unit.Name)
	}
	// The child keeps its own copy of the descriptor.
	defer logFile.Close()

	cmd := exec.Command(unit.Command[0], unit.Command[1:]...)
	cmd.Dir = unit.WorkingDirectory
	cmd.Env = unitEnvironment(unit)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	groupLeader := applyStrategy(cmd, l.config.Strategy)

	l.logger.Infof("Spawning background unit, unit: %s, command: %v, dir: '%s', strategy: %s, log: %s",
		unit.Name, unit.Command, unit.WorkingDirectory, l.config.Strategy, logFile.Name())

	if err := cmd.Start(); err != nil {
		return Handle{}, errors.NewLaunchError("failed to start background unit", err).
			WithContext("unit", unit.Name).
			WithContext("command", unit.Command)
	}

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		l.logger.Debugf("Background unit exited, unit: %s, pid: %d, error: %v", unit.Name, cmd.Process.Pid, err)
		close(done)
	}()

	pgid := 0
	if groupLeader {
		pgid = cmd.Process.Pid
	}

	handle := NewBackgroundHandle(cmd.Process, pgid, logFile.Name(), done)
	l.logger.Infof("Background unit spawned, unit: %s, %s", unit.Name, handle)
	return handle, nil
}

func unitEnvironment(unit topology.Unit) []string {
	return append(os.Environ(), unit.Environment...)
}

func validateLaunch(unit topology.Unit) error {
	if len(unit.Command) == 0 || unit.Command[0] == "" {
		return errors.NewValidationError("command is required", nil)
	}
	if unit.WorkingDirectory != "" {
		info, err := os.Stat(unit.WorkingDirectory)
		if err != nil {
			return errors.NewValidationError("working directory not accessible: "+unit.WorkingDirectory, err)
		}
		if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+unit.WorkingDirectory, nil)
		}
	}
	return nil
}
