// Package engine drives the external tools the orchestrator depends on:
// the container engine CLI and the Kubernetes cluster.
package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"strings"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
)

// Command is one external tool invocation. Args never pass through a shell.
type Command struct {
	Args  []string
	Dir   string
	Stdin io.Reader
	// Echo copies output to the runner's console while it is captured.
	Echo bool
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. Tests substitute a recording stub.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	console io.Writer
	logger  logging.Logger
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner returns a runner echoing to console, which may be nil.
func NewExecRunner(console io.Writer, logger logging.Logger) *ExecRunner {
	return &ExecRunner{
		console: console,
		logger:  logger,
	}
}

func (r *ExecRunner) Run(ctx context.Context, command Command) (Result, error) {
	if len(command.Args) == 0 || command.Args[0] == "" {
		return Result{}, errors.NewValidationError("empty command", nil)
	}

	r.logger.Debugf("Running command: %s, dir: '%s'", command, command.Dir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command.Args[0], command.Args[1:]...)
	cmd.Dir = command.Dir
	cmd.Stdin = command.Stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if command.Echo && r.console != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.console)
		cmd.Stderr = io.MultiWriter(&stderr, r.console)
	}

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	processErr := errors.NewProcessError("command failed: "+command.String(), err)
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		processErr.WithContext("exit_code", result.ExitCode)
	} else {
		result.ExitCode = -1
	}
	if msg := strings.TrimSpace(result.Stderr); msg != "" {
		processErr.WithContext("stderr", msg)
	}
	return result, processErr
}
