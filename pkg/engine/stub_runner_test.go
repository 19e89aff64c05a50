package engine

import (
	"context"
	"io"
	"strings"

	"github.com/core-tools/hsu-stack/pkg/errors"
)

type recordedCommand struct {
	Args  []string
	Dir   string
	Stdin string
}

// stubRunner answers commands by prefix and records every call.
type stubRunner struct {
	calls     []recordedCommand
	responses map[string]Result
	failures  map[string]bool
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		responses: make(map[string]Result),
		failures:  make(map[string]bool),
	}
}

func (s *stubRunner) Run(_ context.Context, cmd Command) (Result, error) {
	call := recordedCommand{Args: cmd.Args, Dir: cmd.Dir}
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		call.Stdin = string(data)
	}
	s.calls = append(s.calls, call)

	line := strings.Join(cmd.Args, " ")
	for prefix := range s.failures {
		if strings.HasPrefix(line, prefix) {
			return Result{ExitCode: 1}, errors.NewProcessError("stub failure: "+line, nil)
		}
	}
	for prefix, result := range s.responses {
		if strings.HasPrefix(line, prefix) {
			return result, nil
		}
	}
	return Result{}, nil
}

func (s *stubRunner) lines() []string {
	var out []string
	for _, c := range s.calls {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}
