//go:build !windows

package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_CapturesAndEchoes(t *testing.T) {
	var console bytes.Buffer
	runner := NewExecRunner(&console, logging.NewNopLogger())

	result, err := runner.Run(context.Background(), Command{
		Args:  []string{"sh", "-c", "cat; echo done >&2"},
		Stdin: strings.NewReader("hello"),
		Echo:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Stdout)
	assert.Equal(t, "done\n", result.Stderr)
	assert.Contains(t, console.String(), "hello")
}

func TestExecRunner_ExitCode(t *testing.T) {
	runner := NewExecRunner(nil, logging.NewNopLogger())

	result, err := runner.Run(context.Background(), Command{Args: []string{"sh", "-c", "echo nope >&2; exit 4"}})
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
	assert.Equal(t, 4, result.ExitCode)

	var domainErr *errors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "nope", domainErr.Context["stderr"])
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	runner := NewExecRunner(nil, logging.NewNopLogger())
	_, err := runner.Run(context.Background(), Command{})
	assert.True(t, errors.IsValidationError(err))
}
