package processstate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessRunning_Self(t *testing.T) {
	running, err := IsProcessRunning(os.Getpid())
	require.NoError(t, err)
	assert.True(t, running)
}

func TestIsProcessRunning_InvalidPID(t *testing.T) {
	running, err := IsProcessRunning(0)
	assert.Error(t, err)
	assert.False(t, running)

	running, err = IsProcessRunning(-5)
	assert.Error(t, err)
	assert.False(t, running)
}
