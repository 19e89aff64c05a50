package processfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogSinkManager_Defaults(t *testing.T) {
	manager := NewLogSinkManager(LogSinkConfig{}, logging.NewNopLogger())

	assert.Equal(t, DefaultAppName, manager.config.AppName)
	assert.Equal(t, DefaultAppName, filepath.Base(manager.Directory()))
	assert.Equal(t, "user-srv.log", filepath.Base(manager.UnitLogFilePath("user-srv")))
}

func TestOpenUnitLog_CreatesDirectoryAndTruncates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	manager := NewLogSinkManager(LogSinkConfig{Directory: dir}, logging.NewNopLogger())

	file, err := manager.OpenUnitLog("goods-srv")
	require.NoError(t, err)
	_, err = file.WriteString("first run output\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	file, err = manager.OpenUnitLog("goods-srv")
	require.NoError(t, err)
	_, err = file.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	data, err := os.ReadFile(filepath.Join(dir, "goods-srv.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}

func TestOpenUnitLog_DirectoryIsAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	manager := NewLogSinkManager(LogSinkConfig{Directory: path}, logging.NewNopLogger())
	_, err := manager.OpenUnitLog("user-web")

	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
