package processfile

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
)

// DefaultAppName names the per-user log subdirectory.
const DefaultAppName = "hsu-stack"

// LogSinkConfig holds where background unit output is written.
type LogSinkConfig struct {
	// Directory for unit log files. If empty, an OS-appropriate per-user
	// directory is used.
	Directory string

	AppName string
}

// LogSinkManager generates and opens per-unit log files. Each background
// unit writes stdout and stderr to <directory>/<unit>.log.
type LogSinkManager struct {
	config LogSinkConfig
	logger logging.Logger
}

func NewLogSinkManager(config LogSinkConfig, logger logging.Logger) *LogSinkManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	return &LogSinkManager{
		config: config,
		logger: logger,
	}
}

// Directory returns the resolved log directory.
func (m *LogSinkManager) Directory() string {
	if m.config.Directory != "" {
		return m.config.Directory
	}
	return filepath.Join(userLogDirectory(), m.config.AppName)
}

// UnitLogFilePath returns the log file path for a unit.
func (m *LogSinkManager) UnitLogFilePath(unitName string) string {
	return filepath.Join(m.Directory(), unitName+".log")
}

// OpenUnitLog creates the log directory if needed and opens the unit's log
// file truncated, like a shell `> file 2>&1` redirection.
func (m *LogSinkManager) OpenUnitLog(unitName string) (*os.File, error) {
	path := m.UnitLogFilePath(unitName)
	if err := ensureDirectory(filepath.Dir(path)); err != nil {
		m.logger.Errorf("Log directory validation failed, unit: %s, path: %s, error: %v", unitName, path, err)
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.NewIOError("failed to open unit log file", err).WithContext("unit", unitName).WithContext("log_file", path)
	}

	m.logger.Debugf("Opened unit log file, unit: %s, path: %s", unitName, path)
	return file, nil
}

func ensureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.NewIOError("failed to access log directory", err).WithContext("directory", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOError("failed to create log directory", err).WithContext("directory", dir)
		}
		return nil
	}
	if !info.IsDir() {
		return errors.NewValidationError("log path is not a directory", nil).WithContext("path", dir)
	}
	return nil
}

// userLogDirectory returns the per-user log root for the current OS.
func userLogDirectory() string {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
				localAppData = filepath.Join(userProfile, "AppData", "Local")
			} else {
				return filepath.Join(os.TempDir(), "logs")
			}
		}
		return filepath.Join(localAppData, "logs")

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "logs")
		}
		return filepath.Join(homeDir, "Library", "Logs")

	default:
		if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
			return stateHome
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "logs")
		}
		return filepath.Join(homeDir, ".local", "state")
	}
}
