package process

import (
	"runtime"

	"github.com/core-tools/hsu-stack/pkg/errors"
)

// Strategy selects how a background unit is detached from the
// orchestrator. Strategies are chosen by configuration, never by probing
// the environment at launch time.
type Strategy string

const (
	// StrategySession starts the unit in a new session (setsid) so it
	// survives the orchestrator's terminal. Unix only.
	StrategySession Strategy = "session"
	// StrategyProcessGroup starts the unit in its own process group.
	StrategyProcessGroup Strategy = "process-group"
	// StrategyConsole starts the unit in a new console window. Windows only.
	StrategyConsole Strategy = "console"
)

// DefaultStrategy returns the strategy used when none is configured.
func DefaultStrategy() Strategy {
	if runtime.GOOS == "windows" {
		return StrategyConsole
	}
	return StrategySession
}

// ValidateStrategy checks that s is known and supported on this platform.
func ValidateStrategy(s Strategy) error {
	for _, supported := range supportedStrategies {
		if s == supported {
			return nil
		}
	}
	switch s {
	case StrategySession, StrategyProcessGroup, StrategyConsole:
		return errors.NewValidationError("spawn strategy not supported on "+runtime.GOOS+": "+string(s), nil)
	}
	return errors.NewValidationError("unknown spawn strategy: "+string(s), nil)
}
