package topology

import (
	"fmt"
	"strings"
	"time"

	"github.com/core-tools/hsu-stack/pkg/errors"
)

// Tier is a startup/shutdown phase grouping.
type Tier string

const (
	TierInfrastructure Tier = "infrastructure"
	TierBackend        Tier = "backend"
	TierGateway        Tier = "gateway"
)

var startupOrder = []Tier{TierInfrastructure, TierBackend, TierGateway}

// StartupOrder returns the tiers in startup order.
func StartupOrder() []Tier {
	return append([]Tier(nil), startupOrder...)
}

// ShutdownOrder returns the tiers in shutdown order.
func ShutdownOrder() []Tier {
	order := StartupOrder()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ParseTier accepts the canonical tier names and the short aliases used by
// the command line (infra, srv, api).
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "infrastructure", "infra":
		return TierInfrastructure, nil
	case "backend", "srv":
		return TierBackend, nil
	case "gateway", "api", "web":
		return TierGateway, nil
	default:
		return "", errors.NewValidationError("unknown tier: "+s, nil)
	}
}

func (t Tier) Valid() bool {
	switch t {
	case TierInfrastructure, TierBackend, TierGateway:
		return true
	}
	return false
}

// LaunchMode says whether the launcher blocks until the command exits.
type LaunchMode string

const (
	LaunchModeForeground LaunchMode = "foreground"
	LaunchModeBackground LaunchMode = "background"
)

// ResolvePolicy selects how the durable process of a background unit is found.
type ResolvePolicy string

const (
	// ResolveNone keeps the handle returned by the spawn.
	ResolveNone ResolvePolicy = "none"
	// ResolveDescendant looks for the long-lived worker among the
	// descendants of the spawned process, for wrappers such as `go run`.
	ResolveDescendant ResolvePolicy = "descendant"
)

// Unit is one named, independently launchable service. Units are built once
// by the Registry and handed out by value.
type Unit struct {
	Name             string        `yaml:"name"`
	Tier             Tier          `yaml:"-"`
	Command          []string      `yaml:"command"`
	WorkingDirectory string        `yaml:"working_directory,omitempty"`
	ReadinessWait    time.Duration `yaml:"readiness_wait,omitempty"`
	LaunchMode       LaunchMode    `yaml:"launch_mode"`
	Environment      []string      `yaml:"environment,omitempty"`

	// Container is matched as a substring against running container names
	// to decide whether an infrastructure unit is already up.
	Container string `yaml:"container,omitempty"`

	Resolve ResolvePolicy `yaml:"resolve,omitempty"`
	Match   string        `yaml:"match,omitempty"`
}

func (u Unit) IsBackground() bool {
	return u.LaunchMode == LaunchModeBackground
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s", u.Tier, u.Name)
}

func (u Unit) clone() Unit {
	c := u
	c.Command = append([]string(nil), u.Command...)
	c.Environment = append([]string(nil), u.Environment...)
	return c
}
