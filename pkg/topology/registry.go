package topology

import (
	"fmt"
	"path/filepath"

	"github.com/core-tools/hsu-stack/pkg/errors"
)

// Config is the declarative topology: one ordered unit list per tier.
type Config struct {
	Infrastructure []Unit `yaml:"infrastructure"`
	Backend        []Unit `yaml:"backend"`
	Gateway        []Unit `yaml:"gateway"`
}

// IsEmpty reports whether no unit is declared at all.
func (c Config) IsEmpty() bool {
	return len(c.Infrastructure) == 0 && len(c.Backend) == 0 && len(c.Gateway) == 0
}

func (c Config) tier(t Tier) []Unit {
	switch t {
	case TierInfrastructure:
		return c.Infrastructure
	case TierBackend:
		return c.Backend
	case TierGateway:
		return c.Gateway
	}
	return nil
}

// Registry is the static catalog of units. It has no side effects and is
// never mutated after construction.
type Registry struct {
	tiers  map[Tier][]Unit
	byName map[string]Unit
}

// NewRegistry validates config and builds a registry. Relative working
// directories are resolved against rootDir.
func NewRegistry(config Config, rootDir string) (*Registry, error) {
	r := &Registry{
		tiers:  make(map[Tier][]Unit),
		byName: make(map[string]Unit),
	}

	for _, tier := range startupOrder {
		for i, unit := range config.tier(tier) {
			unit = unit.clone()
			unit.Tier = tier
			if unit.Resolve == "" {
				unit.Resolve = ResolveNone
			}
			if unit.WorkingDirectory == "" {
				unit.WorkingDirectory = rootDir
			} else if !filepath.IsAbs(unit.WorkingDirectory) && rootDir != "" {
				unit.WorkingDirectory = filepath.Join(rootDir, unit.WorkingDirectory)
			}

			if err := ValidateUnit(unit); err != nil {
				return nil, errors.NewValidationError(
					fmt.Sprintf("invalid unit at %s[%d]", tier, i), err,
				).WithContext("unit", unit.Name)
			}
			if _, exists := r.byName[unit.Name]; exists {
				return nil, errors.NewConflictError("duplicate unit name", nil).WithContext("unit", unit.Name)
			}

			r.byName[unit.Name] = unit
			r.tiers[tier] = append(r.tiers[tier], unit)
		}
	}

	return r, nil
}

// Units returns the ordered units of a tier. An unknown tier is a
// programming error.
func (r *Registry) Units(tier Tier) []Unit {
	if !tier.Valid() {
		panic(fmt.Sprintf("topology: unknown tier %q", tier))
	}
	units := make([]Unit, 0, len(r.tiers[tier]))
	for _, unit := range r.tiers[tier] {
		units = append(units, unit.clone())
	}
	return units
}

// All returns every unit in startup order.
func (r *Registry) All() []Unit {
	var units []Unit
	for _, tier := range startupOrder {
		units = append(units, r.Units(tier)...)
	}
	return units
}

// Unit looks up a unit by name.
func (r *Registry) Unit(name string) (Unit, bool) {
	unit, ok := r.byName[name]
	if !ok {
		return Unit{}, false
	}
	return unit.clone(), true
}

// Len returns the number of units across all tiers.
func (r *Registry) Len() int {
	return len(r.byName)
}
