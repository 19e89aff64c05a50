package topology

import (
	"github.com/core-tools/hsu-stack/pkg/errors"
)

// ValidateUnitName validates unit name format and constraints
func ValidateUnitName(name string) error {
	if name == "" {
		return errors.NewValidationError("unit name cannot be empty", nil)
	}

	if len(name) > 64 {
		return errors.NewValidationError("unit name cannot exceed 64 characters", nil)
	}

	for _, char := range name {
		if !isValidNameChar(char) {
			return errors.NewValidationError("unit name contains invalid characters: only letters, numbers, hyphens, dots and underscores are allowed", nil).WithContext("unit", name)
		}
	}

	return nil
}

// ValidateUnit validates a single unit definition.
func ValidateUnit(unit Unit) error {
	if err := ValidateUnitName(unit.Name); err != nil {
		return err
	}

	if !unit.Tier.Valid() {
		return errors.NewValidationError("invalid tier: "+string(unit.Tier), nil).WithContext("unit", unit.Name)
	}

	if len(unit.Command) == 0 || unit.Command[0] == "" {
		return errors.NewValidationError("command is required", nil).WithContext("unit", unit.Name)
	}

	switch unit.LaunchMode {
	case LaunchModeForeground, LaunchModeBackground:
	default:
		return errors.NewValidationError("invalid launch mode: "+string(unit.LaunchMode), nil).WithContext("unit", unit.Name)
	}

	if unit.ReadinessWait < 0 {
		return errors.NewValidationError("readiness wait cannot be negative", nil).WithContext("unit", unit.Name)
	}

	switch unit.Resolve {
	case ResolveNone, ResolveDescendant:
	default:
		return errors.NewValidationError("invalid resolve policy: "+string(unit.Resolve), nil).WithContext("unit", unit.Name)
	}

	if unit.Resolve == ResolveDescendant && !unit.IsBackground() {
		return errors.NewValidationError("handle resolution only applies to background units", nil).WithContext("unit", unit.Name)
	}

	for _, env := range unit.Environment {
		if !containsEquals(env) {
			return errors.NewValidationError("invalid environment variable format: "+env, nil).WithContext("unit", unit.Name)
		}
	}

	return nil
}

func containsEquals(s string) bool {
	for _, c := range s {
		if c == '=' {
			return true
		}
	}
	return false
}

func isValidNameChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_' || char == '.'
}
