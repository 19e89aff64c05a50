package topology

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-stack/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Infrastructure: []Unit{
			{Name: "A", Command: []string{"true"}, LaunchMode: LaunchModeForeground, ReadinessWait: time.Second},
			{Name: "B", Command: []string{"true"}, LaunchMode: LaunchModeForeground, ReadinessWait: time.Second},
		},
		Backend: []Unit{
			{Name: "C", Command: []string{"sleep", "60"}, LaunchMode: LaunchModeBackground, WorkingDirectory: "svc/c"},
			{Name: "D", Command: []string{"sleep", "60"}, LaunchMode: LaunchModeBackground},
		},
		Gateway: []Unit{
			{Name: "E", Command: []string{"sleep", "60"}, LaunchMode: LaunchModeBackground},
		},
	}
}

func TestTierOrder(t *testing.T) {
	assert.Equal(t, []Tier{TierInfrastructure, TierBackend, TierGateway}, StartupOrder())
	assert.Equal(t, []Tier{TierGateway, TierBackend, TierInfrastructure}, ShutdownOrder())

	// callers cannot corrupt the package order
	order := StartupOrder()
	order[0] = TierGateway
	assert.Equal(t, TierInfrastructure, StartupOrder()[0])
}

func TestParseTier(t *testing.T) {
	tests := map[string]Tier{
		"infrastructure": TierInfrastructure,
		"infra":          TierInfrastructure,
		"Backend":        TierBackend,
		"srv":            TierBackend,
		"api":            TierGateway,
		"gateway":        TierGateway,
	}
	for input, expected := range tests {
		tier, err := ParseTier(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, tier, input)
	}

	_, err := ParseTier("frontend")
	assert.True(t, errors.IsValidationError(err))
}

func TestNewRegistry_OrderAndTiers(t *testing.T) {
	root := t.TempDir()
	registry, err := NewRegistry(testConfig(), root)
	require.NoError(t, err)

	names := func(units []Unit) []string {
		var out []string
		for _, u := range units {
			out = append(out, u.Name)
		}
		return out
	}

	assert.Equal(t, []string{"A", "B"}, names(registry.Units(TierInfrastructure)))
	assert.Equal(t, []string{"C", "D"}, names(registry.Units(TierBackend)))
	assert.Equal(t, []string{"E"}, names(registry.Units(TierGateway)))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, names(registry.All()))
	assert.Equal(t, 5, registry.Len())

	c, ok := registry.Unit("C")
	require.True(t, ok)
	assert.Equal(t, TierBackend, c.Tier)
	assert.Equal(t, filepath.Join(root, "svc/c"), c.WorkingDirectory)
	assert.Equal(t, ResolveNone, c.Resolve)

	d, _ := registry.Unit("D")
	assert.Equal(t, root, d.WorkingDirectory)

	_, ok = registry.Unit("Z")
	assert.False(t, ok)
}

func TestRegistry_UnitsAreCopies(t *testing.T) {
	registry, err := NewRegistry(testConfig(), "")
	require.NoError(t, err)

	units := registry.Units(TierBackend)
	units[0].Command[0] = "rm"
	units[0].Name = "mutated"

	again := registry.Units(TierBackend)
	assert.Equal(t, "C", again[0].Name)
	assert.Equal(t, "sleep", again[0].Command[0])
}

func TestRegistry_UnknownTierPanics(t *testing.T) {
	registry, err := NewRegistry(testConfig(), "")
	require.NoError(t, err)

	assert.Panics(t, func() { registry.Units(Tier("frontend")) })
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(error) bool
	}{
		{
			name:   "duplicate name across tiers",
			mutate: func(c *Config) { c.Gateway[0].Name = "C" },
			check:  errors.IsConflictError,
		},
		{
			name:   "empty command",
			mutate: func(c *Config) { c.Backend[0].Command = nil },
			check:  errors.IsValidationError,
		},
		{
			name:   "unknown launch mode",
			mutate: func(c *Config) { c.Backend[0].LaunchMode = "daemon" },
			check:  errors.IsValidationError,
		},
		{
			name:   "negative readiness wait",
			mutate: func(c *Config) { c.Infrastructure[0].ReadinessWait = -time.Second },
			check:  errors.IsValidationError,
		},
		{
			name:   "resolution on foreground unit",
			mutate: func(c *Config) { c.Infrastructure[0].Resolve = ResolveDescendant },
			check:  errors.IsValidationError,
		},
		{
			name:   "bad environment entry",
			mutate: func(c *Config) { c.Backend[1].Environment = []string{"NOVALUE"} },
			check:  errors.IsValidationError,
		},
		{
			name:   "invalid name",
			mutate: func(c *Config) { c.Backend[1].Name = "user srv" },
			check:  errors.IsValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(&config)
			_, err := NewRegistry(config, "")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestDefaultTopology(t *testing.T) {
	config := DefaultTopology()
	registry, err := NewRegistry(config, "/srv/shop")
	require.NoError(t, err)

	assert.Len(t, registry.Units(TierInfrastructure), 8)
	assert.Len(t, registry.Units(TierBackend), 5)
	assert.Len(t, registry.Units(TierGateway), 5)

	for _, unit := range registry.Units(TierInfrastructure) {
		assert.False(t, unit.IsBackground(), unit.Name)
		assert.NotEmpty(t, unit.Container, unit.Name)
	}
	for _, unit := range registry.Units(TierBackend) {
		assert.True(t, unit.IsBackground(), unit.Name)
		assert.Equal(t, ResolveDescendant, unit.Resolve)
	}

	user, ok := registry.Unit("user-srv")
	require.True(t, ok)
	assert.Equal(t, []string{"go", "run", "cmd/server/main.go", "-p", "50051"}, user.Command)
	assert.Equal(t, filepath.Join("/srv/shop", "shop_srv/user_srv"), user.WorkingDirectory)
}
