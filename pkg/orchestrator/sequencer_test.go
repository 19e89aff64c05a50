package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/processtable"
	"github.com/core-tools/hsu-stack/pkg/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orchestrator *Orchestrator
	launcher     *stubLauncher
	resolver     *stubResolver
	engine       *stubEngine
	cluster      *stubCluster
	sleeper      *recordingSleeper
	reporter     *recordingReporter
	script       string
}

// scenarioTopology is infrastructure [A, B] in the foreground, backends
// [C, D] and gateway [E] in the background, each with a one second wait.
func scenarioTopology() topology.Config {
	foreground := func(name string) topology.Unit {
		return topology.Unit{
			Name:          name,
			Command:       []string{"docker-compose", "up", "-d", name},
			LaunchMode:    topology.LaunchModeForeground,
			ReadinessWait: time.Second,
			Container:     "container-" + name,
		}
	}
	background := func(name string) topology.Unit {
		return topology.Unit{
			Name:          name,
			Command:       []string{"go", "run", "main.go"},
			LaunchMode:    topology.LaunchModeBackground,
			ReadinessWait: time.Second,
			Resolve:       topology.ResolveDescendant,
		}
	}
	return topology.Config{
		Infrastructure: []topology.Unit{foreground("A"), foreground("B")},
		Backend:        []topology.Unit{background("C"), background("D")},
		Gateway:        []topology.Unit{background("E")},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry, err := topology.NewRegistry(scenarioTopology(), "")
	require.NoError(t, err)

	script := filepath.Join(t.TempDir(), "init.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE DATABASE shop;"), 0644))

	f := &fixture{
		launcher: newStubLauncher(),
		resolver: &stubResolver{fail: make(map[string]bool)},
		engine:   newStubEngine(),
		cluster:  newStubCluster(),
		sleeper:  &recordingSleeper{},
		reporter: &recordingReporter{},
		script:   script,
	}

	f.orchestrator, err = New(Options{
		GracefulTimeout: time.Second,
		DataInit: DataInitOptions{
			ContainerFilter: "mysql",
			Command:         []string{"mysql", "-uroot", "-proot"},
			Script:          script,
		},
		Cluster: ClusterOptions{
			InitConfigMap:  "mysql-init-scripts",
			InitScript:     script,
			RolloutWait:    10 * time.Second,
			GatewayService: "shop-gateway",
			Manifests: []Manifest{
				{Name: "infrastructure", File: "infra.yaml"},
				{Name: "services", File: "services.yaml"},
				{Name: "web", File: "web.yaml"},
			},
		},
	}, Dependencies{
		Registry: registry,
		Launcher: f.launcher,
		Resolver: f.resolver,
		Engine:   f.engine,
		Cluster:  f.cluster,
		Reporter: f.reporter,
		Sleep:    f.sleeper.sleep,
		Logger:   logging.NewNopLogger(),
	})
	require.NoError(t, err)
	return f
}

func tableNames(entries []processtable.Entry) []string {
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names
}

func TestStartAll_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.orchestrator.StartAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, f.launcher.launched)
	assert.Equal(t, []string{"C", "D", "E"}, tableNames(f.orchestrator.Table()))
	assert.GreaterOrEqual(t, f.sleeper.total(), 5*time.Second)
	assert.Equal(t, StateRunning, f.orchestrator.State())
	assert.Equal(t, 5, report.Launched())
	assert.False(t, report.PartialSuccess())
	assert.Equal(t, 1, f.engine.networks)

	// data init ran between infrastructure and backends
	assert.Equal(t, []string{"A", "B", "data-init", "C", "D", "E"}, report.Names())
	assert.Equal(t, []byte("CREATE DATABASE shop;"), f.engine.execInput)
	assert.Equal(t, []string{"mysql", "-uroot", "-proot"}, f.engine.execCommand)

	stop, err := f.orchestrator.StopAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "D", "C"}, f.launcher.terminated)
	assert.Empty(t, f.orchestrator.Table())
	assert.Equal(t, 3, stop.Stopped())
	assert.Equal(t, 1, f.engine.composeDowns)
	assert.Equal(t, StateIdle, f.orchestrator.State())

	result, ok := stop.Result("E")
	require.True(t, ok)
	assert.Equal(t, process.OutcomeGraceful, result.Outcome)
}

func TestStartTier_TracksOnlyBackgroundUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.StartTier(ctx, topology.TierInfrastructure)
	require.NoError(t, err)
	assert.Empty(t, f.orchestrator.Table())

	_, err = f.orchestrator.StartTier(ctx, topology.TierBackend)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, tableNames(f.orchestrator.Table()))

	_, err = f.orchestrator.StartTier(ctx, topology.TierGateway)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D", "E"}, tableNames(f.orchestrator.Table()))

	for _, entry := range f.orchestrator.Table() {
		assert.False(t, entry.Handle.IsForeground())
	}

	_, err = f.orchestrator.StartTier(ctx, topology.Tier("frontend"))
	assert.True(t, errors.IsValidationError(err))
}

func TestStartAll_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.StartAll(ctx)
	require.NoError(t, err)
	f.engine.running["container-A"] = true
	f.engine.running["container-B"] = true
	launches := len(f.launcher.launched)
	waits := len(f.sleeper.waits)

	report, err := f.orchestrator.StartAll(ctx)
	require.NoError(t, err)
	assert.Len(t, f.launcher.launched, launches)
	assert.Len(t, f.sleeper.waits, waits)
	assert.Equal(t, 5, report.Skipped())
	assert.Equal(t, 0, report.Launched())
	assert.Equal(t, []string{"C", "D", "E"}, tableNames(f.orchestrator.Table()))
}

func TestStartTier_RelaunchesDeadTrackedUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.StartTier(ctx, topology.TierBackend)
	require.NoError(t, err)

	c := f.orchestrator.Table()[0]
	f.launcher.kill(c.Handle.PID)

	report, err := f.orchestrator.StartTier(ctx, topology.TierBackend)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D", "C"}, f.launcher.launched)
	assert.Equal(t, 1, report.Launched())
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, []string{"D", "C"}, tableNames(f.orchestrator.Table()))
}

func TestStartAll_ContinuesAfterLaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.failLaunch["C"] = true

	report, err := f.orchestrator.StartAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, f.launcher.launched)
	assert.Equal(t, []string{"D", "E"}, tableNames(f.orchestrator.Table()))
	assert.Equal(t, 1, report.Failed())
	assert.True(t, report.PartialSuccess())
	assert.Contains(t, report.Summary(), "partial success")
	assert.Equal(t, 1, report.Errors.CountByType()[errors.ErrorTypeLaunch])

	// a failed unit does not wait
	assert.Len(t, f.sleeper.waits, 4)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.orchestrator.Metrics().launches.WithLabelValues("backend", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.orchestrator.Metrics().failures.WithLabelValues("launch")))
}

func TestStartAll_GatingFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.engine.unavailable = true

	report, err := f.orchestrator.StartAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsGatingError(err))
	assert.Empty(t, f.launcher.launched)
	assert.Empty(t, f.orchestrator.Table())
	assert.Equal(t, StateIdle, f.orchestrator.State())
	assert.True(t, report.Errors.HasErrors())

	_, err = f.orchestrator.StartTier(context.Background(), topology.TierInfrastructure)
	assert.True(t, errors.IsGatingError(err))

	// backends do not need the container engine
	_, err = f.orchestrator.StartTier(context.Background(), topology.TierBackend)
	assert.NoError(t, err)
}

func TestStartAll_DataInitFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.engine.containerID = ""

	report, err := f.orchestrator.StartAll(context.Background())
	require.NoError(t, err)

	result, ok := report.Result("data-init")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, result.Status)
	assert.True(t, errors.IsDataInitError(result.Err))
	assert.Equal(t, []string{"C", "D", "E"}, tableNames(f.orchestrator.Table()))
}

func TestInitData(t *testing.T) {
	f := newFixture(t)

	report, err := f.orchestrator.InitData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, StateIdle, f.orchestrator.State())

	f.engine.execFail = true
	report, err = f.orchestrator.InitData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())

	f.engine.unavailable = true
	_, err = f.orchestrator.InitData(context.Background())
	assert.True(t, errors.IsGatingError(err))
}

func TestStartAll_ResolutionFailureKeepsSpawnHandle(t *testing.T) {
	f := newFixture(t)
	f.resolver.fail["D"] = true

	report, err := f.orchestrator.StartAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "D", "E"}, tableNames(f.orchestrator.Table()))
	d := f.orchestrator.Table()[1]
	assert.Equal(t, process.HandleSourceFallback, d.Handle.Source)
	assert.Len(t, report.Warnings, 1)
	assert.Equal(t, 0, report.Failed())
	assert.Len(t, f.reporter.warnings, 1)
}

func TestStartAll_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	// cancel during C's readiness wait
	f.orchestrator.sleep = func(_ context.Context, d time.Duration) {
		if len(f.launcher.launched) == 3 {
			cancel()
		}
	}

	_, err := f.orchestrator.StartAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelledError(err))
	assert.Equal(t, []string{"A", "B", "C"}, f.launcher.launched)
	assert.Equal(t, []string{"C"}, tableNames(f.orchestrator.Table()))

	_, err = f.orchestrator.StopAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, f.launcher.terminated)
}

func TestStopAll_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.orchestrator.StopAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.launcher.terminated)
	assert.Equal(t, 0, report.Stopped())

	_, err = f.orchestrator.StartAll(ctx)
	require.NoError(t, err)
	_, err = f.orchestrator.StopAll(ctx)
	require.NoError(t, err)
	_, err = f.orchestrator.StopAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"E", "D", "C"}, f.launcher.terminated)
	assert.Empty(t, f.orchestrator.Table())
	assert.Equal(t, 3, f.engine.composeDowns)
}

func TestStopAll_RemovesEntryOnTerminationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.launcher.failStop["D"] = true

	_, err := f.orchestrator.StartAll(ctx)
	require.NoError(t, err)

	report, err := f.orchestrator.StopAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.orchestrator.Table())
	assert.Equal(t, 2, report.Stopped())
	assert.Equal(t, 1, report.Failed())

	d, ok := report.Result("D")
	require.True(t, ok)
	assert.Equal(t, process.OutcomeFailed, d.Outcome)
	assert.True(t, errors.IsTerminationError(d.Err))

	assert.Equal(t, float64(2), testutil.ToFloat64(f.orchestrator.Metrics().terminations.WithLabelValues("graceful")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.orchestrator.Metrics().terminations.WithLabelValues("failed")))
}

func TestState_RejectsOverlappingOperations(t *testing.T) {
	f := newFixture(t)
	f.orchestrator.setState(StateStopping)

	_, err := f.orchestrator.StartAll(context.Background())
	assert.True(t, errors.IsConflictError(err))
	_, err = f.orchestrator.StopAll(context.Background())
	assert.True(t, errors.IsConflictError(err))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.engine.composeOutput = "mysql   Up"

	_, err := f.orchestrator.StartTier(context.Background(), topology.TierBackend)
	require.NoError(t, err)
	f.launcher.kill(f.orchestrator.Table()[1].Handle.PID)

	status := f.orchestrator.Status(context.Background())
	assert.Equal(t, "mysql   Up", status.Infrastructure)
	assert.NoError(t, status.InfrastructureErr)
	assert.Equal(t, StateRunning, status.State)
	require.Len(t, status.Units, 2)
	assert.Equal(t, "C", status.Units[0].Name)
	assert.True(t, status.Units[0].Alive)
	assert.False(t, status.Units[1].Alive)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.StartAll(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "hsu_stack.prom")
	require.NoError(t, f.orchestrator.Metrics().WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `hsu_stack_unit_launches_total{result="launched",tier="backend"} 2`)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{}, Dependencies{})
	assert.True(t, errors.IsValidationError(err))
}
