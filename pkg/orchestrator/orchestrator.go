// Package orchestrator brings a tiered stack up and down: infrastructure,
// then data init, then backends, then gateways, and the reverse on stop.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/core-tools/hsu-stack/pkg/engine"
	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/processtable"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// ContainerEngine is the part of engine.ContainerEngine the orchestrator
// uses.
type ContainerEngine interface {
	Available(ctx context.Context) error
	EnsureNetwork(ctx context.Context) error
	ContainerRunning(ctx context.Context, name string) (bool, error)
	FindContainerID(ctx context.Context, filter string) (string, error)
	ExecWithInput(ctx context.Context, containerID string, command []string, input []byte) (engine.Result, error)
	ComposeUp(ctx context.Context, services ...string) error
	ComposeDown(ctx context.Context) error
	ComposePS(ctx context.Context) (string, error)
	BuildImage(ctx context.Context, image engine.ImageSpec) error
}

// Cluster is the part of engine.Cluster the orchestrator uses.
type Cluster interface {
	Namespace() string
	Available(ctx context.Context) error
	EnsureNamespace(ctx context.Context) error
	DeleteNamespace(ctx context.Context) error
	ApplyConfigMap(ctx context.Context, name string, data map[string]string) error
	Apply(ctx context.Context, file string) (string, error)
	Delete(ctx context.Context, file string) (string, error)
	Get(ctx context.Context, kind string, names ...string) (string, error)
}

var (
	_ ContainerEngine = (*engine.ContainerEngine)(nil)
	_ Cluster         = (*engine.Cluster)(nil)
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// DataInitOptions locates the data store container and its init script.
type DataInitOptions struct {
	ContainerFilter string
	Command         []string
	// Script is an absolute path.
	Script string
}

// Manifest is a cluster manifest file, applied in order.
type Manifest struct {
	Name string
	File string
}

type ClusterOptions struct {
	InitConfigMap  string
	InitScript     string
	RolloutWait    time.Duration
	GatewayService string
	Manifests      []Manifest
}

type Options struct {
	GracefulTimeout time.Duration
	DataInit        DataInitOptions
	Cluster         ClusterOptions
	Images          []engine.ImageSpec
}

// Dependencies are the collaborators an Orchestrator drives. Registry,
// Launcher and Engine are required.
type Dependencies struct {
	Registry *topology.Registry
	Launcher process.Launcher
	Resolver process.Resolver
	Engine   ContainerEngine
	Cluster  Cluster
	Reporter Reporter
	Metrics  *Metrics
	Sleep    Sleeper
	Logger   logging.Logger
}

// Orchestrator owns the process table of one invocation. Operations are
// meant to be called from one goroutine; State may be read from any.
type Orchestrator struct {
	options  Options
	registry *topology.Registry
	launcher process.Launcher
	resolver process.Resolver
	engine   ContainerEngine
	cluster  Cluster
	reporter Reporter
	metrics  *Metrics
	sleep    Sleeper
	logger   logging.Logger

	table *processtable.Table

	stateMutex sync.Mutex
	state      State
}

func New(options Options, deps Dependencies) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, errors.NewValidationError("registry is required", nil)
	}
	if deps.Launcher == nil {
		return nil, errors.NewValidationError("launcher is required", nil)
	}
	if deps.Engine == nil {
		return nil, errors.NewValidationError("container engine is required", nil)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Resolver == nil {
		deps.Resolver = process.NewTreeResolver(process.DefaultResolverConfig(), nil, deps.Logger)
	}
	if deps.Reporter == nil {
		deps.Reporter = NopReporter{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if options.GracefulTimeout <= 0 {
		options.GracefulTimeout = 5 * time.Second
	}

	return &Orchestrator{
		options:  options,
		registry: deps.Registry,
		launcher: deps.Launcher,
		resolver: deps.Resolver,
		engine:   deps.Engine,
		cluster:  deps.Cluster,
		reporter: deps.Reporter,
		metrics:  deps.Metrics,
		sleep:    deps.Sleep,
		logger:   deps.Logger,
		table:    processtable.New(),
		state:    StateIdle,
	}, nil
}

func (o *Orchestrator) State() State {
	o.stateMutex.Lock()
	defer o.stateMutex.Unlock()
	return o.state
}

func (o *Orchestrator) setState(state State) {
	o.stateMutex.Lock()
	previous := o.state
	o.state = state
	o.stateMutex.Unlock()
	if previous != state {
		o.logger.Debugf("Orchestrator state changed, from: %s, to: %s", previous, state)
	}
}

// enter moves to state if allowed by check and returns the state to
// restore when the operation ends.
func (o *Orchestrator) enter(operation string, state State, check func(State) bool) (State, error) {
	o.stateMutex.Lock()
	defer o.stateMutex.Unlock()
	if !check(o.state) {
		return o.state, errors.NewConflictError("cannot run "+operation+" in state "+string(o.state), nil).
			WithContext("current_state", string(o.state))
	}
	previous := o.state
	o.state = state
	return previous, nil
}

// Table exposes the tracked background units, oldest first.
func (o *Orchestrator) Table() []processtable.Entry {
	return o.table.All()
}

func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

func (o *Orchestrator) unitLogger(name string) logging.Logger {
	return logging.WithPrefix(o.logger, "unit: "+name+" , ")
}

func (o *Orchestrator) fail(report *Report, result Result) {
	result.Status = StatusFailed
	report.add(result)
	o.metrics.failure(result.Err)
	o.reporter.Result(result)
}

func (o *Orchestrator) warn(report *Report, err error, format string, args ...interface{}) {
	message := report.warn(format, args...)
	if err != nil {
		report.Errors.Add(err)
		o.metrics.failure(err)
	}
	o.logger.Warnf("%s", message)
	o.reporter.Warning(message)
}

// requireEngine is the gating precondition for anything touching the
// container engine.
func (o *Orchestrator) requireEngine(ctx context.Context, report *Report) error {
	if err := o.engine.Available(ctx); err != nil {
		gatingErr := errors.NewGatingError("container engine is not available", err)
		report.Errors.Add(gatingErr)
		o.metrics.failure(gatingErr)
		o.logger.Errorf("Gating precondition failed: %v", err)
		return gatingErr
	}
	return nil
}

func (o *Orchestrator) requireCluster(ctx context.Context, report *Report) error {
	if o.cluster == nil {
		err := errors.NewGatingError("no cluster configured", nil)
		report.Errors.Add(err)
		return err
	}
	if err := o.cluster.Available(ctx); err != nil {
		gatingErr := errors.NewGatingError("cluster client is not available", err)
		report.Errors.Add(gatingErr)
		o.metrics.failure(gatingErr)
		o.logger.Errorf("Gating precondition failed: %v", err)
		return gatingErr
	}
	return nil
}
