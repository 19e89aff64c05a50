package orchestrator

import (
	"context"
	"os"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

var tierStates = map[topology.Tier]State{
	topology.TierInfrastructure: StateStartingInfra,
	topology.TierBackend:        StateStartingBackend,
	topology.TierGateway:        StateStartingGateway,
}

// StartAll starts every tier in order, with data init between
// infrastructure and backends. The returned error is non-nil only when the
// container engine is unreachable or ctx is cancelled; unit failures are in
// the report.
func (o *Orchestrator) StartAll(ctx context.Context) (*Report, error) {
	report := newReport("start-all")

	previous, err := o.enter("start-all", StateStartingInfra, canStartFromState)
	if err != nil {
		return report.finish(), err
	}

	if err := o.requireEngine(ctx, report); err != nil {
		o.setState(previous)
		return report.finish(), err
	}
	defer o.setState(StateRunning)

	o.logger.Infof("Starting all tiers, units: %d", o.registry.Len())

	o.prepareInfrastructure(ctx, report)
	if err := o.startTier(ctx, topology.TierInfrastructure, report); err != nil {
		return report.finish(), err
	}

	o.setState(StateInitializingData)
	o.initData(ctx, report)

	for _, tier := range []topology.Tier{topology.TierBackend, topology.TierGateway} {
		o.setState(tierStates[tier])
		if err := o.startTier(ctx, tier, report); err != nil {
			return report.finish(), err
		}
	}

	o.logger.Infof("%s", report.Summary())
	return report.finish(), nil
}

// StartTier starts a single tier. Only the infrastructure tier requires
// the container engine.
func (o *Orchestrator) StartTier(ctx context.Context, tier topology.Tier) (*Report, error) {
	report := newReport("start-" + string(tier))

	state, ok := tierStates[tier]
	if !ok {
		return report.finish(), errors.NewValidationError("unknown tier: "+string(tier), nil)
	}

	previous, err := o.enter(report.Operation, state, canStartFromState)
	if err != nil {
		return report.finish(), err
	}

	if tier == topology.TierInfrastructure {
		if err := o.requireEngine(ctx, report); err != nil {
			o.setState(previous)
			return report.finish(), err
		}
		o.prepareInfrastructure(ctx, report)
	}
	defer o.setState(StateRunning)

	if err := o.startTier(ctx, tier, report); err != nil {
		return report.finish(), err
	}

	o.logger.Infof("%s", report.Summary())
	return report.finish(), nil
}

// InitData loads the init script into the data store container. A failure
// is reported, never returned.
func (o *Orchestrator) InitData(ctx context.Context) (*Report, error) {
	report := newReport("init-data")

	previous, err := o.enter("init-data", StateInitializingData, canStartFromState)
	if err != nil {
		return report.finish(), err
	}
	defer o.setState(previous)

	if err := o.requireEngine(ctx, report); err != nil {
		return report.finish(), err
	}

	o.initData(ctx, report)
	return report.finish(), nil
}

// StopAll terminates tracked units newest first, then takes the
// infrastructure down. Every entry leaves the table whatever the outcome.
func (o *Orchestrator) StopAll(ctx context.Context) (*Report, error) {
	report := newReport("stop-all")

	if _, err := o.enter("stop-all", StateStopping, canStopFromState); err != nil {
		return report.finish(), err
	}
	defer o.setState(StateIdle)

	entries := o.table.Reverse()
	o.logger.Infof("Stopping tracked units, count: %d", len(entries))
	if len(entries) > 0 {
		o.reporter.Phase("Stopping services")
	}

	for _, entry := range entries {
		logger := o.unitLogger(entry.Name)
		logger.Infof("Terminating, %s", entry.Handle)

		outcome, err := o.launcher.Terminate(ctx, entry.Handle, o.options.GracefulTimeout)
		o.table.Remove(entry.Name)
		o.metrics.unitTermination(outcome)

		result := Result{
			Name:    entry.Name,
			Tier:    entry.Tier,
			Handle:  entry.Handle,
			Outcome: outcome,
		}
		if err != nil {
			logger.Errorf("Termination failed: %v", err)
			result.Err = err
			o.fail(report, result)
			continue
		}

		logger.Infof("Terminated, outcome: %s", outcome)
		result.Status = StatusStopped
		report.add(result)
		o.reporter.Result(result)
	}

	o.reporter.Phase("Stopping infrastructure")
	if err := o.engine.ComposeDown(ctx); err != nil {
		o.fail(report, Result{
			Name: "infrastructure",
			Err:  errors.NewTerminationError("infrastructure shutdown failed", err),
		})
	} else {
		o.succeed(report, Result{Name: "infrastructure", Detail: "compose down"})
	}

	o.logger.Infof("%s", report.Summary())
	return report.finish(), nil
}

func (o *Orchestrator) prepareInfrastructure(ctx context.Context, report *Report) {
	if err := o.engine.EnsureNetwork(ctx); err != nil {
		o.warn(report, err, "network setup failed: %v", err)
	}
}

func (o *Orchestrator) startTier(ctx context.Context, tier topology.Tier, report *Report) error {
	units := o.registry.Units(tier)
	o.reporter.Phase("Starting " + string(tier) + " tier")
	o.logger.Infof("Starting tier, tier: %s, units: %d", tier, len(units))

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			o.logger.Warnf("Startup cancelled before unit %s", unit.Name)
			return errors.NewCancelledError("startup cancelled", err).WithContext("tier", string(tier))
		}
		o.startUnit(ctx, unit, report)
	}
	return nil
}

func (o *Orchestrator) startUnit(ctx context.Context, unit topology.Unit, report *Report) {
	logger := o.unitLogger(unit.Name)

	if running, detail := o.alreadyRunning(ctx, unit, report); running {
		logger.Infof("Already running, skipping: %s", detail)
		result := Result{Name: unit.Name, Tier: unit.Tier, Status: StatusSkipped, Detail: detail}
		report.add(result)
		o.metrics.unitLaunch(unit.Tier, StatusSkipped)
		o.reporter.Result(result)
		return
	}

	handle, err := o.launcher.Launch(ctx, unit)
	if err != nil {
		logger.Errorf("Launch failed: %v", err)
		o.metrics.unitLaunch(unit.Tier, StatusFailed)
		o.fail(report, Result{Name: unit.Name, Tier: unit.Tier, Err: err})
		return
	}

	// Track the spawn before waiting so a cancelled wait cannot lose it.
	if !handle.IsForeground() {
		if err := o.table.Record(unit.Name, unit.Tier, handle); err != nil {
			o.warn(report, err, "unit %s: not tracked: %v", unit.Name, err)
		}
	}

	if unit.ReadinessWait > 0 {
		logger.Debugf("Waiting for readiness, wait: %v", unit.ReadinessWait)
		o.reporter.Waiting(unit.Name, unit.ReadinessWait)
		o.sleep(ctx, unit.ReadinessWait)
	}

	if !handle.IsForeground() {
		resolved, err := o.resolver.Resolve(ctx, unit, handle)
		if err != nil {
			o.warn(report, err, "unit %s: handle resolution failed, keeping %s: %v", unit.Name, handle, err)
			resolved = handle.AsFallback()
		}
		handle = resolved
		if err := o.table.Update(unit.Name, handle); err != nil {
			logger.Warnf("Failed to update tracked handle: %v", err)
		}
	}

	logger.Infof("Started, %s", handle)
	result := Result{Name: unit.Name, Tier: unit.Tier, Status: StatusLaunched, Handle: handle}
	report.add(result)
	o.metrics.unitLaunch(unit.Tier, StatusLaunched)
	o.reporter.Result(result)
}

// alreadyRunning checks the existence precondition: a live tracked entry for
// background units, a running container for foreground units naming one.
func (o *Orchestrator) alreadyRunning(ctx context.Context, unit topology.Unit, report *Report) (bool, string) {
	if unit.IsBackground() {
		entry, tracked := o.table.Lookup(unit.Name)
		if !tracked {
			return false, ""
		}
		if entry.Handle.Alive() {
			return true, "tracked as " + entry.Handle.String()
		}
		o.unitLogger(unit.Name).Warnf("Tracked process is gone, relaunching, %s", entry.Handle)
		o.table.Remove(unit.Name)
		return false, ""
	}

	if unit.Container == "" {
		return false, ""
	}
	running, err := o.engine.ContainerRunning(ctx, unit.Container)
	if err != nil {
		o.warn(report, err, "unit %s: container check failed, launching anyway: %v", unit.Name, err)
		return false, ""
	}
	if running {
		return true, "container " + unit.Container + " is running"
	}
	return false, ""
}

func (o *Orchestrator) initData(ctx context.Context, report *Report) {
	options := o.options.DataInit
	o.reporter.Phase("Initializing data")

	step := Result{Name: "data-init"}
	if options.ContainerFilter == "" || options.Script == "" || len(options.Command) == 0 {
		o.warn(report, nil, "data init is not configured, skipping")
		return
	}

	script, err := os.ReadFile(options.Script)
	if err != nil {
		step.Err = errors.NewDataInitError("failed to read init script", err).WithContext("script", options.Script)
		o.fail(report, step)
		return
	}

	containerID, err := o.engine.FindContainerID(ctx, options.ContainerFilter)
	if err != nil {
		step.Err = errors.NewDataInitError("data store container not found", err).WithContext("filter", options.ContainerFilter)
		o.fail(report, step)
		return
	}

	if _, err := o.engine.ExecWithInput(ctx, containerID, options.Command, script); err != nil {
		step.Err = errors.NewDataInitError("init script failed", err).
			WithContext("container", containerID).
			WithContext("script", options.Script)
		o.fail(report, step)
		return
	}

	o.logger.Infof("Data initialized, container: %s, script: %s", containerID, options.Script)
	step.Detail = "container " + containerID
	o.succeed(report, step)
}

func (o *Orchestrator) succeed(report *Report, result Result) {
	result.Status = StatusSucceeded
	report.add(result)
	o.reporter.Result(result)
}
