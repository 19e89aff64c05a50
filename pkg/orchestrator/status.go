package orchestrator

import (
	"context"
)

// Status reports infrastructure as the compose tool sees it, plus every
// tracked unit with its liveness. It never fails; tool errors are recorded
// in the report.
func (o *Orchestrator) Status(ctx context.Context) *StatusReport {
	status := &StatusReport{State: o.State()}

	status.Infrastructure, status.InfrastructureErr = o.engine.ComposePS(ctx)
	if status.InfrastructureErr != nil {
		o.logger.Warnf("Failed to read infrastructure status: %v", status.InfrastructureErr)
	}

	for _, entry := range o.table.All() {
		status.Units = append(status.Units, UnitStatus{
			Name:    entry.Name,
			Tier:    entry.Tier,
			PID:     entry.Handle.PID,
			Source:  entry.Handle.Source,
			LogFile: entry.Handle.LogFile,
			Alive:   entry.Handle.Alive(),
		})
	}
	return status
}
