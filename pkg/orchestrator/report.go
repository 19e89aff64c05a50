package orchestrator

import (
	"fmt"
	"time"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// ResultStatus is what happened to one unit or step.
type ResultStatus string

const (
	StatusLaunched  ResultStatus = "launched"
	StatusSkipped   ResultStatus = "skipped"
	StatusFailed    ResultStatus = "failed"
	StatusStopped   ResultStatus = "stopped"
	StatusSucceeded ResultStatus = "succeeded"
)

// Result describes one unit or one step of an operation. Tier is empty for
// steps that are not topology units, such as data init or an image build.
type Result struct {
	Name    string
	Tier    topology.Tier
	Status  ResultStatus
	Handle  process.Handle
	Outcome process.TerminationOutcome
	Detail  string
	Err     error
}

// Section is captured tool output worth showing to the operator.
type Section struct {
	Title string
	Text  string
}

// Report is returned by every operation. Per-unit failures live here, not
// in the returned error.
type Report struct {
	Operation string
	Started   time.Time
	Finished  time.Time
	Results   []Result
	Warnings  []string
	Sections  []Section
	Errors    *errors.ErrorCollection
}

func newReport(operation string) *Report {
	return &Report{
		Operation: operation,
		Started:   time.Now(),
		Errors:    errors.NewErrorCollection(),
	}
}

func (r *Report) add(result Result) {
	r.Results = append(r.Results, result)
	if result.Err != nil {
		r.Errors.Add(result.Err)
	}
}

func (r *Report) warn(format string, args ...interface{}) string {
	message := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, message)
	return message
}

func (r *Report) count(status ResultStatus) int {
	n := 0
	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) Launched() int  { return r.count(StatusLaunched) }
func (r *Report) Skipped() int   { return r.count(StatusSkipped) }
func (r *Report) Failed() int    { return r.count(StatusFailed) }
func (r *Report) Stopped() int   { return r.count(StatusStopped) }
func (r *Report) Succeeded() int { return r.count(StatusSucceeded) }

// PartialSuccess reports whether the operation finished with failures or
// warnings.
func (r *Report) PartialSuccess() bool {
	return r.Failed() > 0 || len(r.Warnings) > 0
}

// Result returns the result recorded for name.
func (r *Report) Result(name string) (Result, bool) {
	for _, result := range r.Results {
		if result.Name == name {
			return result, true
		}
	}
	return Result{}, false
}

// Names lists result names in the order they were recorded.
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Results))
	for _, result := range r.Results {
		names = append(names, result.Name)
	}
	return names
}

func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

func (r *Report) Summary() string {
	verdict := "success"
	if r.PartialSuccess() {
		verdict = "partial success"
	}
	return fmt.Sprintf("%s: %s (launched: %d, skipped: %d, stopped: %d, succeeded: %d, failed: %d, warnings: %d)",
		r.Operation, verdict, r.Launched(), r.Skipped(), r.Stopped(), r.Succeeded(), r.Failed(), len(r.Warnings))
}

func (r *Report) finish() *Report {
	r.Finished = time.Now()
	return r
}

// UnitStatus is one tracked unit as seen by Status.
type UnitStatus struct {
	Name    string
	Tier    topology.Tier
	PID     int
	Source  process.HandleSource
	LogFile string
	Alive   bool
}

// StatusReport combines container engine status with tracked units.
type StatusReport struct {
	Infrastructure    string
	InfrastructureErr error
	Units             []UnitStatus
	State             State
}
