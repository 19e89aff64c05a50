package orchestrator

import (
	"time"
)

// Reporter receives progress while an operation runs. The CLI renders it;
// tests usually pass NopReporter.
type Reporter interface {
	Phase(title string)
	Waiting(name string, wait time.Duration)
	Result(result Result)
	Warning(message string)
	Section(section Section)
}

type NopReporter struct{}

var _ Reporter = NopReporter{}

func (NopReporter) Phase(string)                  {}
func (NopReporter) Waiting(string, time.Duration) {}
func (NopReporter) Result(Result)                 {}
func (NopReporter) Warning(string)                {}
func (NopReporter) Section(Section)               {}
