package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

const metricsNamespace = "hsu_stack"

// Metrics counts what one invocation did. The registry is private to the
// orchestrator so repeated runs in one process do not collide.
type Metrics struct {
	registry     *prometheus.Registry
	launches     *prometheus.CounterVec
	terminations *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unit_launches_total",
			Help:      "Unit launch attempts by tier and result.",
		}, []string{"tier", "result"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unit_terminations_total",
			Help:      "Unit terminations by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Failures by error type.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(m.launches, m.terminations, m.failures)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) unitLaunch(tier topology.Tier, status ResultStatus) {
	m.launches.WithLabelValues(string(tier), string(status)).Inc()
}

func (m *Metrics) unitTermination(outcome process.TerminationOutcome) {
	m.terminations.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) failure(err error) {
	errorType := errors.TypeOf(err)
	if errorType == "" {
		errorType = errors.ErrorTypeInternal
	}
	m.failures.WithLabelValues(string(errorType)).Inc()
}

// WriteTextfile writes all counters in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.NewIOError("failed to write metrics textfile", err).WithContext("path", path)
	}
	return nil
}
