package orchestrator

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/core-tools/hsu-stack/pkg/engine"
	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/process"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// stubLauncher hands out native-looking handles whose done channel closes
// when the handle is terminated.
type stubLauncher struct {
	launched   []string
	terminated []string
	failLaunch map[string]bool
	failStop   map[string]bool
	nextPID    int
	done       map[int]chan struct{}
}

func newStubLauncher() *stubLauncher {
	return &stubLauncher{
		failLaunch: make(map[string]bool),
		failStop:   make(map[string]bool),
		nextPID:    40000,
		done:       make(map[int]chan struct{}),
	}
}

func (s *stubLauncher) Launch(_ context.Context, unit topology.Unit) (process.Handle, error) {
	s.launched = append(s.launched, unit.Name)
	if s.failLaunch[unit.Name] {
		return process.Handle{}, errors.NewLaunchError("stub launch failure", nil).WithContext("unit", unit.Name)
	}
	if !unit.IsBackground() {
		return process.ForegroundHandle(), nil
	}
	s.nextPID++
	done := make(chan struct{})
	s.done[s.nextPID] = done
	// No process group, so liveness answers from the done channel alone.
	return process.NewBackgroundHandle(&os.Process{Pid: s.nextPID}, 0, unit.Name+".log", done), nil
}

func (s *stubLauncher) Terminate(_ context.Context, handle process.Handle, _ time.Duration) (process.TerminationOutcome, error) {
	name := strings.TrimSuffix(handle.LogFile, ".log")
	s.terminated = append(s.terminated, name)
	if done, ok := s.done[handle.PID]; ok {
		close(done)
		delete(s.done, handle.PID)
	}
	if s.failStop[name] {
		return process.OutcomeFailed, errors.NewTerminationError("stub termination failure", nil)
	}
	return process.OutcomeGraceful, nil
}

// kill simulates a tracked process dying on its own.
func (s *stubLauncher) kill(pid int) {
	if done, ok := s.done[pid]; ok {
		close(done)
		delete(s.done, pid)
	}
}

type stubResolver struct {
	fail map[string]bool
}

func (s *stubResolver) Resolve(_ context.Context, unit topology.Unit, initial process.Handle) (process.Handle, error) {
	if s.fail[unit.Name] {
		return initial, errors.NewResolutionError("stub resolution failure", nil)
	}
	return initial, nil
}

type stubEngine struct {
	unavailable   bool
	running       map[string]bool
	containerID   string
	execInput     []byte
	execCommand   []string
	execFail      bool
	composeDowns  int
	composeUps    int
	networks      int
	builds        []string
	failBuild     map[string]bool
	composeOutput string
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		running:     make(map[string]bool),
		failBuild:   make(map[string]bool),
		containerID: "mysql-1",
	}
}

func (s *stubEngine) Available(context.Context) error {
	if s.unavailable {
		return errors.NewProcessError("daemon not running", nil)
	}
	return nil
}

func (s *stubEngine) EnsureNetwork(context.Context) error {
	s.networks++
	return nil
}

func (s *stubEngine) ContainerRunning(_ context.Context, name string) (bool, error) {
	return s.running[name], nil
}

func (s *stubEngine) FindContainerID(_ context.Context, filter string) (string, error) {
	if s.containerID == "" {
		return "", errors.NewNotFoundError("no container", nil).WithContext("filter", filter)
	}
	return s.containerID, nil
}

func (s *stubEngine) ExecWithInput(_ context.Context, _ string, command []string, input []byte) (engine.Result, error) {
	s.execCommand = command
	s.execInput = input
	if s.execFail {
		return engine.Result{ExitCode: 1}, errors.NewProcessError("exec failed", nil)
	}
	return engine.Result{}, nil
}

func (s *stubEngine) ComposeUp(context.Context, ...string) error {
	s.composeUps++
	return nil
}

func (s *stubEngine) ComposeDown(context.Context) error {
	s.composeDowns++
	return nil
}

func (s *stubEngine) ComposePS(context.Context) (string, error) {
	return s.composeOutput, nil
}

func (s *stubEngine) BuildImage(_ context.Context, image engine.ImageSpec) error {
	s.builds = append(s.builds, image.Name)
	if s.failBuild[image.Name] {
		return errors.NewProcessError("build failed", nil)
	}
	return nil
}

type stubCluster struct {
	unavailable bool
	calls       []string
	configMaps  map[string]map[string]string
	failApply   map[string]bool
}

func newStubCluster() *stubCluster {
	return &stubCluster{
		configMaps: make(map[string]map[string]string),
		failApply:  make(map[string]bool),
	}
}

func (s *stubCluster) Namespace() string { return "shop-system" }

func (s *stubCluster) Available(context.Context) error {
	if s.unavailable {
		return errors.NewProcessError("kubectl missing", nil)
	}
	return nil
}

func (s *stubCluster) EnsureNamespace(context.Context) error {
	s.calls = append(s.calls, "ensure-namespace")
	return nil
}

func (s *stubCluster) DeleteNamespace(context.Context) error {
	s.calls = append(s.calls, "delete-namespace")
	return nil
}

func (s *stubCluster) ApplyConfigMap(_ context.Context, name string, data map[string]string) error {
	s.calls = append(s.calls, "configmap "+name)
	s.configMaps[name] = data
	return nil
}

func (s *stubCluster) Apply(_ context.Context, file string) (string, error) {
	s.calls = append(s.calls, "apply "+file)
	if s.failApply[file] {
		return "", errors.NewProcessError("apply failed", nil)
	}
	return "", nil
}

func (s *stubCluster) Delete(_ context.Context, file string) (string, error) {
	s.calls = append(s.calls, "delete "+file)
	return "", nil
}

func (s *stubCluster) Get(_ context.Context, kind string, names ...string) (string, error) {
	s.calls = append(s.calls, strings.TrimSpace("get "+kind+" "+strings.Join(names, " ")))
	return kind + " listing", nil
}

// recordingSleeper adds up requested waits without sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) {
	r.waits = append(r.waits, d)
}

func (r *recordingSleeper) total() time.Duration {
	var total time.Duration
	for _, d := range r.waits {
		total += d
	}
	return total
}

// recordingReporter keeps the order of reported events.
type recordingReporter struct {
	phases   []string
	results  []Result
	warnings []string
	sections []Section
}

func (r *recordingReporter) Phase(title string)            { r.phases = append(r.phases, title) }
func (r *recordingReporter) Waiting(string, time.Duration) {}
func (r *recordingReporter) Result(result Result)          { r.results = append(r.results, result) }
func (r *recordingReporter) Warning(message string)        { r.warnings = append(r.warnings, message) }
func (r *recordingReporter) Section(section Section)       { r.sections = append(r.sections, section) }
