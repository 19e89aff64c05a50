package process

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/topology"
)

// Resolver finds the durable process behind a background launch.
type Resolver interface {
	Resolve(ctx context.Context, unit topology.Unit, initial Handle) (Handle, error)
}

// ProcessTree lists the live descendants of a process. It exists so the
// resolver can be tested without real process trees.
type ProcessTree interface {
	Children(ctx context.Context, pid int) ([]int, error)
	Cmdline(ctx context.Context, pid int) (string, error)
	Running(ctx context.Context, pid int) bool
}

// ResolverConfig bounds how long resolution keeps looking.
type ResolverConfig struct {
	// Timeout is the total time spent looking for a stable descendant.
	Timeout time.Duration
	// Settle is how long a candidate must stay alive to be accepted, which
	// filters out short-lived build steps of wrappers like `go run`.
	Settle time.Duration
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Timeout: 5 * time.Second,
		Settle:  500 * time.Millisecond,
	}
}

// TreeResolver resolves handles by walking the process tree below the
// spawned PID instead of pattern-matching the whole process list.
type TreeResolver struct {
	config ResolverConfig
	tree   ProcessTree
	logger logging.Logger
}

var _ Resolver = (*TreeResolver)(nil)

func NewTreeResolver(config ResolverConfig, tree ProcessTree, logger logging.Logger) *TreeResolver {
	defaults := DefaultResolverConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Settle <= 0 {
		config.Settle = defaults.Settle
	}
	if tree == nil {
		tree = SystemProcessTree{}
	}
	return &TreeResolver{
		config: config,
		tree:   tree,
		logger: logger,
	}
}

// Resolve returns initial unchanged for units without a resolution policy.
// For descendant resolution it returns the deepest live descendant (the
// first match of unit.Match, if set) that survives the settle period.
func (r *TreeResolver) Resolve(ctx context.Context, unit topology.Unit, initial Handle) (Handle, error) {
	if initial.IsForeground() {
		return initial, errors.NewResolutionError("foreground handles are not resolved", nil).WithContext("unit", unit.Name)
	}
	if unit.Resolve != topology.ResolveDescendant {
		return initial, nil
	}

	deadline := time.Now().Add(r.config.Timeout)
	var lastErr error
	for {
		pid, err := r.findCandidate(ctx, initial.PID, unit.Match)
		if err == nil {
			if r.settled(ctx, pid) {
				r.logger.Infof("Resolved unit handle, unit: %s, spawned pid: %d, worker pid: %d", unit.Name, initial.PID, pid)
				return initial.Retarget(pid), nil
			}
			lastErr = stderrors.New("candidate exited during settle period")
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return initial, errors.NewResolutionError("resolution cancelled", ctx.Err()).WithContext("unit", unit.Name)
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(pollInterval):
		}
	}

	return initial, errors.NewResolutionError("no durable descendant found", lastErr).
		WithContext("unit", unit.Name).
		WithContext("pid", initial.PID).
		WithContext("match", unit.Match)
}

func (r *TreeResolver) findCandidate(ctx context.Context, root int, match string) (int, error) {
	type node struct {
		pid   int
		depth int
	}

	best, bestDepth := 0, 0
	queue := []node{{pid: root}}
	seen := map[int]bool{root: true}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := r.tree.Children(ctx, current.pid)
		if err != nil {
			if current.pid == root {
				return 0, err
			}
			continue
		}
		for _, child := range children {
			if seen[child] {
				continue
			}
			seen[child] = true
			depth := current.depth + 1
			queue = append(queue, node{pid: child, depth: depth})

			if match != "" {
				cmdline, err := r.tree.Cmdline(ctx, child)
				if err != nil || !strings.Contains(cmdline, match) {
					continue
				}
			}
			if depth > bestDepth {
				best, bestDepth = child, depth
			}
		}
	}

	if best == 0 {
		return 0, stderrors.New("no matching descendant")
	}
	return best, nil
}

func (r *TreeResolver) settled(ctx context.Context, pid int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.config.Settle):
	}
	return r.tree.Running(ctx, pid)
}

// SystemProcessTree reads the live process table through gopsutil.
type SystemProcessTree struct{}

func (SystemProcessTree) Children(ctx context.Context, pid int) ([]int, error) {
	proc, err := gopsprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		if stderrors.Is(err, gopsprocess.ErrorNoChildren) {
			return nil, nil
		}
		return nil, err
	}
	pids := make([]int, 0, len(children))
	for _, child := range children {
		pids = append(pids, int(child.Pid))
	}
	return pids, nil
}

func (SystemProcessTree) Cmdline(ctx context.Context, pid int) (string, error) {
	proc, err := gopsprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", err
	}
	return proc.CmdlineWithContext(ctx)
}

func (SystemProcessTree) Running(ctx context.Context, pid int) bool {
	exists, err := gopsprocess.PidExistsWithContext(ctx, int32(pid))
	return err == nil && exists
}
