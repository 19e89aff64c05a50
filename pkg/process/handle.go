package process

import (
	"fmt"
	"os"
)

// HandleKind tags a Handle as foreground or background.
type HandleKind int

const (
	// HandleForeground means the caller already waited for the command to
	// exit. Nothing is left to track.
	HandleForeground HandleKind = iota
	// HandleBackground refers to a detached, still-running process.
	HandleBackground
)

// HandleSource records how the PID of a background handle was obtained.
type HandleSource string

const (
	HandleSourceNative   HandleSource = "native"   // returned by the spawn
	HandleSourceResolved HandleSource = "resolved" // found among descendants
	HandleSourceFallback HandleSource = "fallback" // resolution failed, spawn PID kept
)

// Handle is an opaque reference to a launched unit, used later for
// termination. It is best effort: the PID may be reused after the process
// exits.
type Handle struct {
	Kind   HandleKind
	PID    int
	Source HandleSource

	// PGID is the process group signalled on termination. Zero means only
	// PID is signalled.
	PGID int

	// LogFile is where the unit's stdout and stderr go.
	LogFile string

	// process and done are set only when the orchestrator spawned PID
	// itself. done is closed once the process has been reaped.
	process *os.Process
	done    <-chan struct{}
}

// ForegroundHandle returns the handle of a unit that ran to completion.
func ForegroundHandle() Handle {
	return Handle{Kind: HandleForeground}
}

// NewBackgroundHandle wraps a process the caller spawned. done must be
// closed when the process has been waited for.
func NewBackgroundHandle(proc *os.Process, pgid int, logFile string, done <-chan struct{}) Handle {
	return Handle{
		Kind:    HandleBackground,
		PID:     proc.Pid,
		PGID:    pgid,
		Source:  HandleSourceNative,
		LogFile: logFile,
		process: proc,
		done:    done,
	}
}

// PIDHandle builds a background handle from a bare process id, e.g. one
// found by scanning the process list.
func PIDHandle(pid int) Handle {
	return Handle{
		Kind:   HandleBackground,
		PID:    pid,
		Source: HandleSourceResolved,
	}
}

// Retarget returns a copy of h pointing at pid. The process group and log
// file are kept so that termination still reaches the whole tree.
func (h Handle) Retarget(pid int) Handle {
	h.PID = pid
	h.Source = HandleSourceResolved
	h.process = nil
	h.done = nil
	return h
}

// AsFallback marks h as kept after a failed resolution.
func (h Handle) AsFallback() Handle {
	h.Source = HandleSourceFallback
	return h
}

func (h Handle) IsForeground() bool {
	return h.Kind == HandleForeground
}

// Native reports whether h still carries the spawned process itself.
func (h Handle) Native() bool {
	return h.done != nil
}

// Done is closed when a native handle's process has been reaped. It is nil
// for non-native handles.
func (h Handle) Done() <-chan struct{} {
	return h.done
}

func (h Handle) String() string {
	if h.IsForeground() {
		return "foreground"
	}
	if h.PGID > 0 && h.PGID != h.PID {
		return fmt.Sprintf("pid %d (pgid %d, %s)", h.PID, h.PGID, h.Source)
	}
	return fmt.Sprintf("pid %d (%s)", h.PID, h.Source)
}

// Alive reports whether the process behind h, or any member of its process
// group, still runs. Native handles answer from the reaper; others probe the
// PID, so a reused PID reads as alive.
func (h Handle) Alive() bool {
	if h.IsForeground() {
		return false
	}
	return alive(h)
}
