// Package job implements CommandAgent: a cooperative
// agent owning a job object containing every child process it spawns,
// enforcing limits, draining redirected output into an ArchiveAgent,
// and reporting completion events through a typed, bounded channel of
// requests and notifications.
package job

import (
	"time"

	"github.com/evidentia/orc-core/internal/config"
	"github.com/evidentia/orc-core/outcome"
)

// ExitCodeAborted is the sentinel exit code recorded for a task that
// never reached its own exit path — killed on a per-command timeout,
// or lost to a wait error — so the outcome journal always carries a
// non-zero exit code for a failed task instead of a misleading zero.
// The value is Windows' E_ABORT HRESULT, the convention DFIR tooling
// uses for "the process did not get to choose its own exit code".
const ExitCodeAborted int32 = -2147467260 // 0x80004004

// State is a task's position in the per-task state machine.
type State int

const (
	StateInit State = iota
	StateQueued
	StateRunning
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateQueued:
		return "Queued"
	case StateRunning:
		return "Running"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// RedirectKind selects which of a child's standard handles are piped
// back into the archive.
type RedirectKind int

const (
	RedirectNone RedirectKind = iota
	RedirectStdOut
	RedirectStdErr
	RedirectStdOutErr
)

// CompletionAction decides what happens to a redirection stream once
// its task finishes: ArchiveAndDelete and ArchiveKeep both forward it
// to the archive, DeleteOnly discards it. In every case the temporary
// backing file is removed afterward.
type CompletionAction int

const (
	ArchiveAndDelete CompletionAction = iota
	ArchiveKeep
	DeleteOnly
)

// ExecuteRequest describes one child process to run, its output
// redirection, and what CommandAgent should do with it on completion.
type ExecuteRequest struct {
	Keyword          string
	Exe              string
	Args             []string
	Env              []string
	Redirect         RedirectKind
	OnComplete       CompletionAction
	Optional         bool
	Timeout          time.Duration
}

// Task is CommandAgent's live view of one ExecuteRequest as it
// progresses through State.
type Task struct {
	Keyword     string
	CommandLine string
	State       State
	PID         uint32
	CreatedUTC  time.Time
	ExitedUTC   time.Time
	ExitCode    int32
	UserTime    time.Duration
	KernelTime  time.Duration
	IO          outcome.IOCounters
	Outputs     []outcome.OutputRef
	Optional    bool
	hangTicks   int
	lastUser    time.Duration
	lastKernel  time.Duration
}

// buildCommandLine joins exe and args the way CreateProcess expects
// (space-separated, caller-supplied quoting), and validates the
// command line length ceiling.
func buildCommandLine(exe string, args []string) (string, error) {
	line := exe
	for _, a := range args {
		line += " " + a
	}
	if len(line) > maxCommandLineLength {
		return "", errCommandLineTooLong(line)
	}
	return line, nil
}

const maxCommandLineLength = 32768

// Limits mirrors config.JobLimits with the zero-value meaning "no
// limit configured" for every numeric field.
type Limits = config.JobLimits
