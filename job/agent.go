package job

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/outcome"
)

// Notification is one event CommandAgent emits for a task: Running once
// the child has started, then Done or Failed when it ends. A task that
// fails before it starts emits only Failed; no Queued event is emitted.
type Notification struct {
	Keyword string
	PID     uint32
	State   State
	Task    Task
	Hang    bool
}

type requestKind int

const (
	reqExecute requestKind = iota
	reqStart
	reqTerminate
	reqTerminateAll
	reqAbort
	reqRefreshRunningList
	reqQueryRunningList
	reqQueryJobStats
	reqDone
)

type request struct {
	kind    requestKind
	execute ExecuteRequest
	pid     uint32
	reply   chan agentReply
}

type agentReply struct {
	err   error
	tasks []Task
	stats outcome.JobStats
}

// Agent is CommandAgent: a cooperative agent owning one job object,
// processing requests from a bounded channel in arrival order; requests
// carry no priority.
type Agent struct {
	requests chan request
	notifs   chan Notification
	done     chan struct{}
	log      *logrus.Entry

	job         *jobObject
	concurrency chan struct{}
	dumpDir     string
	archive     archiveSink

	mu      sync.Mutex
	running map[uint32]*runningTask
	outcome *outcome.SetHandle
}

type runningTask struct {
	task    *Task
	process *spawnedProcess
}

// archiveSink is the narrow surface CommandAgent needs from an
// ArchiveAgent to hand off redirected output, kept as an interface so
// job doesn't import archive directly.
type archiveSink interface {
	AddStream(nameInArchive string, r io.Reader) error
}

// New constructs a CommandAgent bound to a fresh job object configured
// with limits. Concurrency bounds how many children may run at once.
// limits.WallClock is not applied by the agent on any platform.
func New(limits Limits, concurrency int, dumpDir string, setHandle *outcome.SetHandle, log *logrus.Entry) (*Agent, error) {
	jo, err := newJobObject(limits)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Agent{
		requests:    make(chan request, 64),
		notifs:      make(chan Notification, 64),
		done:        make(chan struct{}),
		log:         log,
		job:         jo,
		concurrency: make(chan struct{}, concurrency),
		dumpDir:     dumpDir,
		running:     make(map[uint32]*runningTask),
		outcome:     setHandle,
	}, nil
}

func (a *Agent) Notifications() <-chan Notification { return a.notifs }
func (a *Agent) Done() <-chan struct{}               { return a.done }

// SetArchive binds the ArchiveAgent redirected output is forwarded to.
// Call it before the agent starts accepting Execute requests with a
// non-RedirectNone kind.
func (a *Agent) SetArchive(sink archiveSink) { a.archive = sink }

// Execute enqueues a child process to run once a concurrency slot is
// free.
func (a *Agent) Execute(req ExecuteRequest) error {
	return a.do(request{kind: reqExecute, execute: req})
}

// TerminateAll calls TerminateJobObject, killing every child
// atomically. Off Windows there is no job object and the call kills
// nothing.
func (a *Agent) TerminateAll() error {
	return a.do(request{kind: reqTerminateAll})
}

// Terminate kills one running child by PID.
func (a *Agent) Terminate(pid uint32) error {
	return a.do(request{kind: reqTerminate, pid: pid})
}

// RefreshRunningList triggers one hang-detection poll tick; callers
// are expected to call this roughly every second.
func (a *Agent) RefreshRunningList() error {
	return a.do(request{kind: reqRefreshRunningList})
}

// QueryRunningList returns a snapshot of every task not yet in a
// terminal state.
func (a *Agent) QueryRunningList() ([]Task, error) {
	req := request{kind: reqQueryRunningList, reply: make(chan agentReply, 1)}
	a.requests <- req
	reply := <-req.reply
	return reply.tasks, reply.err
}

// QueryJobStats reads the job object's cumulative accounting
// (processes, page faults, peak memory, I/O), for ExecutionSet to
// record in the outcome journal when the set completes.
func (a *Agent) QueryJobStats() (outcome.JobStats, error) {
	req := request{kind: reqQueryJobStats, reply: make(chan agentReply, 1)}
	a.requests <- req
	reply := <-req.reply
	return reply.stats, reply.err
}

// Stop closes the input channel: no further Execute calls may be
// enqueued, but requests already queued still run.
func (a *Agent) Stop() {
	a.do(request{kind: reqDone})
}

func (a *Agent) do(req request) error {
	req.reply = make(chan agentReply, 1)
	a.requests <- req
	return (<-req.reply).err
}

// Run processes requests until Stop. It must run in its own
// goroutine; message handling inside one Agent is strictly sequential.
func (a *Agent) Run() {
	defer close(a.done)
	defer close(a.notifs)
	defer a.job.close()

	for req := range a.requests {
		switch req.kind {
		case reqExecute:
			err := a.handleExecute(req.execute)
			req.reply <- agentReply{err: err}
		case reqTerminate:
			err := a.handleTerminate(req.pid)
			req.reply <- agentReply{err: err}
		case reqTerminateAll:
			err := a.job.terminateAll()
			req.reply <- agentReply{err: err}
		case reqRefreshRunningList:
			a.handleRefresh()
			req.reply <- agentReply{}
		case reqQueryRunningList:
			req.reply <- agentReply{tasks: a.snapshotRunning()}
		case reqQueryJobStats:
			stats, err := a.handleJobStats()
			req.reply <- agentReply{stats: stats, err: err}
		case reqDone:
			req.reply <- agentReply{}
			return
		default:
			req.reply <- agentReply{}
		}
	}
}

func (a *Agent) handleExecute(req ExecuteRequest) error {
	line, err := buildCommandLine(req.Exe, req.Args)
	if err != nil {
		return err
	}

	select {
	case a.concurrency <- struct{}{}:
	default:
		// No free slot: spawn a goroutine that blocks until one frees,
		// so Execute itself never blocks the agent's request loop.
		go func() {
			a.concurrency <- struct{}{}
			a.runOne(req, line)
		}()
		return nil
	}
	go a.runOne(req, line)
	return nil
}

func (a *Agent) runOne(req ExecuteRequest, commandLine string) {
	defer func() { <-a.concurrency }()

	task := &Task{
		Keyword:     req.Keyword,
		CommandLine: commandLine,
		State:       StateQueued,
		CreatedUTC:  time.Now().UTC(),
		Optional:    req.Optional,
	}

	var capture *outputCapture
	if req.Redirect != RedirectNone {
		c, cErr := newOutputCapture(a.dumpDir)
		if cErr == nil {
			capture = c
		} else {
			a.log.WithError(cErr).Warn("job: could not set up output redirection, running without it")
		}
	}

	proc, err := spawnSuspended(commandLine, req.Env, capture)
	if err != nil {
		task.State = StateFailed
		a.notify(Notification{Keyword: req.Keyword, State: StateFailed, Task: *task})
		return
	}
	if err := assignToJob(a.job, proc); err != nil {
		proc.terminate()
		proc.close()
		task.State = StateFailed
		a.notify(Notification{Keyword: req.Keyword, State: StateFailed, Task: *task})
		return
	}
	if err := proc.resume(); err != nil {
		proc.terminate()
		proc.close()
		task.State = StateFailed
		a.notify(Notification{Keyword: req.Keyword, State: StateFailed, Task: *task})
		return
	}

	task.State = StateRunning
	task.PID = proc.pid
	rt := &runningTask{task: task, process: proc}
	a.mu.Lock()
	a.running[proc.pid] = rt
	a.mu.Unlock()
	a.notify(Notification{Keyword: req.Keyword, PID: proc.pid, State: StateRunning, Task: *task})

	timedOut, waitErr := proc.wait(req.Timeout)
	if timedOut {
		proc.terminate()
		task.State = StateFailed
		task.ExitCode = ExitCodeAborted
	} else if waitErr != nil {
		task.State = StateFailed
		task.ExitCode = ExitCodeAborted
	} else {
		code, _ := proc.exitCode()
		task.ExitCode = code
		if code == 0 {
			task.State = StateDone
		} else {
			task.State = StateFailed
		}
	}
	task.ExitedUTC = time.Now().UTC()
	if user, kernel, tErr := proc.times(); tErr == nil {
		task.UserTime, task.KernelTime = user, kernel
	}
	if io, ioErr := proc.ioCounters(); ioErr == nil {
		task.IO = io
	}
	proc.close()

	if capture != nil {
		a.archiveCapture(req, capture, task)
	}

	a.mu.Lock()
	delete(a.running, proc.pid)
	a.mu.Unlock()

	if a.outcome != nil {
		a.outcome.AppendCommand(outcome.CommandOutcome{
			Keyword:           task.Keyword,
			CommandLine:       task.CommandLine,
			PID:               task.PID,
			CreatedUTC:        task.CreatedUTC,
			ExitedUTC:         task.ExitedUTC,
			ExitCode:          task.ExitCode,
			UserTimeSeconds:   task.UserTime.Seconds(),
			KernelTimeSeconds: task.KernelTime.Seconds(),
			IO:                task.IO,
			Outputs:           task.Outputs,
		})
	}
	a.notify(Notification{Keyword: req.Keyword, PID: proc.pid, State: task.State, Task: *task})
}

// archiveCapture hands a finished task's captured redirection output
// to the bound ArchiveAgent according to req.OnComplete. Only
// ArchiveAndDelete/ArchiveKeep forward to the archive; DeleteOnly just
// discards the capture.
func (a *Agent) archiveCapture(req ExecuteRequest, capture *outputCapture, task *Task) {
	defer capture.close()
	if req.OnComplete == DeleteOnly || a.archive == nil {
		return
	}
	r, err := capture.reader()
	if err != nil {
		a.log.WithError(err).Warn("job: could not read back captured output")
		return
	}
	defer r.Close()

	name := task.Keyword + ".out"
	if err := a.archive.AddStream(name, r); err != nil {
		a.log.WithError(err).Warn("job: could not archive captured output")
		return
	}
	task.Outputs = append(task.Outputs, outcome.OutputRef{Name: name, Type: redirectKindName(req.Redirect)})
}

func redirectKindName(k RedirectKind) string {
	switch k {
	case RedirectStdOut:
		return "stdout"
	case RedirectStdErr:
		return "stderr"
	case RedirectStdOutErr:
		return "stdout+stderr"
	default:
		return "none"
	}
}

func (a *Agent) handleTerminate(pid uint32) error {
	a.mu.Lock()
	rt, ok := a.running[pid]
	a.mu.Unlock()
	if !ok {
		return orcerr.Wrap(orcerr.ErrConfig, "job: no running task with that pid", nil)
	}
	return rt.process.terminate()
}

// handleRefresh samples every running task's (user+kernel) time
// against its last sample; if unchanged, bumps its hang counter, and
// every 30 consecutive stale samples logs a hang report. It never
// kills a task on hang detection alone.
func (a *Agent) handleRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rt := range a.running {
		user, kernel, err := rt.process.times()
		if err != nil {
			continue
		}
		if user == rt.task.lastUser && kernel == rt.task.lastKernel {
			rt.task.hangTicks++
		} else {
			rt.task.hangTicks = 0
		}
		rt.task.lastUser, rt.task.lastKernel = user, kernel
		if rt.task.hangTicks > 0 && rt.task.hangTicks%30 == 0 {
			a.log.WithField("pid", rt.task.PID).WithField("keyword", rt.task.Keyword).
				Warn("job: task appears hung")
		}
	}
}

func (a *Agent) handleJobStats() (outcome.JobStats, error) {
	acc, err := a.job.accounting()
	if err != nil {
		return outcome.JobStats{}, err
	}
	return outcome.JobStats{
		PageFaults:          uint64(acc.BasicInfo.TotalPageFaultCount),
		Processes:           acc.BasicInfo.TotalProcesses,
		ActiveProcesses:     acc.BasicInfo.ActiveProcesses,
		TerminatedProcesses: acc.BasicInfo.TotalTerminatedProcesses,
		IO: outcome.IOCounters{
			ReadOps:    acc.IoInfo.ReadOperationCount,
			ReadBytes:  acc.IoInfo.ReadTransferCount,
			WriteOps:   acc.IoInfo.WriteOperationCount,
			WriteBytes: acc.IoInfo.WriteTransferCount,
			OtherOps:   acc.IoInfo.OtherOperationCount,
			OtherBytes: acc.IoInfo.OtherTransferCount,
		},
	}, nil
}

func (a *Agent) snapshotRunning() []Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Task, 0, len(a.running))
	for _, rt := range a.running {
		out = append(out, *rt.task)
	}
	return out
}

func (a *Agent) notify(n Notification) {
	select {
	case a.notifs <- n:
	case <-time.After(30 * time.Second):
		a.log.WithField("pid", n.PID).Warn("job: notification channel stalled")
	}
}
