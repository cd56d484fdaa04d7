package job

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/internal/config"
	"github.com/evidentia/orc-core/outcome"
)

type fakeArchiveSink struct {
	mu    sync.Mutex
	names []string
	bufs  map[string][]byte
}

func newFakeArchiveSink() *fakeArchiveSink {
	return &fakeArchiveSink{bufs: make(map[string][]byte)}
}

func (f *fakeArchiveSink) AddStream(nameInArchive string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, nameInArchive)
	f.bufs[nameInArchive] = data
	return nil
}

func newTestAgent(t *testing.T) (*Agent, *outcome.Journal) {
	t.Helper()
	j := outcome.New()
	h := j.BeginSet("TestSet", outcome.InputRunning, time.Now())
	log := logrus.NewEntry(logrus.New())
	a, err := New(config.JobLimits{}, 2, t.TempDir(), h, log)
	require.NoError(t, err)
	go a.Run()
	t.Cleanup(func() {
		a.Stop()
		<-a.Done()
	})
	return a, j
}

func drainUntilTerminal(t *testing.T, a *Agent, keyword string) Notification {
	t.Helper()
	for {
		select {
		case n := <-a.Notifications():
			if n.Keyword == keyword && (n.State == StateDone || n.State == StateFailed) {
				return n
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s to finish", keyword)
		}
	}
}

func TestExecuteSuccessCapturesOutput(t *testing.T) {
	a, j := newTestAgent(t)
	sink := newFakeArchiveSink()
	a.SetArchive(sink)

	err := a.Execute(ExecuteRequest{
		Keyword:    "Echo",
		Exe:        "/bin/echo",
		Args:       []string{"hello"},
		Redirect:   RedirectStdOut,
		OnComplete: ArchiveAndDelete,
	})
	require.NoError(t, err)

	n := drainUntilTerminal(t, a, "Echo")
	assert.Equal(t, StateDone, n.State)
	assert.Equal(t, int32(0), n.Task.ExitCode)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.names, 1)
	assert.Equal(t, "Echo.out", sink.names[0])
	assert.True(t, bytes.Contains(sink.bufs["Echo.out"], []byte("hello")))

	set, ok := j.FindSet("TestSet")
	require.True(t, ok)
	require.Len(t, set.Commands, 1)
	assert.Equal(t, "Echo", set.Commands[0].Keyword)
}

func TestExecuteFailureExitCode(t *testing.T) {
	a, _ := newTestAgent(t)

	err := a.Execute(ExecuteRequest{Keyword: "Fail", Exe: "/bin/false"})
	require.NoError(t, err)

	n := drainUntilTerminal(t, a, "Fail")
	assert.Equal(t, StateFailed, n.State)
	assert.NotEqual(t, int32(0), n.Task.ExitCode)
}

func TestExecuteDeleteOnlyDoesNotArchive(t *testing.T) {
	a, _ := newTestAgent(t)
	sink := newFakeArchiveSink()
	a.SetArchive(sink)

	err := a.Execute(ExecuteRequest{
		Keyword:    "Quiet",
		Exe:        "/bin/echo",
		Args:       []string{"discarded"},
		Redirect:   RedirectStdOut,
		OnComplete: DeleteOnly,
	})
	require.NoError(t, err)
	drainUntilTerminal(t, a, "Quiet")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.names)
}

func TestExecuteTimeoutKillsChild(t *testing.T) {
	a, _ := newTestAgent(t)

	err := a.Execute(ExecuteRequest{
		Keyword: "Hang",
		Exe:     "/bin/sleep",
		Args:    []string{"30"},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	n := drainUntilTerminal(t, a, "Hang")
	assert.Equal(t, StateFailed, n.State)
	assert.Equal(t, ExitCodeAborted, n.Task.ExitCode)
	assert.NotZero(t, n.Task.ExitCode)
}

func TestTerminateRunningTask(t *testing.T) {
	a, _ := newTestAgent(t)

	err := a.Execute(ExecuteRequest{Keyword: "Sleepy", Exe: "/bin/sleep", Args: []string{"30"}})
	require.NoError(t, err)

	var running Notification
	select {
	case n := <-a.Notifications():
		require.Equal(t, StateRunning, n.State)
		running = n
	case <-time.After(5 * time.Second):
		t.Fatal("never observed task start running")
	}

	require.NoError(t, a.Terminate(running.PID))
	n := drainUntilTerminal(t, a, "Sleepy")
	assert.Equal(t, StateFailed, n.State)
}

func TestQueryRunningListReflectsInFlightTasks(t *testing.T) {
	a, _ := newTestAgent(t)

	require.NoError(t, a.Execute(ExecuteRequest{Keyword: "Slow", Exe: "/bin/sleep", Args: []string{"2"}}))

	var pid uint32
	select {
	case n := <-a.Notifications():
		require.Equal(t, StateRunning, n.State)
		pid = n.PID
	case <-time.After(5 * time.Second):
		t.Fatal("never observed task start running")
	}

	tasks, err := a.QueryRunningList()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, pid, tasks[0].PID)

	require.NoError(t, a.Terminate(pid))
	drainUntilTerminal(t, a, "Slow")
}

func TestRefreshRunningListDoesNotPanicWithNoTasks(t *testing.T) {
	a, _ := newTestAgent(t)
	require.NoError(t, a.RefreshRunningList())
}

func TestRedirectKindName(t *testing.T) {
	cases := map[RedirectKind]string{
		RedirectNone:      "none",
		RedirectStdOut:    "stdout",
		RedirectStdErr:    "stderr",
		RedirectStdOutErr: "stdout+stderr",
	}
	for kind, want := range cases {
		assert.Equal(t, want, redirectKindName(kind))
	}
}
