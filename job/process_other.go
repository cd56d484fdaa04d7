//go:build !windows

package job

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/evidentia/orc-core/outcome"
)

// spawnedProcess backs job object support with a plain os/exec.Cmd off
// Windows. Job-object limits ( memory/CPU/wall-clock table)
// have no POSIX equivalent wired here; Limits are accepted but none of
// them is enforced on this platform.
type spawnedProcess struct {
	cmd       *exec.Cmd
	pid       uint32
	startedAt time.Time
}

func spawnSuspended(commandLine string, env []string, capture *outputCapture) (*spawnedProcess, error) {
	// No suspended-creation primitive off Windows; the process starts
	// running immediately and is resumed (a no-op) right after.
	cmd := exec.Command("/bin/sh", "-c", commandLine)
	if len(env) > 0 {
		cmd.Env = env
	}
	if capture != nil {
		cmd.Stdout = capture.writer()
		cmd.Stderr = capture.writer()
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	if capture != nil {
		capture.writer().Close()
	}
	return &spawnedProcess{cmd: cmd, pid: uint32(cmd.Process.Pid), startedAt: time.Now()}, nil
}

func (p *spawnedProcess) resume() error { return nil }

func (p *spawnedProcess) wait(timeout time.Duration) (timedOut bool, err error) {
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	if timeout <= 0 {
		return false, <-done
	}
	select {
	case err := <-done:
		return false, err
	case <-time.After(timeout):
		return true, nil
	}
}

func (p *spawnedProcess) terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *spawnedProcess) exitCode() (int32, error) {
	if p.cmd.ProcessState == nil {
		return 0, nil
	}
	return int32(p.cmd.ProcessState.ExitCode()), nil
}

func (p *spawnedProcess) times() (user, kernel time.Duration, err error) {
	if p.cmd.ProcessState == nil {
		return 0, 0, nil
	}
	ru, ok := p.cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0, 0, nil
	}
	return time.Duration(ru.Utime.Nano()), time.Duration(ru.Stime.Nano()), nil
}

func (p *spawnedProcess) ioCounters() (outcome.IOCounters, error) {
	return outcome.IOCounters{}, nil
}

func (p *spawnedProcess) close() {}
