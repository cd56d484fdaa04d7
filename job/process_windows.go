//go:build windows

package job

import (
	"syscall"
	"time"

	"golang.org/x/sys/windows"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/outcome"
)

// spawnedProcess is one live child, spawned suspended, assigned to
// the command agent's job object, then resumed — step 3.
type spawnedProcess struct {
	process windows.Handle
	thread  windows.Handle
	pid     uint32
}

func spawnSuspended(commandLine string, env []string, capture *outputCapture) (*spawnedProcess, error) {
	cmdLine16, err := windows.UTF16PtrFromString(commandLine)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrConfig, "job: encode command line", err)
	}

	var envBlock *uint16
	if len(env) > 0 {
		envBlock, err = buildEnvBlock(env)
		if err != nil {
			return nil, err
		}
	}

	si := new(windows.StartupInfo)
	inheritHandles := false
	if capture != nil {
		h := windows.Handle(capture.writer().Fd())
		if err := windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT); err != nil {
			return nil, orcerr.Wrap(orcerr.ErrConfig, "job: mark pipe handle inheritable", err)
		}
		si.Flags |= windows.STARTF_USESTDHANDLES
		si.StdOutput = h
		si.StdErr = h
		inheritHandles = true
	}
	pi := new(windows.ProcessInformation)

	err = windows.CreateProcess(
		nil,
		cmdLine16,
		nil,
		nil,
		inheritHandles,
		windows.CREATE_SUSPENDED|windows.CREATE_UNICODE_ENVIRONMENT,
		envBlock,
		nil,
		si,
		pi,
	)
	if capture != nil {
		capture.writer().Close()
	}
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "job: CreateProcess "+commandLine, err)
	}

	return &spawnedProcess{process: pi.Process, thread: pi.Thread, pid: pi.ProcessId}, nil
}

func buildEnvBlock(env []string) (*uint16, error) {
	var block []uint16
	for _, kv := range env {
		u, err := syscall.UTF16FromString(kv)
		if err != nil {
			return nil, orcerr.Wrap(orcerr.ErrConfig, "job: encode env var "+kv, err)
		}
		block = append(block, u[:len(u)-1]...)
		block = append(block, 0)
	}
	block = append(block, 0)
	return &block[0], nil
}

func (p *spawnedProcess) resume() error {
	_, err := windows.ResumeThread(p.thread)
	return err
}

func (p *spawnedProcess) wait(timeout time.Duration) (timedOut bool, err error) {
	ms := uint32(windows.INFINITE)
	if timeout > 0 {
		ms = uint32(timeout.Milliseconds())
	}
	ev, err := windows.WaitForSingleObject(p.process, ms)
	if err != nil {
		return false, orcerr.Wrap(orcerr.ErrIo, "job: WaitForSingleObject", err)
	}
	return ev == uint32(windows.WAIT_TIMEOUT), nil
}

func (p *spawnedProcess) terminate() error {
	return windows.TerminateProcess(p.process, 1)
}

func (p *spawnedProcess) exitCode() (int32, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(p.process, &code); err != nil {
		return 0, err
	}
	return int32(code), nil
}

func (p *spawnedProcess) times() (user, kernel time.Duration, err error) {
	var creation, exit, kernelFT, userFT windows.Filetime
	if err := windows.GetProcessTimes(p.process, &creation, &exit, &kernelFT, &userFT); err != nil {
		return 0, 0, err
	}
	return filetimeToDuration(userFT), filetimeToDuration(kernelFT), nil
}

// filetimeToDuration converts a FILETIME duration value (100ns ticks)
// as returned for the kernel/user time fields of GetProcessTimes -
// these are *not* absolute timestamps, just elapsed-time counters in
// the same unit.
func filetimeToDuration(ft windows.Filetime) time.Duration {
	ticks := int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime)
	return time.Duration(ticks * 100)
}

func (p *spawnedProcess) ioCounters() (outcome.IOCounters, error) {
	var c windows.IO_COUNTERS
	if err := windows.GetProcessIoCounters(p.process, &c); err != nil {
		return outcome.IOCounters{}, err
	}
	return outcome.IOCounters{
		ReadOps:    c.ReadOperationCount,
		ReadBytes:  c.ReadTransferCount,
		WriteOps:   c.WriteOperationCount,
		WriteBytes: c.WriteTransferCount,
		OtherOps:   c.OtherOperationCount,
		OtherBytes: c.OtherTransferCount,
	}, nil
}

func (p *spawnedProcess) close() {
	windows.CloseHandle(p.thread)
	windows.CloseHandle(p.process)
}
