//go:build windows

package job

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// jobobjectBasicLimitInformation mirrors JOBOBJECT_BASIC_LIMIT_INFORMATION,
// which golang.org/x/sys/windows declares the flag constants for but not
// the struct itself; the layout is fixed by the Windows ABI so it is
// reproduced here rather than pulled in from another dependency.
type jobobjectBasicLimitInformation struct {
	PerProcessUserTimeLimit int64
	PerJobUserTimeLimit     int64
	LimitFlags              uint32
	MinimumWorkingSetSize   uintptr
	MaximumWorkingSetSize   uintptr
	ActiveProcessLimit      uint32
	Affinity                uintptr
	PriorityClass           uint32
	SchedulingClass         uint32
}

type jobobjectExtendedLimitInformation struct {
	BasicLimitInformation jobobjectBasicLimitInformation
	IoInfo                windows.IO_COUNTERS
	ProcessMemoryLimit    uintptr
	JobMemoryLimit        uintptr
	PeakProcessMemoryUsed uintptr
	PeakJobMemoryUsed     uintptr
}

type jobobjectBasicAndIoAccountingInformation struct {
	BasicInfo jobobjectBasicAccountingInformation
	IoInfo    windows.IO_COUNTERS
}

type jobobjectBasicAccountingInformation struct {
	TotalUserTime             int64
	TotalKernelTime           int64
	ThisPeriodTotalUserTime   int64
	ThisPeriodTotalKernelTime int64
	TotalPageFaultCount       uint32
	TotalProcesses            uint32
	ActiveProcesses           uint32
	TotalTerminatedProcesses  uint32
}

const (
	jobObjectExtendedLimitInformation        = 9
	jobObjectBasicAndIoAccountingInformation = 8
)

// jobObject owns the Windows job handle every spawned child is
// assigned to: "Owns a job object that contains every
// child process".
type jobObject struct {
	handle windows.Handle
}

func newJobObject(limits Limits) (*jobObject, error) {
	h, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrConfig, "job: CreateJobObject", err)
	}
	jo := &jobObject{handle: h}
	if err := jo.applyLimits(limits); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	return jo, nil
}

func (jo *jobObject) applyLimits(limits Limits) error {
	var info jobobjectExtendedLimitInformation
	var flags uint32

	if limits.PerJobMemoryBytes > 0 {
		info.JobMemoryLimit = uintptr(limits.PerJobMemoryBytes)
		flags |= windows.JOB_OBJECT_LIMIT_JOB_MEMORY
	}
	if limits.PerProcessMemoryBytes > 0 {
		info.ProcessMemoryLimit = uintptr(limits.PerProcessMemoryBytes)
		flags |= windows.JOB_OBJECT_LIMIT_PROCESS_MEMORY
	}
	if limits.PerJobCPUTime > 0 {
		info.BasicLimitInformation.PerJobUserTimeLimit = limits.PerJobCPUTime.Microseconds() * 10
		flags |= windows.JOB_OBJECT_LIMIT_JOB_TIME
	}
	if limits.PerProcessCPUTime > 0 {
		info.BasicLimitInformation.PerProcessUserTimeLimit = limits.PerProcessCPUTime.Microseconds() * 10
		flags |= windows.JOB_OBJECT_LIMIT_PROCESS_TIME
	}
	// Every spawned child is allowed to break away and must die if it
	// raises an unhandled exception step 3.
	flags |= windows.JOB_OBJECT_LIMIT_BREAKAWAY_OK
	flags |= windows.JOB_OBJECT_LIMIT_DIE_ON_UNHANDLED_EXCEPTION
	flags |= windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
	info.BasicLimitInformation.LimitFlags = flags

	_, err := windows.SetInformationJobObject(
		jo.handle,
		jobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		return orcerr.Wrap(orcerr.ErrConfig, "job: SetInformationJobObject", err)
	}
	return nil
}

func (jo *jobObject) assign(processHandle windows.Handle) error {
	if err := windows.AssignProcessToJobObject(jo.handle, processHandle); err != nil {
		return orcerr.Wrap(orcerr.ErrIo, "job: AssignProcessToJobObject", err)
	}
	return nil
}

// assignToJob is the platform-agnostic entry point agent.go calls
// right after spawning a suspended process.
func assignToJob(jo *jobObject, p *spawnedProcess) error {
	return jo.assign(p.process)
}

func (jo *jobObject) terminateAll() error {
	return windows.TerminateJobObject(jo.handle, 1)
}

func (jo *jobObject) close() error {
	return windows.CloseHandle(jo.handle)
}

// accounting reads JOBOBJECT_BASIC_AND_IO_ACCOUNTING_INFORMATION, the
// source for OutcomeJournal's job_stats /
func (jo *jobObject) accounting() (jobobjectBasicAndIoAccountingInformation, error) {
	var info jobobjectBasicAndIoAccountingInformation
	var retLen uint32
	err := windows.QueryInformationJobObject(
		jo.handle,
		jobObjectBasicAndIoAccountingInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
		&retLen,
	)
	if err != nil {
		return info, orcerr.Wrap(orcerr.ErrIo, "job: QueryInformationJobObject", err)
	}
	return info, nil
}
