// Package config declares the typed configuration values the core
// consumes. Parsing them out of an on-disk XML document is an external
// collaborator's job; this package only defines the shapes that
// collaborator must populate.
package config

import (
	"time"

	"github.com/evidentia/orc-core/internal/pattern"
)

// Altitude controls DFIR-ORC_DEFAULT_ALTITUDE deduplication of volumes
// reachable through more than one location string.
type Altitude string

const (
	AltitudeLowest  Altitude = "lowest"
	AltitudeHighest Altitude = "highest"
	AltitudeExact   Altitude = "exact"
)

// ResurrectMode is the tri-valued policy for whether a deleted record
// still gets emitted once resurrected.
type ResurrectMode int

const (
	ResurrectNo ResurrectMode = iota
	ResurrectStrictOnly
	ResurrectBestEffort
)

func (m ResurrectMode) String() string {
	switch m {
	case ResurrectNo:
		return "no"
	case ResurrectStrictOnly:
		return "strict-only"
	case ResurrectBestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// RepeatPolicy controls how ExecutionSet resolves an archive name that
// already exists.
type RepeatPolicy int

const (
	RepeatCreateNew RepeatPolicy = iota
	RepeatOverwrite
	RepeatOnce
)

// ChildDebug is a tristate bool: unset, or explicitly set, falling
// back to a global default when unset.
type ChildDebug struct {
	set   bool
	value bool
}

func ChildDebugUnset() ChildDebug        { return ChildDebug{} }
func ChildDebugYes() ChildDebug          { return ChildDebug{set: true, value: true} }
func ChildDebugNo() ChildDebug           { return ChildDebug{set: true, value: false} }
func (c ChildDebug) IsSet() bool         { return c.set }
func (c ChildDebug) Resolve(def bool) bool {
	if !c.set {
		return def
	}
	return c.value
}

// JobLimits holds the per-job and per-process memory/CPU ceilings
// CommandAgent enforces via a Windows job object.
type JobLimits struct {
	PerJobMemoryBytes     uint64
	PerProcessMemoryBytes uint64
	PerJobCPUTime         time.Duration
	PerProcessCPUTime     time.Duration
	CPURatePercent        uint32 // 0 means unset
	CPUWeight             uint32 // 1-9, used when CPURatePercent is 0
	WallClock             time.Duration
}

// Recipient is an X.509 certificate used as a CMS enveloped-data
// recipient for an encrypted archive.
type Recipient struct {
	SubjectName string
	CertDER     []byte
}

// VolumeConfig addresses one volume to walk, via the location grammar
// volume.ParseLocation understands.
type VolumeConfig struct {
	Location          string
	SubPaths          []string // location filter: empty means "all"
	ResurrectMode      ResurrectMode
	Altitude          Altitude
}

// CommandConfig is one child process to run within an ExecutionSet.
type CommandConfig struct {
	Keyword      string
	Exe          string
	Args         []string
	Env          []string
	Optional     bool
	Timeout      time.Duration
	StdOut       bool
	StdErr       bool
	CombineOutErr bool
}

// ExecutionSetConfig is one ExecutionSet's full configuration.
type ExecutionSetConfig struct {
	Keyword           string
	ArchiveNamePattern string
	CompressionLevel  string // "fast" | "normal" | "max"
	Recipients        []Recipient
	TempDir           string
	OutputDir         string
	Repeat            RepeatPolicy
	Optional          bool
	Concurrency       int
	CommandTimeout    time.Duration
	ArchiveTimeout    time.Duration
	WallTimeout       time.Duration
	Restrictions      JobLimits
	ChildDebug        ChildDebug
	Commands          []CommandConfig
}

// PatternValues builds the token substitution set for this execution
// set's archive name, given host facts resolved elsewhere (out of core
// scope: WMI / OS queries).
func (c ExecutionSetConfig) PatternValues(computerName, fullComputerName string, systemType pattern.SystemType) pattern.Values {
	return pattern.Values{
		Name:             c.Keyword,
		ComputerName:     computerName,
		FullComputerName: fullComputerName,
		SystemType:       systemType,
	}
}
