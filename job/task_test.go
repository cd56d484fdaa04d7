package job

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInit:      "Init",
		StateQueued:    "Queued",
		StateRunning:   "Running",
		StateDone:      "Done",
		StateFailed:    "Failed",
		StateCancelled: "Cancelled",
		State(99):      "Unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestBuildCommandLineJoinsWithSpaces(t *testing.T) {
	line, err := buildCommandLine("orc.exe", []string{"/Out", "C:\\out", "/Config", "cfg.xml"})
	require.NoError(t, err)
	assert.Equal(t, `orc.exe /Out C:\out /Config cfg.xml`, line)
}

func TestBuildCommandLineNoArgs(t *testing.T) {
	line, err := buildCommandLine("orc.exe", nil)
	require.NoError(t, err)
	assert.Equal(t, "orc.exe", line)
}

func TestBuildCommandLineTooLong(t *testing.T) {
	huge := strings.Repeat("a", maxCommandLineLength+1)
	_, err := buildCommandLine(huge, nil)
	require.Error(t, err)
}

func TestBuildCommandLineAtLimitSucceeds(t *testing.T) {
	exe := strings.Repeat("a", maxCommandLineLength)
	line, err := buildCommandLine(exe, nil)
	require.NoError(t, err)
	assert.Len(t, line, maxCommandLineLength)
}
