package outcome

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginSetAppendAndSerialize(t *testing.T) {
	j := New()
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	h := j.BeginSet("NTFSInfo", InputRunning, start)

	h.AppendCommand(CommandOutcome{
		Keyword:    "NTFSInfo",
		PID:        1234,
		CreatedUTC: start,
		ExitedUTC:  start.Add(time.Second),
		ExitCode:   0,
	})
	h.SetArchive(ArchiveOutcome{Name: "NTFSInfo.7z", Size: 100, SHA1: "abc", InputType: InputRunning})
	h.End(start.Add(2*time.Second), JobStats{Processes: 1, ActiveProcesses: 0, TerminatedProcesses: 1})

	data, err := j.Serialize()
	require.NoError(t, err)

	var decoded []SetOutcome
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "NTFSInfo", decoded[0].Keyword)
	assert.Len(t, decoded[0].Commands, 1)
	assert.Equal(t, "NTFSInfo.7z", decoded[0].Archive.Name)
	assert.Equal(t, uint32(1), decoded[0].JobStats.Processes)
}

func TestFindSetAfterMultipleBegins(t *testing.T) {
	j := New()
	j.BeginSet("A", InputOffline, time.Now())
	j.BeginSet("B", InputOffline, time.Now())

	set, ok := j.FindSet("B")
	require.True(t, ok)
	assert.Equal(t, "B", set.Keyword)

	_, ok = j.FindSet("missing")
	assert.False(t, ok)
}

func TestCommandExitedAfterCreated(t *testing.T) {
	j := New()
	h := j.BeginSet("C", InputRunning, time.Now())
	created := time.Now()
	h.AppendCommand(CommandOutcome{CreatedUTC: created, ExitedUTC: created.Add(time.Millisecond)})

	set, _ := j.FindSet("C")
	require.Len(t, set.Commands, 1)
	assert.True(t, set.Commands[0].ExitedUTC.After(set.Commands[0].CreatedUTC) || set.Commands[0].ExitedUTC.Equal(set.Commands[0].CreatedUTC))
}
