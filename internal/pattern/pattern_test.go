package pattern

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	ts := time.Date(2021, 3, 4, 13, 5, 6, 0, time.UTC)
	id := uuid.New()

	got := Expand("{Name}_{ComputerName}_{SystemType}_{TimeStamp}_{RunId}.7z", Values{
		Name:         "NTFSInfo",
		ComputerName: "HOST1",
		SystemType:   Server,
		TimeStamp:    ts,
		RunID:        id,
	})

	assert.Equal(t, "NTFSInfo_HOST1_Server_20210304_130506_"+id.String()+".7z", got)
}

func TestExpandUnknownTokenLeftAlone(t *testing.T) {
	got := Expand("{Name}_{Unknown}.zip", Values{Name: "X"})
	assert.Equal(t, "X_{Unknown}.zip", got)
}

func TestInverseExtractRoundTrip(t *testing.T) {
	tmpl := "{Name}_{ComputerName}_{SystemType}_{TimeStamp}.7z"
	ts := time.Date(2021, 3, 4, 13, 5, 6, 0, time.UTC)

	built := Expand(tmpl, Values{
		Name:         "NTFSInfo",
		ComputerName: "HOST1",
		SystemType:   DomainController,
		TimeStamp:    ts,
	})

	computerName, systemType, timeStamp, err := InverseExtract(tmpl, built)
	require.NoError(t, err)
	assert.Equal(t, "HOST1", computerName)
	assert.Equal(t, DomainController, systemType)
	assert.True(t, timeStamp.Equal(ts))
}
