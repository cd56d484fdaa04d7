package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evidentia/orc-core/internal/config"
)

func TestDedupLowestKeepsShallowest(t *testing.T) {
	in := []Candidate{
		{Location: `C:\`, Serial: 1, Depth: 0},
		{Location: `\\.\PhysicalDrive0,offset=0,size=100`, Serial: 1, Depth: 2},
	}
	out := Dedup(in, config.AltitudeLowest)
	assert := assert.New(t)
	assert.Len(out, 1)
	assert.Equal(`C:\`, out[0].Location)
}

func TestDedupHighestKeepsDeepest(t *testing.T) {
	in := []Candidate{
		{Location: `C:\`, Serial: 1, Depth: 0},
		{Location: `\\.\PhysicalDrive0,offset=0,size=100`, Serial: 1, Depth: 2},
	}
	out := Dedup(in, config.AltitudeHighest)
	assert := assert.New(t)
	assert.Len(out, 1)
	assert.Equal(`\\.\PhysicalDrive0,offset=0,size=100`, out[0].Location)
}

func TestDedupExactKeepsAll(t *testing.T) {
	in := []Candidate{
		{Location: "a", Serial: 1, Depth: 0},
		{Location: "b", Serial: 1, Depth: 2},
	}
	out := Dedup(in, config.AltitudeExact)
	assert.Len(t, out, 2)
}
