package mft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFRNSegmentSequence(t *testing.T) {
	f := MakeFRN(5, 3)
	assert.EqualValues(t, 5, f.Segment())
	assert.EqualValues(t, 3, f.Sequence())
}

func TestRootFRN(t *testing.T) {
	assert.EqualValues(t, 5, RootFRN.Segment())
}

func TestPlaceholder(t *testing.T) {
	f := MakeFRN(0x10, 0)
	assert.Equal(t, `__0000000000000010__\`, f.Placeholder())
}
