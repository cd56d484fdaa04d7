package usn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/mft"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := Record{
		USN:            123456,
		FRN:            mft.MakeFRN(42, 3),
		ParentFRN:      mft.MakeFRN(5, 1),
		Timestamp:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Reason:         0x00000002,
		SourceInfo:     0,
		SecurityID:     7,
		FileAttributes: 0x20,
		FileName:       "report.docx",
	}

	buf := Encode(r)
	decoded, consumed, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, r.USN, decoded.USN)
	assert.Equal(t, r.FRN, decoded.FRN)
	assert.Equal(t, r.ParentFRN, decoded.ParentFRN)
	assert.True(t, r.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, r.Reason, decoded.Reason)
	assert.Equal(t, r.SecurityID, decoded.SecurityID)
	assert.Equal(t, r.FileAttributes, decoded.FileAttributes)
	assert.Equal(t, r.FileName, decoded.FileName)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	buf := Encode(Record{FileName: "x"})
	buf[4] = 9 // corrupt MajorVersion
	_, _, err := Decode(buf)
	assert.ErrorIs(t, err, orcerr.ErrInvalidUsnHeader)
}
