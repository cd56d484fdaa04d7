package usn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/mft"
	"github.com/evidentia/orc-core/pathresolve"
)

func TestParseOfflineEntirelySparse(t *testing.T) {
	data := make([]byte, 64*1024)
	recs, err := ParseOffline(data)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseOfflineFindsRecordsAmongGaps(t *testing.T) {
	data := make([]byte, 64*1024)

	r1 := Record{USN: 10, FRN: mft.MakeFRN(100, 1), ParentFRN: mft.RootFRN, FileName: "a.txt"}
	r2 := Record{USN: 20, FRN: mft.MakeFRN(200, 1), ParentFRN: mft.RootFRN, FileName: "b.txt"}
	r3 := Record{USN: 30, FRN: mft.MakeFRN(300, 1), ParentFRN: mft.RootFRN, FileName: "c.txt"}

	place(t, data, 12, r1)
	place(t, data, 40960, r2)
	place(t, data, 60000, r3)

	recs, err := ParseOffline(data)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a.txt", recs[0].FileName)
	assert.Equal(t, "b.txt", recs[1].FileName)
	assert.Equal(t, "c.txt", recs[2].FileName)
}

func place(t *testing.T, data []byte, offset int, r Record) {
	t.Helper()
	buf := Encode(r)
	require.LessOrEqual(t, offset+len(buf), len(data))
	copy(data[offset:], buf)
}

func TestResolvePathUsesPlaceholderUntilParentKnown(t *testing.T) {
	idx := pathresolve.NewIndex(nil)
	orphan := Record{FRN: mft.MakeFRN(50, 1), ParentFRN: mft.MakeFRN(999, 1), FileName: "orphan.txt"}

	Remember(idx, orphan)
	path := ResolvePath(idx, orphan, `\\.\Volume{0}`)
	assert.Contains(t, path, mft.MakeFRN(999, 1).Placeholder())

	idx.Remember(mft.MakeFRN(999, 1), mft.RootFRN, "recovered-dir")
	resolved := ResolvePath(idx, orphan, `\\.\Volume{0}`)
	assert.Equal(t, `\\.\Volume{0}\recovered-dir\orphan.txt`, resolved)
}
