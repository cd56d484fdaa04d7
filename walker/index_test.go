package walker

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/mft"
)

// buildFileNameContent builds the resident payload mft.DecodeFileName
// expects: a parent FRN, four zeroed timestamps, sizes, attrs, and a
// UTF-16LE name.
func buildFileNameContent(parent mft.FRN, name string) []byte {
	u16 := utf16Encode(name)
	buf := make([]byte, 66+len(u16))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(parent))
	buf[64] = byte(len(name))
	buf[65] = 1 // Win32 namespace
	copy(buf[66:], u16)
	return buf
}

func utf16Encode(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		if r > 0xFFFF {
			r = '?'
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(r))
		out = append(out, b...)
	}
	return out
}

// buildIndexEntry builds one well-formed index entry: an 8-byte
// FileReference, a 2-byte entry length, a 2-byte content length, a
// 2-byte flags field, 2 bytes reserved, then the $FILE_NAME content.
func buildIndexEntry(fileRef mft.FRN, content []byte, lastEntry bool) []byte {
	entryLen := 16 + len(content)
	buf := make([]byte, entryLen)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(fileRef))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(entryLen))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(content)))
	if lastEntry {
		binary.LittleEndian.PutUint16(buf[12:14], indexEntryLastFlag)
	}
	copy(buf[16:], content)
	return buf
}

func buildTerminatorEntry() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[8:10], 16)
	binary.LittleEndian.PutUint16(buf[12:14], indexEntryLastFlag)
	return buf
}

func TestParseLiveEntriesTwoEntriesThenTerminator(t *testing.T) {
	e1 := buildIndexEntry(mft.MakeFRN(20, 1), buildFileNameContent(mft.RootFRN, "alpha.txt"), false)
	e2 := buildIndexEntry(mft.MakeFRN(21, 1), buildFileNameContent(mft.RootFRN, "beta.txt"), false)
	term := buildTerminatorEntry()

	buf := append(append(append([]byte{}, e1...), e2...), term...)
	entries, consumed := parseLiveEntries(buf)

	require.Len(t, entries, 2)
	assert.Equal(t, "alpha.txt", entries[0].fn.Name)
	assert.Equal(t, "beta.txt", entries[1].fn.Name)
	assert.Equal(t, len(buf), consumed)
}

func TestParseLiveEntriesStopsOnBadLength(t *testing.T) {
	buf := []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(buf[8:10], 0) // entryLen 0 is invalid
	entries, consumed := parseLiveEntries(buf)
	assert.Empty(t, entries)
	assert.Equal(t, 0, consumed)
}

func TestCarveSlackRecoversOrphanedEntry(t *testing.T) {
	orphan := buildIndexEntry(mft.MakeFRN(99, 2), buildFileNameContent(mft.RootFRN, "deleted.doc"), false)
	// Pad so the orphan starts at an 8-byte-aligned offset within slack.
	slack := append(make([]byte, 8), orphan...)

	found := carveSlack(slack, 10_000)
	require.Len(t, found, 1)
	assert.True(t, found[0].carved)
	assert.Equal(t, "deleted.doc", found[0].fn.Name)
	assert.Equal(t, mft.MakeFRN(99, 2), found[0].fileRef)
}

func TestCarveSlackRejectsSegmentBeyondBound(t *testing.T) {
	orphan := buildIndexEntry(mft.MakeFRN(99, 2), buildFileNameContent(mft.RootFRN, "deleted.doc"), false)
	found := carveSlack(orphan, 10) // maxSegment well below 99
	assert.Empty(t, found)
}

func TestParseIndexRootLocatesEntries(t *testing.T) {
	entry := buildIndexEntry(mft.MakeFRN(5, 1), buildFileNameContent(mft.RootFRN, "dir"), false)
	term := buildTerminatorEntry()
	entries := append(append([]byte{}, entry...), term...)

	data := make([]byte, 32)
	binary.LittleEndian.PutUint32(data[8:12], 4096)             // bytesPerIndexRecord
	binary.LittleEndian.PutUint32(data[16:20], 16)               // entriesOffset (relative to byte 16)
	binary.LittleEndian.PutUint32(data[20:24], uint32(len(entries)))
	binary.LittleEndian.PutUint32(data[24:28], uint32(len(entries)))
	data = append(data, entries...)

	hdr, buf, err := parseIndexRoot(data)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, hdr.bytesPerIndexRecord)
	live, _ := parseLiveEntries(buf)
	require.Len(t, live, 1)
	assert.Equal(t, "dir", live[0].fn.Name)
}
