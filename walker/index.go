package walker

import (
	"encoding/binary"
	"fmt"

	"github.com/evidentia/orc-core/mft"
)

const indexEntryLastFlag = 0x02
const indexEntrySubnodeFlag = 0x01

// indexRootHeader is the fixed-size prefix of a resident $INDEX_ROOT
// attribute, preceding its INDEX_HEADER and entries.
type indexRootHeader struct {
	bytesPerIndexRecord uint32
	entriesOffset       uint32
	indexLength         uint32
	allocatedSize       uint32
	hasAllocation       bool
}

func parseIndexRoot(data []byte) (indexRootHeader, []byte, error) {
	if len(data) < 32 {
		return indexRootHeader{}, nil, fmt.Errorf("walker: $INDEX_ROOT too short")
	}
	h := indexRootHeader{
		bytesPerIndexRecord: binary.LittleEndian.Uint32(data[8:12]),
		entriesOffset:       binary.LittleEndian.Uint32(data[16:20]),
		indexLength:         binary.LittleEndian.Uint32(data[20:24]),
		allocatedSize:       binary.LittleEndian.Uint32(data[24:28]),
		hasAllocation:       data[28]&0x01 != 0,
	}
	entriesStart := 16 + int(h.entriesOffset)
	if entriesStart > len(data) {
		return h, nil, fmt.Errorf("walker: $INDEX_ROOT entries offset out of bounds")
	}
	return h, data[entriesStart:], nil
}

// rawIndexEntry is one decoded $FILE_NAME-shaped index entry, before
// it's paired with the directory's own primary name for the callback.
type rawIndexEntry struct {
	fileRef mft.FRN
	fn      mft.FileNameAttr
	carved  bool
}

// parseLiveEntries decodes the well-formed entry chain starting at
// buf[0], stopping at the "last entry" terminator or first structural
// inconsistency. It reports how many bytes were consumed so the caller
// can treat everything after as slack worth carving.
func parseLiveEntries(buf []byte) (entries []rawIndexEntry, consumed int) {
	off := 0
	for off+16 <= len(buf) {
		fileRef := binary.LittleEndian.Uint64(buf[off : off+8])
		entryLen := binary.LittleEndian.Uint16(buf[off+8 : off+10])
		contentLen := binary.LittleEndian.Uint16(buf[off+10 : off+12])
		flags := binary.LittleEndian.Uint16(buf[off+12 : off+14])

		if entryLen < 16 || off+int(entryLen) > len(buf) {
			break
		}
		isLast := flags&indexEntryLastFlag != 0
		if !isLast && contentLen > 0 && off+16+int(contentLen) <= len(buf) {
			fn, err := mft.DecodeFileName(buf[off+16 : off+16+int(contentLen)])
			if err == nil {
				entries = append(entries, rawIndexEntry{fileRef: mft.FRN(fileRef), fn: fn})
			}
		}
		off += int(entryLen)
		if isLast {
			break
		}
	}
	return entries, off
}

// carveSlack scans the bytes past the declared end of live entries for
// additional $FILE_NAME-shaped entries left behind by deletion. It is a
// heuristic, not a parser: any 8-byte-aligned offset that decodes as a
// plausible entry (valid $FILE_NAME content, parent segment within the
// volume) is accepted and marked carved.
func carveSlack(buf []byte, maxSegment uint64) []rawIndexEntry {
	var out []rawIndexEntry
	seen := map[mft.FRN]bool{}
	for off := 0; off+16 <= len(buf); off += 8 {
		entryLen := binary.LittleEndian.Uint16(buf[off+8 : off+10])
		contentLen := binary.LittleEndian.Uint16(buf[off+10 : off+12])
		if entryLen < 16 || contentLen == 0 || off+16+int(contentLen) > len(buf) {
			continue
		}
		fileRef := mft.FRN(binary.LittleEndian.Uint64(buf[off : off+8]))
		if fileRef.Segment() == 0 || fileRef.Segment() > maxSegment {
			continue
		}
		fn, err := mft.DecodeFileName(buf[off+16 : off+16+int(contentLen)])
		if err != nil || fn.Name == "" {
			continue
		}
		if seen[fileRef] {
			continue
		}
		seen[fileRef] = true
		out = append(out, rawIndexEntry{fileRef: fileRef, fn: fn, carved: true})
	}
	return out
}

// collectDirectoryEntries decodes a directory record's $INDEX_ROOT
// entries plus, when present, its $INDEX_ALLOCATION index records,
// including carved recovery from each record's slack space.
func collectDirectoryEntries(store *mft.Store, attrs []mft.Attribute, maxSegment uint64) []rawIndexEntry {
	var root *mft.Attribute
	var alloc *mft.Attribute
	for i := range attrs {
		switch attrs[i].Kind {
		case mft.TypeIndexRoot:
			root = &attrs[i]
		case mft.TypeIndexAllocation:
			alloc = &attrs[i]
		}
	}
	if root == nil || root.NonResident {
		return nil
	}

	hdr, entriesBuf, err := parseIndexRoot(root.Resident)
	if err != nil {
		return nil
	}
	live, consumed := parseLiveEntries(entriesBuf)
	out := append([]rawIndexEntry(nil), live...)
	if allocEnd := int(hdr.allocatedSize); allocEnd > consumed && allocEnd <= len(entriesBuf) {
		out = append(out, carveSlack(entriesBuf[consumed:allocEnd], maxSegment)...)
	}

	if !hdr.hasAllocation || alloc == nil || hdr.bytesPerIndexRecord == 0 {
		return out
	}
	data, _, rErr := store.ReadAttributeData(*alloc)
	if rErr != nil {
		return out
	}
	recSize := int(hdr.bytesPerIndexRecord)
	for off := 0; off+recSize <= len(data); off += recSize {
		out = append(out, parseIndexRecord(data[off:off+recSize], maxSegment)...)
	}
	return out
}

// parseIndexRecord decodes one fixed-up $INDEX_ALLOCATION index record
// ("INDX" signature, its own USA fix-up, then an INDEX_HEADER).
func parseIndexRecord(raw []byte, maxSegment uint64) []rawIndexEntry {
	rec := append([]byte(nil), raw...)
	if len(rec) < 40 || string(rec[0:4]) != "INDX" {
		return nil
	}
	usaOffset := binary.LittleEndian.Uint16(rec[4:6])
	usaCount := binary.LittleEndian.Uint16(rec[6:8])
	if err := mft.ApplyFixup(rec, usaOffset, usaCount); err != nil {
		return nil
	}

	entriesOffset := binary.LittleEndian.Uint32(rec[24:28])
	allocatedSize := binary.LittleEndian.Uint32(rec[32:36])
	entriesStart := 24 + int(entriesOffset)
	if entriesStart > len(rec) {
		return nil
	}
	buf := rec[entriesStart:]
	live, consumed := parseLiveEntries(buf)
	out := append([]rawIndexEntry(nil), live...)

	slackEnd := int(allocatedSize) - (entriesStart - 24)
	if slackEnd > consumed && slackEnd <= len(buf) {
		out = append(out, carveSlack(buf[consumed:slackEnd], maxSegment)...)
	}
	return out
}
