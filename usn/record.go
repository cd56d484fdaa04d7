// Package usn decodes the NTFS USN change journal, online via
// FSCTL_ENUM_USN_DATA (FSCTL_READ_USN_JOURNAL is not used) or offline
// by parsing raw $UsnJrnl:$J bytes
package usn

import (
	"encoding/binary"
	"time"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/mft"
)

// v2HeaderSize is the fixed portion of a USN_RECORD_V2 before the
// variable-length file name.
const v2HeaderSize = 60

// v3HeaderSize is the fixed portion of a USN_RECORD_V3, whose file and
// parent references are 128-bit (segment + sequence + a second
// 64-bit word this package does not need).
const v3HeaderSize = 76

// Record is one decoded USN journal entry, version-independent.
type Record struct {
	USN            uint64
	FRN            mft.FRN
	ParentFRN      mft.FRN
	Timestamp      time.Time
	Reason         uint32
	SourceInfo     uint32
	SecurityID     uint32
	FileAttributes uint32
	FileName       string
}

const filetimeEpochDiff = 116444736000000000

func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	unix100ns := int64(ft) - filetimeEpochDiff
	return time.Unix(unix100ns/10000000, (unix100ns%10000000)*100).UTC()
}

func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	unix100ns := t.UnixNano() / 100
	return uint64(unix100ns + filetimeEpochDiff)
}

// Decode parses one USN record from the start of buf, returning the
// record and the number of bytes it occupies (its RecordLength field,
// rounded as stored — callers advance by this exact amount). Fails
// with ErrInvalidUsnHeader when buf is shorter than a header, the
// version is outside {2, 3}, the record length is implausible, or the
// file name lies outside the record.
func Decode(buf []byte) (Record, int, error) {
	if len(buf) < 8 {
		return Record{}, 0, orcerr.Wrap(orcerr.ErrInvalidUsnHeader, "usn: buffer shorter than a record header", nil)
	}
	recordLength := binary.LittleEndian.Uint32(buf[0:4])
	major := binary.LittleEndian.Uint16(buf[4:6])

	if major != 2 && major != 3 {
		return Record{}, 0, orcerr.Wrap(orcerr.ErrInvalidUsnHeader, "usn: major version outside {2,3}", nil)
	}
	if int(recordLength) < minHeaderSize(major) || int(recordLength) > len(buf) {
		return Record{}, 0, orcerr.Wrap(orcerr.ErrInvalidUsnHeader, "usn: implausible record length", nil)
	}

	rec := buf[:recordLength]
	var r Record
	var nameOffset, nameLength uint16

	switch major {
	case 2:
		r.FRN = mft.FRN(binary.LittleEndian.Uint64(rec[8:16]))
		r.ParentFRN = mft.FRN(binary.LittleEndian.Uint64(rec[16:24]))
		r.USN = binary.LittleEndian.Uint64(rec[24:32])
		r.Timestamp = filetimeToTime(binary.LittleEndian.Uint64(rec[32:40]))
		r.Reason = binary.LittleEndian.Uint32(rec[40:44])
		r.SourceInfo = binary.LittleEndian.Uint32(rec[44:48])
		r.SecurityID = binary.LittleEndian.Uint32(rec[48:52])
		r.FileAttributes = binary.LittleEndian.Uint32(rec[52:56])
		nameLength = binary.LittleEndian.Uint16(rec[56:58])
		nameOffset = binary.LittleEndian.Uint16(rec[58:60])
	case 3:
		// The 128-bit file/parent references carry a segment+sequence
		// pair in their low 64 bits, identical in layout to our FRN;
		// the high 64 bits (a per-volume object id extension) aren't
		// needed for path resolution and are dropped.
		r.FRN = mft.FRN(binary.LittleEndian.Uint64(rec[8:16]))
		r.ParentFRN = mft.FRN(binary.LittleEndian.Uint64(rec[24:32]))
		r.USN = binary.LittleEndian.Uint64(rec[40:48])
		r.Timestamp = filetimeToTime(binary.LittleEndian.Uint64(rec[48:56]))
		r.Reason = binary.LittleEndian.Uint32(rec[56:60])
		r.SourceInfo = binary.LittleEndian.Uint32(rec[60:64])
		r.SecurityID = binary.LittleEndian.Uint32(rec[64:68])
		r.FileAttributes = binary.LittleEndian.Uint32(rec[68:72])
		nameLength = binary.LittleEndian.Uint16(rec[72:74])
		nameOffset = binary.LittleEndian.Uint16(rec[74:76])
	}

	nameStart := int(nameOffset)
	nameEnd := nameStart + int(nameLength)
	if nameStart < 0 || nameEnd > len(rec) {
		return Record{}, 0, orcerr.Wrap(orcerr.ErrInvalidUsnHeader, "usn: file name out of bounds", nil)
	}
	r.FileName = utf16Decode(rec[nameStart:nameEnd])

	return r, int(recordLength), nil
}

func minHeaderSize(major uint16) int {
	if major == 3 {
		return v3HeaderSize
	}
	return v2HeaderSize
}

// Encode renders r as a USN_RECORD_V2, padded to an 8-byte boundary as
// on-disk records are.
func Encode(r Record) []byte {
	nameBytes := utf16Encode(r.FileName)
	unpadded := v2HeaderSize + len(nameBytes)
	padded := (unpadded + 7) &^ 7

	buf := make([]byte, padded)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(padded))
	binary.LittleEndian.PutUint16(buf[4:6], 2)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.FRN))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(r.ParentFRN))
	binary.LittleEndian.PutUint64(buf[24:32], r.USN)
	binary.LittleEndian.PutUint64(buf[32:40], timeToFiletime(r.Timestamp))
	binary.LittleEndian.PutUint32(buf[40:44], r.Reason)
	binary.LittleEndian.PutUint32(buf[44:48], r.SourceInfo)
	binary.LittleEndian.PutUint32(buf[48:52], r.SecurityID)
	binary.LittleEndian.PutUint32(buf[52:56], r.FileAttributes)
	binary.LittleEndian.PutUint16(buf[56:58], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(buf[58:60], v2HeaderSize)
	copy(buf[v2HeaderSize:], nameBytes)
	return buf
}

func utf16Decode(b []byte) string {
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16ToRunes(u16))
}

func utf16ToRunes(u16 []uint16) []rune {
	out := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		r := rune(u16[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u16) {
			lo := rune(u16[i+1])
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r = ((r - 0xD800) << 10) + (lo - 0xDC00) + 0x10000
				i++
			}
		}
		out = append(out, r)
	}
	return out
}

func utf16Encode(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		if r < 0x10000 {
			out = appendUint16(out, uint16(r))
			continue
		}
		r -= 0x10000
		hi := uint16(0xD800 + (r >> 10))
		lo := uint16(0xDC00 + (r & 0x3FF))
		out = appendUint16(out, hi)
		out = appendUint16(out, lo)
	}
	return out
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}
