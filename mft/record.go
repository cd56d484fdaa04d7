package mft

import (
	"encoding/binary"

	"github.com/evidentia/orc-core/internal/orcerr"
)

const (
	recordSignature = "FILE"
	subSectorSize   = 512
)

// Flags on Record.Flags.
const (
	FlagInUse        uint16 = 0x0001
	FlagIsDirectory  uint16 = 0x0002
)

// Record is the decoded, fix-up-verified view of one MFT record. Its
// Raw buffer has already had the update-sequence-array substitution
// applied, so attribute parsing never sees the fix-up stamp bytes.
type Record struct {
	Raw             []byte
	Segment         uint64 // this record's own segment index, from the caller (store keys by it)
	SequenceNumber  uint16
	Flags           uint16
	BaseFileRecord  FRN // non-zero iff this is a continuation record
	FirstAttrOffset uint16
	UsedSize        uint32
}

func (r *Record) InUse() bool       { return r.Flags&FlagInUse != 0 }
func (r *Record) IsDirectory() bool { return r.Flags&FlagIsDirectory != 0 }
func (r *Record) IsBase() bool      { return r.BaseFileRecord == 0 }

// ParseRecord decodes and fix-up-verifies one MFT record occupying raw.
// raw must be exactly recordSize bytes (the volume's declared MFT record
// size); it is mutated in place to apply the USA substitution.
func ParseRecord(raw []byte, segment uint64) (*Record, error) {
	if len(raw) < 48 || string(raw[0:4]) != recordSignature {
		return nil, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: bad record signature", nil)
	}

	usaOffset := binary.LittleEndian.Uint16(raw[4:6])
	usaCount := binary.LittleEndian.Uint16(raw[6:8])

	if err := applyFixup(raw, usaOffset, usaCount); err != nil {
		return nil, err
	}

	seq := binary.LittleEndian.Uint16(raw[16:18])
	attrOffset := binary.LittleEndian.Uint16(raw[20:22])
	flags := binary.LittleEndian.Uint16(raw[22:24])
	usedSize := binary.LittleEndian.Uint32(raw[24:28])
	baseRef := binary.LittleEndian.Uint64(raw[32:40])

	return &Record{
		Raw:             raw,
		Segment:         segment,
		SequenceNumber:  seq,
		Flags:           flags,
		BaseFileRecord:  FRN(baseRef),
		FirstAttrOffset: attrOffset,
		UsedSize:        usedSize,
	}, nil
}

// ApplyFixup verifies and substitutes the update-sequence-array fix-up
// on any NTFS structure sharing the MFT record's USA layout (index
// records use the same scheme), given the usaOffset/usaCount fields
// read from that structure's own header.
func ApplyFixup(raw []byte, usaOffset, usaCount uint16) error {
	return applyFixup(raw, usaOffset, usaCount)
}

// applyFixup replaces the last two bytes of every 512-byte sub-sector
// with the corresponding entry from the update sequence array, after
// verifying each sub-sector's current last two bytes equal the USN
// stamp (the array's first uint16). A mismatch means the record was
// read inconsistently (e.g. torn write) and fails with ErrCorruptFixup.
func applyFixup(raw []byte, usaOffset, usaCount uint16) error {
	if usaCount == 0 {
		return nil
	}
	usaStart := int(usaOffset)
	if usaStart+int(usaCount)*2 > len(raw) {
		return orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: update sequence array out of bounds", nil)
	}
	stamp := binary.LittleEndian.Uint16(raw[usaStart : usaStart+2])

	numSectors := int(usaCount) - 1
	for i := 0; i < numSectors; i++ {
		sectorEnd := (i+1)*subSectorSize - 2
		if sectorEnd+2 > len(raw) {
			break
		}
		cur := binary.LittleEndian.Uint16(raw[sectorEnd : sectorEnd+2])
		if cur != stamp {
			return orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: fix-up stamp mismatch", nil)
		}
		entryOff := usaStart + 2 + i*2
		copy(raw[sectorEnd:sectorEnd+2], raw[entryOff:entryOff+2])
	}
	return nil
}
