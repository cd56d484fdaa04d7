package mft

import (
	"encoding/binary"
	"time"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// TypeCode is an NTFS attribute type code.
type TypeCode uint32

const (
	TypeStandardInformation TypeCode = 0x10
	TypeAttributeList       TypeCode = 0x20
	TypeFileName            TypeCode = 0x30
	TypeObjectID            TypeCode = 0x40
	TypeSecurityDescriptor  TypeCode = 0x50
	TypeVolumeName          TypeCode = 0x60
	TypeVolumeInformation   TypeCode = 0x70
	TypeData                TypeCode = 0x80
	TypeIndexRoot           TypeCode = 0x90
	TypeIndexAllocation     TypeCode = 0xA0
	TypeBitmap              TypeCode = 0xB0
	TypeReparsePoint        TypeCode = 0xC0
	TypeEAInformation       TypeCode = 0xD0
	TypeEA                  TypeCode = 0xE0
	TypeLoggedUtilityStream TypeCode = 0x100
	typeEndMarker           TypeCode = 0xFFFFFFFF
)

func (t TypeCode) String() string {
	switch t {
	case TypeStandardInformation:
		return "$STANDARD_INFORMATION"
	case TypeAttributeList:
		return "$ATTRIBUTE_LIST"
	case TypeFileName:
		return "$FILE_NAME"
	case TypeObjectID:
		return "$OBJECT_ID"
	case TypeSecurityDescriptor:
		return "$SECURITY_DESCRIPTOR"
	case TypeVolumeName:
		return "$VOLUME_NAME"
	case TypeVolumeInformation:
		return "$VOLUME_INFORMATION"
	case TypeData:
		return "$DATA"
	case TypeIndexRoot:
		return "$INDEX_ROOT"
	case TypeIndexAllocation:
		return "$INDEX_ALLOCATION"
	case TypeBitmap:
		return "$BITMAP"
	case TypeReparsePoint:
		return "$REPARSE_POINT"
	case TypeEAInformation:
		return "$EA_INFORMATION"
	case TypeEA:
		return "$EA"
	case TypeLoggedUtilityStream:
		return "$LOGGED_UTILITY_STREAM"
	default:
		return "$UNKNOWN"
	}
}

// Run is one (vcn, lcn, length) triple of a non-resident attribute's
// run list, mapping a virtual cluster run onto a logical cluster run.
// Sparse runs have Sparse set and LCN zero.
type Run struct {
	VCN    uint64
	LCN    uint64
	Length uint64
	Sparse bool
}

// Attribute is one decoded attribute header plus its form-specific
// payload: resident inline bytes, or a non-resident run list.
type Attribute struct {
	Kind     TypeCode
	Name     string // "" for the unnamed/default stream
	Instance uint16
	Flags    uint16

	NonResident bool
	Resident    []byte // valid iff !NonResident

	Runs         []Run // valid iff NonResident
	LowestVCN    uint64
	HighestVCN   uint64
	AllocatedSize uint64
	RealSize     uint64
	Truncated    bool // short read hit EOF before HighestVCN
}

// NameHash is a cheap dedup key across records in an attribute list
// chain: type code is not enough since a file can have several $DATA
// streams distinguished only by name.
func (a Attribute) NameHash() uint64 {
	var h uint64 = 1469598103934665603
	for _, c := range a.Name {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// ParseAttributes walks rec's attribute stream from FirstAttrOffset to
// the 0xFFFFFFFF end marker (or UsedSize), decoding each attribute
// header in place.
func ParseAttributes(rec *Record) ([]Attribute, error) {
	var out []Attribute
	off := int(rec.FirstAttrOffset)
	raw := rec.Raw
	limit := len(raw)
	if int(rec.UsedSize) <= limit && rec.UsedSize > 0 {
		limit = int(rec.UsedSize)
	}

	for off+4 <= limit {
		kind := TypeCode(binary.LittleEndian.Uint32(raw[off : off+4]))
		if kind == typeEndMarker {
			break
		}
		if off+8 > limit {
			break
		}
		length := binary.LittleEndian.Uint32(raw[off+4 : off+8])
		if length == 0 || off+int(length) > limit {
			return out, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: attribute header overruns record", nil)
		}
		attr, err := parseOneAttribute(raw[off : off+int(length)])
		if err != nil {
			return out, err
		}
		out = append(out, attr)
		off += int(length)
	}
	return out, nil
}

func parseOneAttribute(h []byte) (Attribute, error) {
	nonResident := h[8] != 0
	nameLen := int(h[9])
	nameOffset := binary.LittleEndian.Uint16(h[10:12])
	flags := binary.LittleEndian.Uint16(h[12:14])
	instance := binary.LittleEndian.Uint16(h[14:16])
	kind := TypeCode(binary.LittleEndian.Uint32(h[0:4]))

	var name string
	if nameLen > 0 {
		name = utf16Decode(h[nameOffset : int(nameOffset)+nameLen*2])
	}

	a := Attribute{Kind: kind, Name: name, Instance: instance, Flags: flags, NonResident: nonResident}

	if !nonResident {
		if len(h) < 24 {
			return a, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: resident attribute header too short", nil)
		}
		valLen := binary.LittleEndian.Uint32(h[16:20])
		valOff := binary.LittleEndian.Uint16(h[20:22])
		if int(valOff)+int(valLen) > len(h) {
			return a, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: resident attribute value out of bounds", nil)
		}
		a.Resident = append([]byte(nil), h[valOff:int(valOff)+int(valLen)]...)
		return a, nil
	}

	if len(h) < 64 {
		return a, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: non-resident attribute header too short", nil)
	}
	a.LowestVCN = binary.LittleEndian.Uint64(h[16:24])
	a.HighestVCN = binary.LittleEndian.Uint64(h[24:32])
	runOffset := binary.LittleEndian.Uint16(h[32:34])
	a.AllocatedSize = binary.LittleEndian.Uint64(h[40:48])
	a.RealSize = binary.LittleEndian.Uint64(h[48:56])

	runs, err := parseRunList(h[runOffset:], a.LowestVCN)
	if err != nil {
		return a, err
	}
	a.Runs = runs
	return a, nil
}

// parseRunList decodes the run-list byte stream starting at vcn base.
func parseRunList(buf []byte, base uint64) ([]Run, error) {
	var runs []Run
	vcn := base
	var lcn int64
	i := 0
	for i < len(buf) {
		header := buf[i]
		if header == 0 {
			break
		}
		lenBytes := int(header & 0x0F)
		offBytes := int(header >> 4)
		i++
		if i+lenBytes > len(buf) {
			return nil, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: run list length field out of bounds", nil)
		}
		length := readUintLE(buf[i : i+lenBytes])
		i += lenBytes

		sparse := offBytes == 0
		var deltaLCN int64
		if !sparse {
			if i+offBytes > len(buf) {
				return nil, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: run list offset field out of bounds", nil)
			}
			deltaLCN = readIntLE(buf[i : i+offBytes])
			i += offBytes
			lcn += deltaLCN
		}

		r := Run{VCN: vcn, Length: length, Sparse: sparse}
		if !sparse {
			r.LCN = uint64(lcn)
		}
		runs = append(runs, r)
		vcn += length
	}
	return runs, nil
}

func readUintLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

func readIntLE(b []byte) int64 {
	v := readUintLE(b)
	// Sign-extend from the top byte present.
	bits := uint(len(b) * 8)
	if bits < 64 && b[len(b)-1]&0x80 != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
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

// Namespace is the $FILE_NAME namespace flag.
type Namespace uint8

const (
	NamespacePOSIX      Namespace = 0
	NamespaceWin32       Namespace = 1
	NamespaceDOS83       Namespace = 2
	NamespaceWin32AndDOS Namespace = 3
)

// FileNameAttr is the decoded form of a resident $FILE_NAME attribute.
type FileNameAttr struct {
	Parent      FRN
	Created     time.Time
	Modified    time.Time
	MFTModified time.Time
	Accessed    time.Time
	AllocSize   uint64
	RealSize    uint64
	FileAttrs   uint32
	Namespace   Namespace
	Name        string
}

// DecodeFileName parses the resident payload of a $FILE_NAME attribute.
func DecodeFileName(resident []byte) (FileNameAttr, error) {
	if len(resident) < 66 {
		return FileNameAttr{}, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: $FILE_NAME attribute too short", nil)
	}
	parent := binary.LittleEndian.Uint64(resident[0:8])
	created := filetimeToTime(binary.LittleEndian.Uint64(resident[8:16]))
	modified := filetimeToTime(binary.LittleEndian.Uint64(resident[16:24]))
	mftModified := filetimeToTime(binary.LittleEndian.Uint64(resident[24:32]))
	accessed := filetimeToTime(binary.LittleEndian.Uint64(resident[32:40]))
	allocSize := binary.LittleEndian.Uint64(resident[40:48])
	realSize := binary.LittleEndian.Uint64(resident[48:56])
	fileAttrs := binary.LittleEndian.Uint32(resident[56:60])
	nameLen := int(resident[64])
	ns := Namespace(resident[65])
	if 66+nameLen*2 > len(resident) {
		return FileNameAttr{}, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: $FILE_NAME name overruns attribute", nil)
	}
	name := utf16Decode(resident[66 : 66+nameLen*2])

	return FileNameAttr{
		Parent:      FRN(parent),
		Created:     created,
		Modified:    modified,
		MFTModified: mftModified,
		Accessed:    accessed,
		AllocSize:   allocSize,
		RealSize:    realSize,
		FileAttrs:   fileAttrs,
		Namespace:   ns,
		Name:        name,
	}, nil
}

// filetimeEpochDiff is the number of 100ns intervals between the
// Windows FILETIME epoch (1601-01-01) and the Unix epoch.
const filetimeEpochDiff = 116444736000000000

func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	unix100ns := int64(ft) - filetimeEpochDiff
	return time.Unix(unix100ns/10000000, (unix100ns%10000000)*100).UTC()
}
