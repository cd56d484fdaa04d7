package volume

import (
	"encoding/binary"
	"fmt"
)

// bootSectorSize is the canonical first-sector size parsed for geometry;
// actual sector size is re-read from the struct itself once decoded.
const bootSectorSize = 512

// ntfsOEMOffset/refsOEMOffset: NTFS and ReFS share enough of their boot
// sector layout that the filesystem type can be discriminated on bytes
// 3..=10 (the OEM ID
// field). NTFS stamps "NTFS    "; ReFS's boot sector carries a distinct
// signature in the same byte range while keeping BPB-compatible fields
// at the same offsets fsck tooling expects.
const (
	oemOffset = 3
	oemLen    = 8
)

var ntfsOEM = [8]byte{'N', 'T', 'F', 'S', ' ', ' ', ' ', ' '}

// parsedBootSector is the decoded subset of the boot sector geometry
// needs. Fields follow the NTFS $Boot layout; ReFS volumes are decoded
// with the same offsets where they're BPB-compatible (sector/cluster
// size, reserved sectors) and their own superblock for the rest, which
// is out of this engine's NTFS-only scope beyond FsType detection.
type parsedBootSector struct {
	bytesPerSector    uint16
	sectorsPerCluster uint8
	mftStartLCN       uint64
	mftRecordSize     int8 // NTFS encodes record size as signed: positive = clusters, negative = 2^|n| bytes
	serial            uint64
	kind              FsKind
}

// parseBootSector decodes geometry from the first sector of a volume.
// raw must be at least bootSectorSize bytes.
func parseBootSector(raw []byte) (parsedBootSector, error) {
	if len(raw) < bootSectorSize {
		return parsedBootSector{}, fmt.Errorf("volume: boot sector short read (%d bytes)", len(raw))
	}

	var oem [8]byte
	copy(oem[:], raw[oemOffset:oemOffset+oemLen])

	kind := detectKind(oem, raw)

	bps := binary.LittleEndian.Uint16(raw[11:13])
	spc := raw[13]

	var mftLCN uint64
	var recSize int8
	var serial uint64
	switch kind {
	case FsNTFS, FsReFS:
		mftLCN = binary.LittleEndian.Uint64(raw[48:56])
		recSize = int8(raw[64])
		serial = binary.LittleEndian.Uint64(raw[72:80])
	default:
		serial = uint64(binary.LittleEndian.Uint32(raw[39:43]))
	}

	if bps == 0 {
		bps = 512
	}
	if spc == 0 {
		spc = 1
	}

	return parsedBootSector{
		bytesPerSector:    bps,
		sectorsPerCluster: uint8(spc),
		mftStartLCN:       mftLCN,
		mftRecordSize:     recSize,
		serial:            serial,
		kind:              kind,
	}, nil
}

func detectKind(oem [8]byte, raw []byte) FsKind {
	if oem == ntfsOEM {
		return FsNTFS
	}
	// ReFS does not stamp a fixed OEM string at this offset in every
	// revision; it does always carry the literal "ReFS" signature
	// further into the superblock region copied into the boot sector on
	// ReFS v1/v2. Fall back to scanning for it before giving up to FAT.
	if len(raw) >= 16 {
		for i := 3; i <= 10 && i+4 <= len(raw); i++ {
			if string(raw[i:i+4]) == "ReFS" {
				return FsReFS
			}
		}
	}
	if len(raw) >= 11 && (raw[0] == 0xEB || raw[0] == 0xE9) {
		return FsFAT
	}
	return FsUnknown
}

// RecordSizeBytes resolves the signed NTFS record-size encoding into an
// absolute byte count, given the volume's bytes-per-cluster.
func RecordSizeBytes(encoded int8, bytesPerCluster uint32) uint32 {
	if encoded > 0 {
		return uint32(encoded) * bytesPerCluster
	}
	return 1 << uint(-encoded)
}

// offlineMftDefaultGeometry synthesizes boot-sector data for an offline
// MFT dump, which has no real boot sector of its own.
func offlineMftDefaultGeometry(serial uint64) Geometry {
	return Geometry{
		Serial:            serial,
		BytesPerSector:    512,
		SectorsPerCluster: 8, // 4 KiB clusters, the fixed-policy default
		MftStartLCN:       0,
		RecordSize:        1024,
		Kind:              FsNTFS,
	}
}
