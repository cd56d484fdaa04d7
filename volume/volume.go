// Package volume presents every supported volume source — a mounted
// drive, a raw disk or partition, an image file, a VSS snapshot, or an
// offline MFT dump — behind one read-only, byte-addressable Reader.
package volume

import (
	"fmt"

	"github.com/google/uuid"
)

// FsKind identifies the on-disk filesystem detected from the boot sector.
type FsKind int

const (
	FsUnknown FsKind = iota
	FsNTFS
	FsReFS
	FsFAT
)

func (k FsKind) String() string {
	switch k {
	case FsNTFS:
		return "NTFS"
	case FsReFS:
		return "ReFS"
	case FsFAT:
		return "FAT"
	default:
		return "unknown"
	}
}

// Geometry holds the immutable facts requires a Volume to expose.
type Geometry struct {
	Serial        uint64
	BytesPerSector uint32
	SectorsPerCluster uint32
	ClusterCount  uint64
	MftStartLCN   uint64
	RecordSize    uint32
	Kind          FsKind
}

// BytesPerCluster is a convenience derived value.
func (g Geometry) BytesPerCluster() uint32 {
	return g.BytesPerSector * g.SectorsPerCluster
}

// Reader is the uniform, read-only view of a volume's bytes. Every
// concrete source (Mounted, RawDisk, Image, Snapshot, OfflineMFT)
// implements it identically so MftStore and above never know which one
// they're talking to.
type Reader interface {
	// ReadAt returns length bytes starting at byteOffset. A read that
	// reaches the end of the underlying file returns the shorter slice
	// it could read, without an error; a read outside a bounded volume
	// window, or a failed read, returns an error wrapping
	// orcerr.ErrOutOfRange / orcerr.ErrIo.
	ReadAt(byteOffset int64, length int) ([]byte, error)

	Serial() uint64
	FsType() FsKind
	BytesPerCluster() uint32
	MftStartLCN() uint64
	RecordSize() uint32

	// SnapshotID is non-nil iff this reader is backed by a VSS snapshot.
	SnapshotID() *uuid.UUID

	// Close releases any OS handle the reader holds.
	Close() error
}

// ReadCluster is a convenience wrapper reading a whole cluster run.
func ReadCluster(r Reader, lcn uint64, clusters uint64) ([]byte, error) {
	bpc := int64(r.BytesPerCluster())
	if bpc == 0 {
		return nil, fmt.Errorf("volume: bytes-per-cluster is zero")
	}
	return r.ReadAt(int64(lcn)*bpc, int(clusters)*int(bpc))
}
