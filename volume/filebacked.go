package volume

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// fileBackedReader implements Reader over any os.File-like handle,
// optionally windowed to [offset, offset+size) to address one partition
// within a larger disk or image. Mounted, RawDisk, Image and Snapshot
// all funnel their actual byte access through one of these, differing
// only in how the underlying handle was opened.
type fileBackedReader struct {
	f          *os.File
	offset     int64 // byte offset of this volume's start within f
	size       int64 // 0 means "unbounded, trust the geometry"
	geom       Geometry
	snapshotID *uuid.UUID
}

func newFileBackedReader(f *os.File, offset, size int64) (*fileBackedReader, error) {
	head, err := readAtRetry(f, offset, bootSectorSize)
	if err != nil {
		return nil, err
	}
	boot, err := parseBootSector(head)
	if err != nil {
		return nil, err
	}
	geom := Geometry{
		Serial:            boot.serial,
		BytesPerSector:    uint32(boot.bytesPerSector),
		SectorsPerCluster: uint32(boot.sectorsPerCluster),
		MftStartLCN:       boot.mftStartLCN,
		Kind:              boot.kind,
	}
	geom.RecordSize = RecordSizeBytes(boot.mftRecordSize, geom.BytesPerCluster())
	return &fileBackedReader{f: f, offset: offset, size: size, geom: geom}, nil
}

// readAtRetry retries once on transient I/O errors Io
// propagation rule ("locally retried once for transient codes").
func readAtRetry(f *os.File, offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF && isTransient(err) {
		n, err = f.ReadAt(buf, offset)
	}
	if err != nil && err != io.EOF {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: read", err)
	}
	return buf[:n], nil
}

func isTransient(err error) bool {
	// Conservative: only errors the OS layer itself tags as temporary.
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}

func (r *fileBackedReader) ReadAt(byteOffset int64, length int) ([]byte, error) {
	if r.size > 0 && byteOffset+int64(length) > r.size {
		return nil, orcerr.Wrap(orcerr.ErrOutOfRange, fmt.Sprintf("volume: read [%d,%d) exceeds volume size %d", byteOffset, byteOffset+int64(length), r.size), nil)
	}
	buf, err := readAtRetry(r.f, r.offset+byteOffset, length)
	if err != nil {
		return nil, err
	}
	if len(buf) < length {
		// Short read at EOF is success, not an error — the caller
		// decides whether to flag the attribute truncated.
		return buf, nil
	}
	return buf, nil
}

func (r *fileBackedReader) Serial() uint64          { return r.geom.Serial }
func (r *fileBackedReader) FsType() FsKind          { return r.geom.Kind }
func (r *fileBackedReader) BytesPerCluster() uint32 { return r.geom.BytesPerCluster() }
func (r *fileBackedReader) MftStartLCN() uint64     { return r.geom.MftStartLCN }
func (r *fileBackedReader) RecordSize() uint32      { return r.geom.RecordSize }
func (r *fileBackedReader) SnapshotID() *uuid.UUID  { return r.snapshotID }
func (r *fileBackedReader) Close() error            { return r.f.Close() }
