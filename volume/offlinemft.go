package volume

import (
	"os"

	"github.com/google/uuid"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// offlineMftReader treats a single serialized-MFT file as the entire
// volume: record N of the MFT lives at byte offset N*recordSize in the
// file, and no other NTFS structures exist. Geometry is synthesized
// from a fixed-policy default record size, since there is no real boot
// sector to read it from.
type offlineMftReader struct {
	f          *os.File
	size       int64
	geom       Geometry
	snapshotID *uuid.UUID
}

// OpenOfflineMFT opens loc.Path as a standalone serialized MFT ("the
// volume IS the file"). The caller is expected to have already confirmed
// the file begins with the "FILE" signature (the location grammar alone
// cannot distinguish this from a disk image).
func OpenOfflineMFT(loc ParsedLocation, serial uint64) (Reader, error) {
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: open offline MFT "+loc.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: stat offline MFT", err)
	}
	return &offlineMftReader{
		f:    f,
		size: info.Size(),
		geom: offlineMftDefaultGeometry(serial),
	}, nil
}

// LooksLikeOfflineMFT peeks at the first four bytes of path, reporting
// whether the file begins with the "FILE" signature an MFT record
// starts with.
func LooksLikeOfflineMFT(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	var sig [4]byte
	n, err := f.Read(sig[:])
	if err != nil && n < 4 {
		return false, nil
	}
	return string(sig[:]) == "FILE", nil
}

func (r *offlineMftReader) ReadAt(byteOffset int64, length int) ([]byte, error) {
	if byteOffset+int64(length) > r.size {
		return nil, orcerr.Wrap(orcerr.ErrOutOfRange, "volume: offline MFT read past end", nil)
	}
	buf := make([]byte, length)
	n, err := r.f.ReadAt(buf, byteOffset)
	if err != nil && n < length {
		return buf[:n], nil
	}
	return buf, nil
}

func (r *offlineMftReader) Serial() uint64          { return r.geom.Serial }
func (r *offlineMftReader) FsType() FsKind          { return r.geom.Kind }
func (r *offlineMftReader) BytesPerCluster() uint32 { return r.geom.BytesPerCluster() }
func (r *offlineMftReader) MftStartLCN() uint64     { return r.geom.MftStartLCN }
func (r *offlineMftReader) RecordSize() uint32      { return r.geom.RecordSize }
func (r *offlineMftReader) SnapshotID() *uuid.UUID  { return r.snapshotID }
func (r *offlineMftReader) Close() error             { return r.f.Close() }
