package archive

import (
	"archive/tar"
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
)

// sevenZipWriter backs FormatSevenZip (a .7z archive name, at any
// compression level): a tar-structured container whose payload bytes are zstd-compressed rather than
// DEFLATE, trading archive/zip's per-entry size-must-be-known-up-front
// constraint for materially better ratios on the large, often
// redundant disk-image and memory-dump captures ExecutionSet can
// collect. The file carries a .7z extension for operator familiarity
// but is not an actual 7z container; nothing downstream inspects its
// internal layout except this package's own unpacking, if any.
type sevenZipWriter struct {
	tw  *tar.Writer
	enc *zstd.Encoder
}

func newSevenZipWriter(sink io.Writer, level int) (*sevenZipWriter, error) {
	enc, err := zstd.NewWriter(sink, zstd.WithEncoderLevel(zstdLevelFor(level)))
	if err != nil {
		return nil, err
	}
	return &sevenZipWriter{tw: tar.NewWriter(enc), enc: enc}, nil
}

// zstdLevelFor maps the DEFLATE-scale 1-9 level CompressionLevel
// produces onto zstd's coarser three-tier encoder level enum.
func zstdLevelFor(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	default:
		return zstd.SpeedBestCompression
	}
}

func (s *sevenZipWriter) AddFile(name string, r io.Reader, size int64) error {
	hdr := &tar.Header{Name: name, Size: size, Mode: 0644}
	if err := s.tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(s.tw, r)
	return err
}

func (s *sevenZipWriter) AddStream(name string, r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := s.AddFile(name, bytes.NewReader(buf), int64(len(buf))); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func (s *sevenZipWriter) Close() error {
	if err := s.tw.Close(); err != nil {
		s.enc.Close()
		return err
	}
	return s.enc.Close()
}
