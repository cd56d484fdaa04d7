package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// containerWriter is the narrow interface Agent drives; tarWriter and
// zipWriter each adapt a stdlib archive/* writer to it.
type containerWriter interface {
	AddFile(nameInArchive string, r io.Reader, size int64) error
	AddStream(nameInArchive string, r io.Reader) (int64, error)
	Close() error
}

func newContainerWriter(format Format, sink io.Writer, level int) (containerWriter, error) {
	switch format {
	case FormatTar:
		return &tarWriter{tw: tar.NewWriter(sink)}, nil
	case FormatZip:
		zw := zip.NewWriter(sink)
		// klauspost/compress's flate implementation is a drop-in
		// replacement for compress/flate with materially better
		// throughput at matched compression levels; register it so
		// every DEFLATE-stored zip entry benefits.
		zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		})
		return &zipWriter{zw: zw, level: level}, nil
	case FormatSevenZip:
		return newSevenZipWriter(sink, level)
	default:
		return nil, fmt.Errorf("archive: unknown container format %d", format)
	}
}

type tarWriter struct {
	tw *tar.Writer
}

func (t *tarWriter) AddFile(name string, r io.Reader, size int64) error {
	hdr := &tar.Header{Name: name, Size: size, Mode: 0644}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(t.tw, r)
	return err
}

func (t *tarWriter) AddStream(name string, r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := t.AddFile(name, bytes.NewReader(buf), int64(len(buf))); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func (t *tarWriter) Close() error { return t.tw.Close() }

type zipWriter struct {
	zw    *zip.Writer
	level int
}

func (z *zipWriter) AddFile(name string, r io.Reader, size int64) error {
	w, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

func (z *zipWriter) AddStream(name string, r io.Reader) (int64, error) {
	w, err := z.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, r)
	return n, err
}

func (z *zipWriter) Close() error { return z.zw.Close() }
