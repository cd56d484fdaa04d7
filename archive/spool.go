package archive

import (
	"bytes"
	"io"
	"os"
)

// SpoolWriter buffers writes in memory up to a configured cap, then
// spills everything already written (and everything after) to a
// temporary file. This lets a caller producing an output stream of
// unknown final size (an archive member, or a CommandAgent draining a
// named-pipe redirection) hand data to it before it is known whether
// the eventual size fits in memory.
type SpoolWriter struct {
	cap     int64
	mem     bytes.Buffer
	file    *os.File
	spilled bool
	tempDir string
	written int64
}

// NewSpoolWriter returns a SpoolWriter that spills to tempDir (the
// default system temp directory when empty) once more than capBytes
// have been written.
func NewSpoolWriter(capBytes int64, tempDir string) *SpoolWriter {
	return &SpoolWriter{cap: capBytes, tempDir: tempDir}
}

func (s *SpoolWriter) Write(p []byte) (int, error) {
	if !s.spilled && s.written+int64(len(p)) > s.cap {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	if s.spilled {
		n, err := s.file.Write(p)
		s.written += int64(n)
		return n, err
	}
	n, err := s.mem.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *SpoolWriter) spill() error {
	f, err := os.CreateTemp(s.tempDir, "orc-archive-spool-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	s.mem.Reset()
	s.file = f
	s.spilled = true
	return nil
}

// Reader returns a fresh reader over everything written so far,
// seeking the backing file to its start when spilled.
func (s *SpoolWriter) Reader() (io.ReadCloser, error) {
	if s.spilled {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return s.file, nil
	}
	return io.NopCloser(bytes.NewReader(s.mem.Bytes())), nil
}

// Close removes the backing temp file, if one was created.
func (s *SpoolWriter) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	_ = os.Remove(name)
	return err
}

// Len reports the number of bytes written so far.
func (s *SpoolWriter) Len() int64 { return s.written }
