package job

import (
	"io"
	"os"
)

// outputCapture drains a child's redirected output into a temporary
// file in the shared temp directory. Unlike ArchiveAgent's accumulating
// streams, this always spills straight to disk rather than buffering in
// memory first, since CommandAgent's redirection volumes (full process
// stdout/stderr) are routinely larger than any sane in-memory cap and
// the indirection isn't worth it for a child process's lifetime.
type outputCapture struct {
	file       *os.File
	writeEnd   *os.File
	readEnd    *os.File
	drainDone  chan struct{}
}

func newOutputCapture(tempDir string) (*outputCapture, error) {
	f, err := os.CreateTemp(tempDir, "orc-job-capture-*")
	if err != nil {
		return nil, err
	}
	r, w, err := os.Pipe()
	if err != nil {
		f.Close()
		return nil, err
	}
	c := &outputCapture{file: f, writeEnd: w, readEnd: r, drainDone: make(chan struct{})}
	go func() {
		defer close(c.drainDone)
		io.Copy(c.file, c.readEnd)
	}()
	return c, nil
}

// writer is the handle a spawned child's stdout/stderr is redirected
// to. The spawn path duplicates it into the child and then closes the
// parent's own copy immediately, per the standard
// one-writer-closes-once-inherited pipe pattern: the drain goroutine
// only observes EOF once every handle to the write end — the parent's
// and every inherited copy in the child — has closed.
func (c *outputCapture) writer() *os.File { return c.writeEnd }

// reader blocks until the drain goroutine has observed EOF (i.e. the
// child has exited and its write-end handle closed), then returns a
// reader positioned at the start of the captured data.
func (c *outputCapture) reader() (io.ReadCloser, error) {
	<-c.drainDone
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return c.file, nil
}

func (c *outputCapture) close() {
	name := c.file.Name()
	c.file.Close()
	c.readEnd.Close()
	os.Remove(name)
}
