// Package archive implements ArchiveAgent: a single
// cooperative agent, one goroutine per instance, processing a bounded
// channel of add/flush/complete requests in arrival order and
// streaming into a container format with optional CMS encryption.
package archive

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Format is the container format chosen by the archive's file
// extension.
type Format int

const (
	FormatTar Format = iota
	FormatZip
	FormatSevenZip
)

// FormatFromExtension maps an archive file extension to its container
// format. A trailing .p7b (CMS envelope) is stripped by the caller
// before this is consulted.
func FormatFromExtension(name string) Format {
	switch filepath.Ext(name) {
	case ".tar":
		return FormatTar
	case ".7z":
		return FormatSevenZip
	default:
		return FormatZip
	}
}

// CompressionLevel maps the "fast"/"normal"/"max" compression strings
// to a DEFLATE level.
func CompressionLevel(level string) int {
	switch level {
	case "fast":
		return 1
	case "max":
		return 9
	default:
		return 6 // "normal"
	}
}

// Notification is one of the events ArchiveAgent emits
type Notification struct {
	Kind      NotificationKind
	Name      string
	Size      int64
	TotalSize int64
	SHA1      string
}

type NotificationKind int

const (
	NotifyArchiveStarted NotificationKind = iota
	NotifyFileAddition
	NotifyDirectoryAddition
	NotifyStreamAddition
	NotifyArchiveComplete
)

// request is the sealed sum type of requests ArchiveAgent accepts.
type request struct {
	kind           requestKind
	nameInArchive  string
	hostPath       string
	hostDir        string
	glob           string
	deleteWhenDone bool
	hash           bool
	stream         io.Reader
	openOpts       *OpenOptions
	reply          chan error
}

type requestKind int

const (
	reqOpen requestKind = iota
	reqAddFile
	reqAddDirectory
	reqAddStream
	reqFlushQueue
	reqComplete
)

// OpenOptions configures Open, the first request an agent must see.
type OpenOptions struct {
	Name              string
	Format            Format
	Sink              io.WriteCloser
	CompressionLevel  string
	Recipients        []Recipient
	Journaling        bool
	TeeCleartextPath  string
}

// Agent is ArchiveAgent: a single-threaded cooperative agent listening
// on a bounded channel of requests.
type Agent struct {
	requests chan request
	notifs   chan Notification
	done     chan struct{}
	log      *logrus.Entry

	container containerWriter
	hashing   *hashingWriter
	totalSize int64
	opened    bool
	finalName string
}

// New constructs an Agent with the given request-queue depth. Call
// Run in its own goroutine, then send requests and read Notifications.
func New(queueDepth int, log *logrus.Entry) *Agent {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Agent{
		requests: make(chan request, queueDepth),
		notifs:   make(chan Notification, queueDepth),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Notifications returns the channel Notification events are delivered
// on; the caller should drain it until it closes (after Complete).
func (a *Agent) Notifications() <-chan Notification { return a.notifs }

// Done closes once the agent's Run loop has exited.
func (a *Agent) Done() <-chan struct{} { return a.done }

// Open starts the archive: its container writer, and — when recipients
// are configured — the CMS encryption chain in front of the sink.
func (a *Agent) Open(opts OpenOptions) error {
	return a.do(request{kind: reqOpen, nameInArchive: opts.Name, openOpts: &opts})
}

// AddFile enqueues a host file for inclusion under nameInArchive.
func (a *Agent) AddFile(nameInArchive, hostPath string, deleteWhenDone, hash bool) error {
	return a.do(request{kind: reqAddFile, nameInArchive: nameInArchive, hostPath: hostPath, deleteWhenDone: deleteWhenDone, hash: hash})
}

// AddDirectory enqueues a directory tree, expanded into AddFile
// requests at processing time in lexicographic, locale-insensitive
// order.
func (a *Agent) AddDirectory(nameInArchive, hostDir, glob string) error {
	return a.do(request{kind: reqAddDirectory, nameInArchive: nameInArchive, hostDir: hostDir, glob: glob})
}

// AddStream enqueues an in-memory or piped readable stream.
func (a *Agent) AddStream(nameInArchive string, r io.Reader) error {
	return a.do(request{kind: reqAddStream, nameInArchive: nameInArchive, stream: r})
}

// NewAccumulatingStream returns a SpoolWriter a caller (typically a
// CommandAgent draining a named-pipe redirection) can
// write an output stream of unknown final size into before its
// eventual size is known.
func (a *Agent) NewAccumulatingStream(capBytes int64, tempDir string) *SpoolWriter {
	return NewSpoolWriter(capBytes, tempDir)
}

// AddAccumulatingStream enqueues everything written to spool so far
// as a stream entry, then releases spool's backing resources.
func (a *Agent) AddAccumulatingStream(nameInArchive string, spool *SpoolWriter) error {
	r, err := spool.Reader()
	if err != nil {
		return err
	}
	defer spool.Close()
	return a.AddStream(nameInArchive, r)
}

// FlushQueue blocks until every request enqueued so far has been
// processed.
func (a *Agent) FlushQueue() error {
	return a.do(request{kind: reqFlushQueue})
}

// Complete closes the container and the output chain behind it (the
// sink included), computes its SHA-1, and emits ArchiveComplete. The Notifications channel closes afterward.
func (a *Agent) Complete() error {
	return a.do(request{kind: reqComplete})
}

func (a *Agent) do(req request) error {
	req.reply = make(chan error, 1)
	a.requests <- req
	return <-req.reply
}

// Run processes requests in arrival order until Complete. It must run
// in its own goroutine; the agent is the sole owner of its container
// writer and hashing pipe for the lifetime of the run.
func (a *Agent) Run() {
	defer close(a.done)
	defer close(a.notifs)

	for req := range a.requests {
		var err error
		switch req.kind {
		case reqOpen:
			err = a.handleOpen(req)
		case reqAddFile:
			err = a.handleAddFile(req)
		case reqAddDirectory:
			err = a.handleAddDirectory(req)
		case reqAddStream:
			err = a.handleAddStream(req)
		case reqFlushQueue:
			// No queued async work beyond channel order itself: arrival
			// order already is processing order.
		case reqComplete:
			err = a.handleComplete(req)
			req.reply <- err
			return
		}
		req.reply <- err
	}
}

func (a *Agent) handleOpen(req request) error {
	opts := req.openOpts
	if opts == nil {
		return fmt.Errorf("archive: Open called without options")
	}
	a.finalName = opts.Name
	sink := opts.Sink
	if len(opts.Recipients) > 0 {
		enc, err := newEnvelopeWriter(sink, opts.Recipients, opts.Journaling)
		if err != nil {
			return err
		}
		sink = enc
	}
	if opts.TeeCleartextPath != "" {
		tee, err := os.Create(opts.TeeCleartextPath)
		if err != nil {
			return fmt.Errorf("archive: open tee-cleartext file: %w", err)
		}
		// teeWriteCloser sits in front of whatever sink was just built
		// (the CMS envelope writer, or the raw output file), so it
		// always receives the container's unencrypted bytes even when
		// recipients are configured — the point of tee-cleartext mode.
		sink = &teeWriteCloser{primary: sink, tee: tee}
	}
	a.hashing = newHashingWriter(sink)

	cw, err := newContainerWriter(opts.Format, a.hashing, CompressionLevel(opts.CompressionLevel))
	if err != nil {
		return err
	}
	a.container = cw
	a.opened = true
	a.notify(Notification{Kind: NotifyArchiveStarted, Name: opts.Name})
	return nil
}

func (a *Agent) handleAddFile(req request) error {
	f, err := os.Open(req.hostPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := a.container.AddFile(req.nameInArchive, f, info.Size()); err != nil {
		return err
	}
	a.totalSize += info.Size()
	a.notify(Notification{Kind: NotifyFileAddition, Name: req.nameInArchive, Size: info.Size()})
	if req.deleteWhenDone {
		_ = os.Remove(req.hostPath)
	}
	return nil
}

func (a *Agent) handleAddDirectory(req request) error {
	entries, err := os.ReadDir(req.hostDir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if req.glob != "" {
			if ok, _ := filepath.Match(req.glob, e.Name()); !ok {
				continue
			}
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var dirSize int64
	for _, name := range names {
		hostPath := filepath.Join(req.hostDir, name)
		info, sErr := os.Stat(hostPath)
		if sErr != nil {
			continue
		}
		f, oErr := os.Open(hostPath)
		if oErr != nil {
			continue
		}
		nameInArchive := filepath.Join(req.nameInArchive, name)
		aErr := a.container.AddFile(nameInArchive, f, info.Size())
		f.Close()
		if aErr != nil {
			return aErr
		}
		dirSize += info.Size()
	}
	a.totalSize += dirSize
	a.notify(Notification{Kind: NotifyDirectoryAddition, Name: req.nameInArchive, Size: dirSize})
	return nil
}

func (a *Agent) handleAddStream(req request) error {
	size, err := a.container.AddStream(req.nameInArchive, req.stream)
	if err != nil {
		return err
	}
	a.totalSize += size
	a.notify(Notification{Kind: NotifyStreamAddition, Name: req.nameInArchive, Size: size})
	return nil
}

func (a *Agent) handleComplete(req request) error {
	if err := a.container.Close(); err != nil {
		return err
	}
	// Closing the hashing writer closes the rest of the output chain:
	// the tee file, the CMS envelope (which writes its final padded
	// block) and the sink itself.
	if err := a.hashing.Close(); err != nil {
		return err
	}
	sum := a.hashing.Sum()
	a.notify(Notification{
		Kind:      NotifyArchiveComplete,
		Name:      a.finalName,
		TotalSize: a.totalSize,
		SHA1:      sum,
	})
	return nil
}

func (a *Agent) notify(n Notification) {
	select {
	case a.notifs <- n:
	case <-time.After(30 * time.Second):
		a.log.WithField("kind", n.Kind).Warn("archive: notification channel stalled")
	}
}

// teeWriteCloser duplicates every write to primary (the normal output
// chain — CMS-encrypted when recipients are configured) and to tee (a
// second, always-plaintext file), so an operator who loses the
// recipient's private key still has a readable copy of the collection.
type teeWriteCloser struct {
	primary io.WriteCloser
	tee     io.WriteCloser
}

func (t *teeWriteCloser) Write(p []byte) (int, error) {
	n, err := t.primary.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := t.tee.Write(p); err != nil {
		return n, err
	}
	return n, nil
}

func (t *teeWriteCloser) Close() error {
	err := t.primary.Close()
	if tErr := t.tee.Close(); tErr != nil && err == nil {
		err = tErr
	}
	return err
}

// hashingWriter wraps a sink with a running SHA-1 of everything
// written through it, so the final archive's digest is available the
// moment the last byte is written with no separate re-read pass.
type hashingWriter struct {
	w io.WriteCloser
	h hashHash
}

type hashHash = interface {
	io.Writer
	Sum(b []byte) []byte
}

func newHashingWriter(w io.WriteCloser) *hashingWriter {
	return &hashingWriter{w: w, h: sha1.New()}
}

func (h *hashingWriter) Write(p []byte) (int, error) {
	h.h.Write(p)
	return h.w.Write(p)
}

func (h *hashingWriter) Close() error { return h.w.Close() }

func (h *hashingWriter) Sum() string {
	return fmt.Sprintf("%x", h.h.Sum(nil))
}
