// Package journalprint renders OutcomeJournal mutations as terse,
// one-line-per-event console/journal summaries, as a logrus.Hook that
// only reacts to log entries explicitly tagged as journal events.
package journalprint

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Hook is a logrus.Hook that writes a terse, single-line rendering of
// each outcome-journal event to w, independent of whatever other
// formatter the caller's root logger uses for its own structured
// output. It fires on every level: journal summaries are informational
// by nature, not severity-gated.
type Hook struct {
	w io.Writer
}

// New returns a Hook writing to w.
func New(w io.Writer) *Hook {
	return &Hook{w: w}
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire writes one line per entry carrying the journalprint.event and
// journalprint.keyword fields; entries without them are ignored, so a
// caller can attach this hook to the process-wide logger without it
// double-printing every unrelated log line.
func (h *Hook) Fire(entry *logrus.Entry) error {
	event, ok := entry.Data["journalprint.event"]
	if !ok {
		return nil
	}
	keyword := entry.Data["journalprint.keyword"]
	_, err := fmt.Fprintf(h.w, "[%s] %s: %s %s\n",
		entry.Time.UTC().Format("2006-01-02T15:04:05Z"),
		keyword, event, entry.Message)
	return err
}

// Event is the fluent helper a caller uses to fire a journalprint line
// through the standard logrus.FieldLogger interface, e.g.:
//
//	journalprint.Event(log, "NTFSInfo", "ArchiveComplete").Info("2.1 GiB, sha1 ab12…")
func Event(log logrus.FieldLogger, keyword, event string) logrus.FieldLogger {
	return log.WithFields(logrus.Fields{
		"journalprint.event":   event,
		"journalprint.keyword": keyword,
	})
}
