// Package execset implements ExecutionSet: a named bundle of commands
// plus the archive that collects their output, wiring together
// ArchiveAgent and CommandAgent for one run of the lifecycle
// BuildFullArchiveName -> CreateArchiveAgent -> CreateCommandAgent ->
// EnqueueCommands -> CompleteExecution -> CompleteArchive.
package execset

import (
	"crypto/x509"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evidentia/orc-core/archive"
	"github.com/evidentia/orc-core/internal/config"
	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/internal/pattern"
	"github.com/evidentia/orc-core/job"
	"github.com/evidentia/orc-core/outcome"
)

// ExecutionSet runs one configured bundle of commands against a single
// archive. Not safe for concurrent use; a run owns its own
// ArchiveAgent and CommandAgent goroutines.
type ExecutionSet struct {
	cfg     config.ExecutionSetConfig
	journal *outcome.Journal
	log     *logrus.Entry

	inputType       outcome.InputType
	setHandle       *outcome.SetHandle
	archiveAgent    *archive.Agent
	commandAgent    *job.Agent
	archiveFullPath string
	outputFullPath  string
}

// New binds cfg to the process-wide outcome journal. inputType records
// whether this run collects from a live, running system or from an
// offline image/export — a run-wide fact the caller (the volume
// location it was pointed at) already knows. log may be nil.
func New(cfg config.ExecutionSetConfig, journal *outcome.Journal, inputType outcome.InputType, log *logrus.Entry) *ExecutionSet {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ExecutionSet{cfg: cfg, journal: journal, inputType: inputType, log: log.WithField("set", cfg.Keyword)}
}

// BuildFullArchiveName expands the configured archive-name pattern,
// resolves it against the repeat policy, and returns the final output
// path (the archive path plus a .p7b suffix when recipients make it a
// CMS envelope). It must run before CreateArchiveAgent.
func (e *ExecutionSet) BuildFullArchiveName(values pattern.Values) (string, error) {
	if values.Name == "" {
		values.Name = e.cfg.Keyword
	}
	name := pattern.Expand(e.cfg.ArchiveNamePattern, values)
	archivePath := filepath.Join(e.cfg.OutputDir, name)

	switch e.cfg.Repeat {
	case config.RepeatOnce:
		if _, err := os.Stat(archivePath); err == nil {
			return "", orcerr.Wrap(orcerr.ErrAlreadyCollected, "execset: "+archivePath, nil)
		}
	case config.RepeatCreateNew:
		archivePath = disambiguate(archivePath)
	case config.RepeatOverwrite:
		// archivePath is reused as-is; CreateArchiveAgent truncates it.
	}

	e.archiveFullPath = archivePath
	e.outputFullPath = archivePath
	if len(e.cfg.Recipients) > 0 {
		e.outputFullPath += ".p7b"
	}
	return e.outputFullPath, nil
}

// disambiguate appends _1, _2, ... before path's extension until it
// names a file that does not yet exist.
func disambiguate(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// CreateArchiveAgent opens the archive sink at outputFullPath and
// starts ArchiveAgent's goroutine. BuildFullArchiveName must have run
// first.
func (e *ExecutionSet) CreateArchiveAgent(queueDepth int) error {
	if e.outputFullPath == "" {
		return orcerr.Wrap(orcerr.ErrConfig, "execset: BuildFullArchiveName must run before CreateArchiveAgent", nil)
	}
	recipients, err := convertRecipients(e.cfg.Recipients)
	if err != nil {
		return err
	}
	sink, err := os.Create(e.outputFullPath)
	if err != nil {
		return orcerr.Wrap(orcerr.ErrIo, "execset: create archive sink "+e.outputFullPath, err)
	}

	e.archiveAgent = archive.New(queueDepth, e.log.WithField("component", "archive"))
	go e.archiveAgent.Run()

	err = e.archiveAgent.Open(archive.OpenOptions{
		Name:             filepath.Base(e.archiveFullPath),
		Format:           archive.FormatFromExtension(e.archiveFullPath),
		Sink:             sink,
		CompressionLevel: e.cfg.CompressionLevel,
		Recipients:       recipients,
		Journaling:       len(recipients) > 0,
	})
	if err != nil {
		sink.Close()
		return err
	}
	return nil
}

// convertRecipients parses each configured recipient's DER-encoded
// certificate, the form CMS enveloped-data recipients take in
// archive.Recipient.
func convertRecipients(in []config.Recipient) ([]archive.Recipient, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]archive.Recipient, 0, len(in))
	for _, r := range in {
		cert, err := x509.ParseCertificate(r.CertDER)
		if err != nil {
			return nil, orcerr.Wrap(orcerr.ErrConfig, "execset: parse recipient certificate for "+r.SubjectName, err)
		}
		out = append(out, archive.Recipient{Certificate: cert})
	}
	return out, nil
}

// CreateCommandAgent starts CommandAgent bound to the set's job limits
// and temp directory, with its output redirection wired to the
// already-open ArchiveAgent.
func (e *ExecutionSet) CreateCommandAgent() error {
	if e.archiveAgent == nil {
		return orcerr.Wrap(orcerr.ErrConfig, "execset: CreateArchiveAgent must run before CreateCommandAgent", nil)
	}
	e.setHandle = e.journal.BeginSet(e.cfg.Keyword, e.inputType, time.Now().UTC())

	agent, err := job.New(e.cfg.Restrictions, e.cfg.Concurrency, e.cfg.TempDir, e.setHandle, e.log.WithField("component", "job"))
	if err != nil {
		return err
	}
	agent.SetArchive(e.archiveAgent)
	e.commandAgent = agent
	go agent.Run()
	return nil
}

// EnqueueCommands submits every configured command to CommandAgent. A
// failure enqueuing an optional command is logged and skipped rather
// than aborting the set.
func (e *ExecutionSet) EnqueueCommands() error {
	for _, cmd := range e.cfg.Commands {
		req := job.ExecuteRequest{
			Keyword:    cmd.Keyword,
			Exe:        cmd.Exe,
			Args:       cmd.Args,
			Env:        cmd.Env,
			Redirect:   redirectFor(cmd),
			OnComplete: job.ArchiveAndDelete,
			Optional:   cmd.Optional,
			Timeout:    commandTimeout(cmd, e.cfg),
		}
		if err := e.commandAgent.Execute(req); err != nil {
			if cmd.Optional {
				e.log.WithError(err).WithField("keyword", cmd.Keyword).Warn("execset: optional command failed to enqueue")
				continue
			}
			return err
		}
	}
	return nil
}

func redirectFor(cmd config.CommandConfig) job.RedirectKind {
	switch {
	case cmd.CombineOutErr:
		return job.RedirectStdOutErr
	case cmd.StdOut && cmd.StdErr:
		return job.RedirectStdOutErr
	case cmd.StdOut:
		return job.RedirectStdOut
	case cmd.StdErr:
		return job.RedirectStdErr
	default:
		return job.RedirectNone
	}
}

func commandTimeout(cmd config.CommandConfig, cfg config.ExecutionSetConfig) time.Duration {
	if cmd.Timeout > 0 {
		return cmd.Timeout
	}
	return cfg.CommandTimeout
}

// CompleteExecution waits for every enqueued command to reach a
// terminal state, enforcing the set's wall-clock timeout by calling
// TerminateAll if it elapses first, then stops CommandAgent and
// records the job's final accounting.
func (e *ExecutionSet) CompleteExecution() error {
	remaining := make(map[string]bool, len(e.cfg.Commands))
	for _, cmd := range e.cfg.Commands {
		remaining[cmd.Keyword] = true
	}

	var deadline <-chan time.Time
	if e.cfg.WallTimeout > 0 {
		deadline = time.After(e.cfg.WallTimeout)
	}

	for len(remaining) > 0 {
		select {
		case n, ok := <-e.commandAgent.Notifications():
			if !ok {
				remaining = nil
				continue
			}
			if n.State == job.StateDone || n.State == job.StateFailed {
				delete(remaining, n.Keyword)
			}
		case <-deadline:
			deadline = nil
			_ = e.commandAgent.TerminateAll()
		}
	}

	stats, statsErr := e.commandAgent.QueryJobStats()
	if statsErr != nil {
		e.log.WithError(statsErr).Warn("execset: could not read job accounting")
	}

	e.commandAgent.Stop()
	<-e.commandAgent.Done()

	e.setHandle.End(time.Now().UTC(), stats)
	return nil
}

// CompleteArchive embeds the set's Config.xml, LocalConfig.xml, and
// Outcome.json streams, closes the archive, and records its final
// identity in the outcome journal.
func (e *ExecutionSet) CompleteArchive() error {
	if cfgXML, err := xml.MarshalIndent(e.cfg, "", "  "); err == nil {
		_ = e.archiveAgent.AddStream("Config.xml", strings.NewReader(string(cfgXML)))
	}
	if localXML, err := xml.MarshalIndent(localConfigOf(e.cfg), "", "  "); err == nil {
		_ = e.archiveAgent.AddStream("LocalConfig.xml", strings.NewReader(string(localXML)))
	}
	if set, ok := e.journal.FindSet(e.cfg.Keyword); ok {
		if outcomeJSON, err := json.MarshalIndent(set, "", "  "); err == nil {
			_ = e.archiveAgent.AddStream("Outcome.json", strings.NewReader(string(outcomeJSON)))
		}
	}

	if err := e.archiveAgent.Complete(); err != nil {
		return err
	}

	var final archive.Notification
	for n := range e.archiveAgent.Notifications() {
		if n.Kind == archive.NotifyArchiveComplete {
			final = n
		}
	}
	<-e.archiveAgent.Done()

	e.setHandle.SetArchive(outcome.ArchiveOutcome{
		Name:      final.Name,
		Size:      final.TotalSize,
		SHA1:      final.SHA1,
		InputType: e.inputType,
	})
	return nil
}

// localConfig carries the handful of LocalConfig.xml fields that are
// host-specific rather than part of the portable ExecutionSetConfig.
type localConfig struct {
	TempDir   string
	OutputDir string
}

func localConfigOf(cfg config.ExecutionSetConfig) localConfig {
	return localConfig{TempDir: cfg.TempDir, OutputDir: cfg.OutputDir}
}
