package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evidentia/orc-core/execset"
	"github.com/evidentia/orc-core/internal/config"
	"github.com/evidentia/orc-core/internal/pattern"
	"github.com/evidentia/orc-core/outcome"
)

var (
	collectKeyword     string
	collectPattern     string
	collectOutputDir   string
	collectTempDir     string
	collectCompression string
	collectRepeat      string
	collectConcurrency int
	collectCmdTimeout  time.Duration
	collectWallTimeout time.Duration
	collectCommands    []string
	collectJournalOut  string
)

var collectCommand = &cobra.Command{
	Use:   "collect",
	Short: "Run one execution set: a bundle of commands archived together",
	RunE:  runCollect,
}

func init() {
	f := collectCommand.Flags()
	f.StringVar(&collectKeyword, "keyword", "", "execution set name")
	f.StringVar(&collectPattern, "archive-name-pattern", "{Name}_{ComputerName}_{TimeStamp}.zip", "archive name token pattern")
	f.StringVar(&collectOutputDir, "output-dir", ".", "directory the archive is written into")
	f.StringVar(&collectTempDir, "temp-dir", os.TempDir(), "scratch directory for command output before archiving")
	f.StringVar(&collectCompression, "compression", "normal", "compression level: fast, normal, max")
	f.StringVar(&collectRepeat, "repeat", "create-new", "repeat policy when the archive name already exists: create-new, overwrite, once")
	f.IntVar(&collectConcurrency, "concurrency", 4, "maximum commands running at once")
	f.DurationVar(&collectCmdTimeout, "command-timeout", 5*time.Minute, "per-command timeout")
	f.DurationVar(&collectWallTimeout, "wall-timeout", 30*time.Minute, "whole-set timeout; remaining commands are terminated when it elapses")
	f.StringArrayVar(&collectCommands, "command", nil, "keyword=exe[,arg,...] — repeatable")
	f.StringVar(&collectJournalOut, "journal-out", "", "write the outcome journal's JSON to this path instead of discarding it")
	collectCommand.MarkFlagRequired("keyword")
	f.SortFlags = false
}

func parseRepeat(s string) (config.RepeatPolicy, error) {
	switch s {
	case "create-new":
		return config.RepeatCreateNew, nil
	case "overwrite":
		return config.RepeatOverwrite, nil
	case "once":
		return config.RepeatOnce, nil
	default:
		return 0, fmt.Errorf("collect: unknown --repeat value %q", s)
	}
}

// parseCommand turns "keyword=exe,arg1,arg2" into a CommandConfig
// capturing combined stdout+stderr, the default a freshly defined
// command gets absent other flags.
func parseCommand(spec string) (config.CommandConfig, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return config.CommandConfig{}, fmt.Errorf("collect: --command %q must be keyword=exe[,arg,...]", spec)
	}
	parts := strings.Split(rest, ",")
	if parts[0] == "" {
		return config.CommandConfig{}, fmt.Errorf("collect: --command %q is missing an executable", spec)
	}
	return config.CommandConfig{
		Keyword:       name,
		Exe:           parts[0],
		Args:          parts[1:],
		CombineOutErr: true,
	}, nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	repeat, err := parseRepeat(collectRepeat)
	if err != nil {
		return err
	}
	commands := make([]config.CommandConfig, 0, len(collectCommands))
	for _, spec := range collectCommands {
		c, err := parseCommand(spec)
		if err != nil {
			return err
		}
		commands = append(commands, c)
	}
	if len(commands) == 0 {
		return fmt.Errorf("collect: at least one --command is required")
	}

	cfg := config.ExecutionSetConfig{
		Keyword:            collectKeyword,
		ArchiveNamePattern: collectPattern,
		CompressionLevel:   collectCompression,
		TempDir:            collectTempDir,
		OutputDir:          collectOutputDir,
		Repeat:             repeat,
		Concurrency:        collectConcurrency,
		CommandTimeout:     collectCmdTimeout,
		WallTimeout:        collectWallTimeout,
		Commands:           commands,
	}

	hostname, _ := os.Hostname()
	journal := outcome.New()
	log := logrus.WithField("component", "orc-core")
	set := execset.New(cfg, journal, outcome.InputRunning, log)

	outPath, err := set.BuildFullArchiveName(cfg.PatternValues(hostname, hostname, pattern.WorkStation))
	if err != nil {
		return err
	}
	log.WithField("archive", outPath).Info("orc-core: collecting")

	if err := set.CreateArchiveAgent(64); err != nil {
		return err
	}
	if err := set.CreateCommandAgent(); err != nil {
		return err
	}
	if err := set.EnqueueCommands(); err != nil {
		return err
	}
	if err := set.CompleteExecution(); err != nil {
		return err
	}
	if err := set.CompleteArchive(); err != nil {
		return err
	}

	log.Info("orc-core: collection complete")

	if collectJournalOut != "" {
		data, err := journal.Serialize()
		if err != nil {
			return err
		}
		if err := os.WriteFile(collectJournalOut, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
