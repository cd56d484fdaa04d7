package execset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/internal/config"
	"github.com/evidentia/orc-core/internal/pattern"
	"github.com/evidentia/orc-core/outcome"
)

func TestExecutionSetFullLifecycle(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.ExecutionSetConfig{
		Keyword:            "Sample",
		ArchiveNamePattern: "{Name}.zip",
		CompressionLevel:   "fast",
		TempDir:            t.TempDir(),
		OutputDir:          outDir,
		Repeat:             config.RepeatCreateNew,
		Concurrency:        2,
		CommandTimeout:     5 * time.Second,
		WallTimeout:        10 * time.Second,
		Commands: []config.CommandConfig{
			{Keyword: "Echo", Exe: "/bin/echo", Args: []string{"hello"}, StdOut: true},
		},
	}

	journal := outcome.New()
	log := logrus.NewEntry(logrus.New())
	es := New(cfg, journal, outcome.InputRunning, log)

	outPath, err := es.BuildFullArchiveName(pattern.Values{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Sample.zip"), outPath)

	require.NoError(t, es.CreateArchiveAgent(16))
	require.NoError(t, es.CreateCommandAgent())
	require.NoError(t, es.EnqueueCommands())
	require.NoError(t, es.CompleteExecution())
	require.NoError(t, es.CompleteArchive())

	zr, err := zip.OpenReader(outPath)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Echo.out")
	assert.Contains(t, names, "Config.xml")
	assert.Contains(t, names, "LocalConfig.xml")
	assert.Contains(t, names, "Outcome.json")

	set, ok := journal.FindSet("Sample")
	require.True(t, ok)
	assert.Equal(t, "Sample.zip", set.Archive.Name)
	assert.NotEmpty(t, set.Archive.SHA1)
	require.Len(t, set.Commands, 1)
	assert.Equal(t, "Echo", set.Commands[0].Keyword)
}

func TestBuildFullArchiveNameOnceSkipsExisting(t *testing.T) {
	outDir := t.TempDir()
	existing := filepath.Join(outDir, "Sample.zip")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	cfg := config.ExecutionSetConfig{Keyword: "Sample", ArchiveNamePattern: "{Name}.zip", OutputDir: outDir, Repeat: config.RepeatOnce}
	es := New(cfg, outcome.New(), outcome.InputRunning, nil)
	_, err := es.BuildFullArchiveName(pattern.Values{})
	require.Error(t, err)
}

func TestBuildFullArchiveNameCreateNewDisambiguates(t *testing.T) {
	outDir := t.TempDir()
	existing := filepath.Join(outDir, "Sample.zip")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	cfg := config.ExecutionSetConfig{Keyword: "Sample", ArchiveNamePattern: "{Name}.zip", OutputDir: outDir, Repeat: config.RepeatCreateNew}
	es := New(cfg, outcome.New(), outcome.InputRunning, nil)
	out, err := es.BuildFullArchiveName(pattern.Values{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Sample_1.zip"), out)
}

func TestBuildFullArchiveNameOverwriteReusesPath(t *testing.T) {
	outDir := t.TempDir()
	existing := filepath.Join(outDir, "Sample.zip")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	cfg := config.ExecutionSetConfig{Keyword: "Sample", ArchiveNamePattern: "{Name}.zip", OutputDir: outDir, Repeat: config.RepeatOverwrite}
	es := New(cfg, outcome.New(), outcome.InputRunning, nil)
	out, err := es.BuildFullArchiveName(pattern.Values{})
	require.NoError(t, err)
	assert.Equal(t, existing, out)
}

func TestBuildFullArchiveNameEncryptedGetsP7bSuffix(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.ExecutionSetConfig{
		Keyword:            "Sample",
		ArchiveNamePattern: "{Name}.zip",
		OutputDir:          outDir,
		Recipients:         []config.Recipient{{SubjectName: "alice"}},
	}
	es := New(cfg, outcome.New(), outcome.InputRunning, nil)
	out, err := es.BuildFullArchiveName(pattern.Values{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "Sample.zip.p7b"), out)
}
