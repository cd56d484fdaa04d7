package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAgent(t *testing.T, opts OpenOptions, addStream func(a *Agent) error) {
	t.Helper()
	a := New(8, nil)
	go a.Run()

	require.NoError(t, a.Open(opts))
	require.NoError(t, addStream(a))
	require.NoError(t, a.Complete())

	for range a.Notifications() {
	}
	<-a.Done()
}

func TestAgentTeeCleartextWritesPlaintextCopyAlongsideEncryptedArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "out.zip.p7b")
	teePath := filepath.Join(dir, "out.cleartext.zip")

	sink, err := os.Create(archivePath)
	require.NoError(t, err)

	recipient := generateTestRecipient(t)
	runAgent(t, OpenOptions{
		Name:             "out.zip",
		Format:           FormatZip,
		Sink:             sink,
		CompressionLevel: "fast",
		Recipients:       []Recipient{recipient},
		TeeCleartextPath: teePath,
	}, func(a *Agent) error {
		return a.AddStream("hello.txt", bytes.NewReader([]byte("hello world")))
	})

	// The main output is CMS-enveloped: it must not parse as a zip and
	// must not contain the plaintext.
	_, err = zip.OpenReader(archivePath)
	require.Error(t, err)
	mainBytes, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	assert.NotContains(t, string(mainBytes), "hello world")

	// The tee file is the plain container stream: a valid zip
	// containing the cleartext entry.
	zr, err := zip.OpenReader(teePath)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "hello.txt", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data := make([]byte, len("hello world"))
	_, err = rc.Read(data)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestAgentWithoutTeeCleartextSkipsSecondFile(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "out.zip")
	sink, err := os.Create(archivePath)
	require.NoError(t, err)

	runAgent(t, OpenOptions{
		Name:             "out.zip",
		Format:           FormatZip,
		Sink:             sink,
		CompressionLevel: "fast",
	}, func(a *Agent) error {
		return a.AddStream("hello.txt", bytes.NewReader([]byte("hi")))
	})

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
}
