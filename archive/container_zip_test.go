package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cw, err := newContainerWriter(FormatZip, &buf, CompressionLevel("fast"))
	require.NoError(t, err)

	require.NoError(t, cw.AddFile("a.txt", bytes.NewReader([]byte("hello")), 5))
	n, err := cw.AddStream("b.txt", bytes.NewReader([]byte("world!!")))
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	require.NoError(t, cw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	f0, err := zr.File[0].Open()
	require.NoError(t, err)
	data0, _ := io.ReadAll(f0)
	assert.Equal(t, "hello", string(data0))

	f1, err := zr.File[1].Open()
	require.NoError(t, err)
	data1, _ := io.ReadAll(f1)
	assert.Equal(t, "world!!", string(data1))
}

func TestTarWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cw, err := newContainerWriter(FormatTar, &buf, 0)
	require.NoError(t, err)
	require.NoError(t, cw.AddFile("x.bin", bytes.NewReader([]byte{1, 2, 3}), 3))
	require.NoError(t, cw.Close())
	assert.Greater(t, buf.Len(), 0)
}

func TestFormatFromExtension(t *testing.T) {
	assert.Equal(t, FormatTar, FormatFromExtension("collection.tar"))
	assert.Equal(t, FormatZip, FormatFromExtension("collection.zip"))
	assert.Equal(t, FormatSevenZip, FormatFromExtension("collection.7z"))
	assert.Equal(t, FormatZip, FormatFromExtension("collection"))
}
