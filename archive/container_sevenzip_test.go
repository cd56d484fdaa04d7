package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSevenZipWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cw, err := newContainerWriter(FormatSevenZip, &buf, CompressionLevel("max"))
	require.NoError(t, err)

	require.NoError(t, cw.AddFile("a.txt", bytes.NewReader([]byte("hello")), 5))
	n, err := cw.AddStream("b.txt", bytes.NewReader([]byte("world!!")))
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	require.NoError(t, cw.Close())

	dec, err := zstd.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer dec.Close()

	tr := tar.NewReader(dec)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestZstdLevelForMapsAllTiers(t *testing.T) {
	assert.Equal(t, zstd.SpeedFastest, zstdLevelFor(1))
	assert.Equal(t, zstd.SpeedDefault, zstdLevelFor(6))
	assert.Equal(t, zstd.SpeedBestCompression, zstdLevelFor(9))
}
