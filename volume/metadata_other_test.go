//go:build !windows

package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/internal/orcerr"
)

func TestReadAlternateStreamsRequiresWindows(t *testing.T) {
	_, err := ReadAlternateStreams(`C:\Users\file.txt`)
	require.Error(t, err)
	assert.ErrorIs(t, err, orcerr.ErrConfig)
}
