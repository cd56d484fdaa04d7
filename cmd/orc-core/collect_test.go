package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentia/orc-core/internal/config"
)

func TestParseCommandSplitsExeAndArgs(t *testing.T) {
	c, err := parseCommand("Netstat=netstat.exe,-ano")
	require.NoError(t, err)
	assert.Equal(t, "Netstat", c.Keyword)
	assert.Equal(t, "netstat.exe", c.Exe)
	assert.Equal(t, []string{"-ano"}, c.Args)
	assert.True(t, c.CombineOutErr)
}

func TestParseCommandNoArgs(t *testing.T) {
	c, err := parseCommand("Whoami=whoami.exe")
	require.NoError(t, err)
	assert.Equal(t, "whoami.exe", c.Exe)
	assert.Empty(t, c.Args)
}

func TestParseCommandRejectsMissingEquals(t *testing.T) {
	_, err := parseCommand("whoami.exe")
	require.Error(t, err)
}

func TestParseCommandRejectsMissingExe(t *testing.T) {
	_, err := parseCommand("Keyword=")
	require.Error(t, err)
}

func TestParseRepeatKnownValues(t *testing.T) {
	r, err := parseRepeat("once")
	require.NoError(t, err)
	assert.Equal(t, config.RepeatOnce, r)

	_, err = parseRepeat("bogus")
	require.Error(t, err)
}
