package walker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evidentia/orc-core/internal/config"
)

func TestShouldConsiderInUseAlwaysTrue(t *testing.T) {
	assert.True(t, shouldConsider(config.ResurrectNo, true))
	assert.True(t, shouldConsider(config.ResurrectStrictOnly, true))
	assert.True(t, shouldConsider(config.ResurrectBestEffort, true))
}

func TestShouldConsiderDeletedFollowsPolicy(t *testing.T) {
	assert.False(t, shouldConsider(config.ResurrectNo, false))
	assert.True(t, shouldConsider(config.ResurrectStrictOnly, false))
	assert.True(t, shouldConsider(config.ResurrectBestEffort, false))
}

func TestAssembleStrictOnlyAppliesToDeleted(t *testing.T) {
	assert.False(t, assembleStrict(config.ResurrectStrictOnly, true))
	assert.True(t, assembleStrict(config.ResurrectStrictOnly, false))
	assert.False(t, assembleStrict(config.ResurrectBestEffort, false))
}

func TestShouldKeepResurrected(t *testing.T) {
	errSome := errors.New("boom")
	assert.True(t, shouldKeepResurrected(config.ResurrectStrictOnly, true, errSome))
	assert.True(t, shouldKeepResurrected(config.ResurrectStrictOnly, false, nil))
	assert.False(t, shouldKeepResurrected(config.ResurrectStrictOnly, false, errSome))
	assert.True(t, shouldKeepResurrected(config.ResurrectBestEffort, false, errSome))
}
