package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocationMounted(t *testing.T) {
	pl, err := ParseLocation(`C:\Users`)
	require.NoError(t, err)
	assert.Equal(t, LocationMounted, pl.Kind)
	assert.Equal(t, "C:", pl.Path)
	assert.Equal(t, "Users", pl.SubPath)
}

func TestParseLocationVolumeID(t *testing.T) {
	pl, err := ParseLocation(`\\?\Volume{12345678-1234-1234-1234-123456789abc}\dir`)
	require.NoError(t, err)
	assert.Equal(t, LocationVolumeID, pl.Kind)
	assert.Equal(t, "dir", pl.SubPath)
}

func TestParseLocationPhysicalDriveWithParams(t *testing.T) {
	pl, err := ParseLocation(`\\.\PhysicalDrive0,offset=1048576,size=2097152,sector=512`)
	require.NoError(t, err)
	assert.Equal(t, LocationPhysicalDrive, pl.Kind)
	assert.Equal(t, `\\.\PhysicalDrive0`, pl.Path)
	assert.EqualValues(t, 1048576, pl.Offset)
	assert.EqualValues(t, 2097152, pl.Size)
	assert.EqualValues(t, 512, pl.Sector)
}

func TestParseLocationImageWithPartition(t *testing.T) {
	pl, err := ParseLocation(`C:\images\disk.raw,partition=2`)
	require.NoError(t, err)
	assert.Equal(t, LocationImageFile, pl.Kind)
	assert.Equal(t, `C:\images\disk.raw`, pl.Path)
	assert.Equal(t, "2", pl.Partition)
}

func TestParseLocationHarddiskVolume(t *testing.T) {
	pl, err := ParseLocation(`\\.\HarddiskVolume3`)
	require.NoError(t, err)
	assert.Equal(t, LocationHarddiskVolume, pl.Kind)
}

func TestParseLocationSnapshot(t *testing.T) {
	pl, err := ParseLocation(`\\?\GLOBALROOT\Device\HarddiskVolumeShadowCopy7`)
	require.NoError(t, err)
	assert.Equal(t, LocationSnapshot, pl.Kind)
}
