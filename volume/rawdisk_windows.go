//go:build windows

package volume

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// OpenRawDisk addresses \\.\PhysicalDriveN or \\.\HarddiskVolumeN,
// optionally windowed to one partition via loc.Offset/loc.Size (already
// resolved by the caller from loc.Partition and a PartitionTable).
func OpenRawDisk(loc ParsedLocation, offset, size int64) (Reader, error) {
	p16, err := windows.UTF16PtrFromString(loc.Path)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: encode path", err)
	}
	h, err := windows.CreateFile(
		p16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrAccessDenied, fmt.Sprintf("volume: open %s", loc.Path), err)
	}
	f := os.NewFile(uintptr(h), loc.Path)
	r, rErr := newFileBackedReader(f, offset, size)
	if rErr != nil {
		f.Close()
		return nil, rErr
	}
	return r, nil
}
