//go:build windows

package volume

import (
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// OpenSnapshot opens a VSS shadow-copy device path and stamps the
// returned Reader with a non-nil snapshot id
func OpenSnapshot(loc ParsedLocation, snapshotID uuid.UUID) (Reader, error) {
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
		return nil, orcerr.Wrap(orcerr.ErrAccessDenied, "volume: open snapshot "+loc.Path, err)
	}
	f := os.NewFile(uintptr(h), loc.Path)
	r, rErr := newFileBackedReader(f, 0, 0)
	if rErr != nil {
		f.Close()
		return nil, rErr
	}
	id := snapshotID
	r.snapshotID = &id
	return r, nil
}
