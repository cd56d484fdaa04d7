//go:build windows

package volume

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// OpenMounted opens \\.\<drive> with direct volume access. On a
// SharingViolation it self-heals by progressively reducing the
// requested access rights
func OpenMounted(loc ParsedLocation) (Reader, error) {
	path := fmt.Sprintf(`\\.\%s`, loc.Path)

	rightsLadder := []uint32{
		windows.GENERIC_READ | windows.GENERIC_WRITE,
		windows.GENERIC_READ,
		0,
	}

	var h windows.Handle
	var err error
	p16, cErr := windows.UTF16PtrFromString(path)
	if cErr != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: encode path", cErr)
	}
	for _, rights := range rightsLadder {
		h, err = windows.CreateFile(
			p16,
			rights,
			windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
			nil,
			windows.OPEN_EXISTING,
			windows.FILE_FLAG_BACKUP_SEMANTICS,
			0,
		)
		if err == nil {
			break
		}
		if err != windows.ERROR_SHARING_VIOLATION {
			return nil, orcerr.Wrap(orcerr.ErrAccessDenied, "volume: open "+path, err)
		}
	}
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrAccessDenied, "volume: open "+path+" (exhausted rights ladder)", err)
	}

	f := os.NewFile(uintptr(h), path)
	r, rErr := newFileBackedReader(f, 0, 0)
	if rErr != nil {
		f.Close()
		return nil, rErr
	}
	return r, nil
}
