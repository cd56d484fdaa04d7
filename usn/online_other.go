//go:build !windows

package usn

import (
	"os"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/mft"
)

// EnumerateOnline is unavailable off Windows: FSCTL_ENUM_USN_DATA is a
// Windows-only device control code.
func EnumerateOnline(vol *os.File, startFRN mft.FRN, bufSize int) ([]Record, mft.FRN, error) {
	return nil, startFRN, orcerr.Wrap(orcerr.ErrConfig, "usn: online enumeration requires windows", nil)
}
