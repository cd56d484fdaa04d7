//go:build !windows

package volume

import "github.com/evidentia/orc-core/internal/orcerr"

func OpenRawDisk(loc ParsedLocation, offset, size int64) (Reader, error) {
	return nil, orcerr.Wrap(orcerr.ErrConfig, "volume: raw disk/partition access requires windows", nil)
}
