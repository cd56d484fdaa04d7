//go:build !windows

package volume

import "github.com/evidentia/orc-core/internal/orcerr"

// OpenMounted is a Windows-only volume source; on other platforms the
// collector only ever addresses raw images.
func OpenMounted(loc ParsedLocation) (Reader, error) {
	return nil, orcerr.Wrap(orcerr.ErrConfig, "volume: mounted-drive access requires windows", nil)
}
