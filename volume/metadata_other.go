//go:build !windows

package volume

import "github.com/evidentia/orc-core/internal/orcerr"

// AlternateStream mirrors the windows type so callers can build
// against this package on any platform.
type AlternateStream struct {
	Name string
	Data []byte
}

// ReadAlternateStreams reports an error: NTFS alternate data streams
// are a windows-only concept.
func ReadAlternateStreams(path string) ([]AlternateStream, error) {
	return nil, orcerr.Wrap(orcerr.ErrConfig, "volume: alternate data streams require windows", nil)
}
