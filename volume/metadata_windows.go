//go:build windows

package volume

import (
	"strings"

	"github.com/pkg/xattr"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// AlternateStream is one named data stream (":streamname:$DATA") found
// attached to a file, surfaced the same way a reparse point or ADS
// shows up as an extended attribute on a POSIX filesystem.
type AlternateStream struct {
	Name string
	Data []byte
}

// ReadAlternateStreams lists and reads every non-default named data
// stream attached to path, treating each ADS the way the local
// filesystem backend treats a POSIX xattr: a named side-channel of
// bytes keyed off the same underlying file.
func ReadAlternateStreams(path string) ([]AlternateStream, error) {
	names, err := xattr.List(path)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: list alternate streams for "+path, err)
	}
	out := make([]AlternateStream, 0, len(names))
	for _, name := range names {
		if name == "" || name == "$DATA" {
			continue // unnamed default stream: already read as the file's content
		}
		data, gErr := xattr.Get(path, name)
		if gErr != nil {
			return nil, orcerr.Wrap(orcerr.ErrIo, "volume: read alternate stream "+name+" of "+path, gErr)
		}
		out = append(out, AlternateStream{Name: strings.TrimSuffix(name, ":$DATA"), Data: data})
	}
	return out, nil
}
