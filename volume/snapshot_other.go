//go:build !windows

package volume

import (
	"github.com/google/uuid"

	"github.com/evidentia/orc-core/internal/orcerr"
)

func OpenSnapshot(loc ParsedLocation, snapshotID uuid.UUID) (Reader, error) {
	return nil, orcerr.Wrap(orcerr.ErrConfig, "volume: VSS snapshot access requires windows", nil)
}
