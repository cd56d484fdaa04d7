package volume

import (
	"os"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// OpenImage addresses a disk image file (optionally one partition of
// it, via the partition= / offset=/size= location parameters).
func OpenImage(loc ParsedLocation, pt PartitionTable) (Reader, error) {
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: open image "+loc.Path, err)
	}

	offset, size := loc.Offset, loc.Size
	if loc.Partition != "" && pt != nil {
		entries, pErr := pt.Entries(f)
		if pErr != nil {
			f.Close()
			return nil, pErr
		}
		idx, pErr := resolvePartitionIndex(loc.Partition, entries)
		if pErr != nil {
			f.Close()
			return nil, pErr
		}
		offset = entries[idx].StartOffset
		size = entries[idx].SizeBytes
	}

	r, err := newFileBackedReader(f, offset, size)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func resolvePartitionIndex(spec string, entries []PartitionEntry) (int, error) {
	if spec == "*" {
		for i, e := range entries {
			if e.Bootable {
				return i, nil
			}
		}
		if len(entries) > 0 {
			return 0, nil
		}
		return 0, orcerr.Wrap(orcerr.ErrConfig, "volume: image has no partitions", nil)
	}
	for i, e := range entries {
		if e.Index == spec {
			return i, nil
		}
	}
	return 0, orcerr.Wrap(orcerr.ErrConfig, "volume: no partition numbered "+spec, nil)
}

// PartitionEntry is one row of a decoded partition table.
type PartitionEntry struct {
	Index       string
	StartOffset int64
	SizeBytes   int64
	Bootable    bool
}

// PartitionTable is a pluggable decoder over a raw disk/image handle, so
// MBR and GPT (and future schemes) can be added without touching the
// readers that use them.
type PartitionTable interface {
	Entries(f *os.File) ([]PartitionEntry, error)
}
