package usn

import "github.com/evidentia/orc-core/pathresolve"

// resyncWindow is how far ParseOffline scans for a plausible header
// before giving up on the current chunk.
const resyncWindow = 1 << 20 // 1 MiB

// chunkSkip is how far the scanner jumps once a resync window is
// exhausted without finding a plausible header.
const chunkSkip = 1 << 16 // 64 KiB

// ParseOffline decodes every USN record found in a raw $UsnJrnl:$J
// byte stream, skipping the sparse zero runs NTFS leaves between
// records and re-synchronizing on the next plausible record header
// after any corruption or misalignment. An entirely sparse stream
// yields zero records and a nil error.
func ParseOffline(data []byte) ([]Record, error) {
	var out []Record
	offset := 0
	unsyncedSince := -1

	for offset < len(data) {
		if offset+8 > len(data) {
			break
		}
		if isAllZero(data[offset : offset+8]) {
			offset++
			continue
		}

		rec, consumed, err := Decode(data[offset:])
		if err != nil {
			if unsyncedSince < 0 {
				unsyncedSince = offset
			}
			if offset-unsyncedSince >= resyncWindow {
				offset = unsyncedSince + chunkSkip
				unsyncedSince = -1
				continue
			}
			offset++
			continue
		}

		unsyncedSince = -1
		out = append(out, rec)
		offset += consumed
		if pad := offset % 8; pad != 0 {
			offset += 8 - pad
		}
	}
	return out, nil
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Remember feeds r's (frn -> parent, name) mapping into idx so later
// records whose parent chain passes through frn resolve cleanly,
// reusing the same parent index and placeholder rules PathResolver
// uses for the main MFT walk.
func Remember(idx *pathresolve.Index, r Record) {
	idx.Remember(r.FRN, r.ParentFRN, r.FileName)
}

// ResolvePath synthesizes r's full path via idx, producing the
// synthetic __<hex-frn>__\ placeholder when the parent chain isn't
// (yet) fully known. Consumers must treat repeated emissions for the
// same (usn, frn) pair as idempotent: a later call with a more
// complete idx simply supersedes an earlier placeholder-bearing path.
func ResolvePath(idx *pathresolve.Index, r Record, volumeRoot pathresolve.VolumeRootLabel) string {
	return idx.Resolve(r.FRN, r.FileName, volumeRoot)
}

