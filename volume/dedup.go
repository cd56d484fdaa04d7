package volume

import "github.com/evidentia/orc-core/internal/config"

// Candidate is one location string resolved to the physical volume it
// addresses, before Dedup decides which candidates survive.
type Candidate struct {
	Location string
	Serial   uint64
	// Depth approximates how "close to the raw device" this location
	// is: a bare mounted drive letter is shallowest, an offset/size
	// windowed image or partition is deepest. Lower is shallower.
	Depth int
}

// Dedup applies DFIR-ORC_DEFAULT_ALTITUDE across candidates
// that address the same physical volume (same Serial), returning one
// survivor per distinct serial.
//
//   - lowest:  keep the shallowest (smallest Depth) candidate.
//   - highest: keep the deepest (largest Depth) candidate.
//   - exact:   keep every candidate unchanged (no deduplication).
func Dedup(candidates []Candidate, altitude config.Altitude) []Candidate {
	if altitude == config.AltitudeExact {
		return candidates
	}

	bySerial := map[uint64]Candidate{}
	order := []uint64{}
	for _, c := range candidates {
		best, seen := bySerial[c.Serial]
		if !seen {
			bySerial[c.Serial] = c
			order = append(order, c.Serial)
			continue
		}
		switch altitude {
		case config.AltitudeHighest:
			if c.Depth > best.Depth {
				bySerial[c.Serial] = c
			}
		default: // AltitudeLowest, and the zero value
			if c.Depth < best.Depth {
				bySerial[c.Serial] = c
			}
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, s := range order {
		out = append(out, bySerial[s])
	}
	return out
}
