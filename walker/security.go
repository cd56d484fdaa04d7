package walker

import "encoding/binary"

const secDescHeaderSize = 20

// parseSecurityDescriptorStream decodes $Secure:$SDS's entry stream:
// repeated (hash, security id, stream offset, length, descriptor bytes)
// records, each padded to a 16-byte boundary. $SII/$SDH duplicate many
// entries across the stream; the caller dedups by SecurityID.
func parseSecurityDescriptorStream(data []byte) []SecurityDescriptorEntry {
	var out []SecurityDescriptorEntry
	off := 0
	for off+secDescHeaderSize <= len(data) {
		hash := binary.LittleEndian.Uint32(data[off : off+4])
		secID := binary.LittleEndian.Uint32(data[off+4 : off+8])
		totalLen := binary.LittleEndian.Uint32(data[off+16 : off+20])

		if totalLen < secDescHeaderSize || off+int(totalLen) > len(data) {
			// Entries are written in fixed-size 0x4000 pages with zero
			// padding between the last entry and the page end; skip
			// ahead to the next page rather than treating this as fatal.
			next := (off/0x4000 + 1) * 0x4000
			if next <= off {
				break
			}
			off = next
			continue
		}

		descriptor := append([]byte(nil), data[off+secDescHeaderSize:off+int(totalLen)]...)
		out = append(out, SecurityDescriptorEntry{SecurityID: secID, Hash: hash, Descriptor: descriptor})

		next := off + int(totalLen)
		if rem := next % 16; rem != 0 {
			next += 16 - rem
		}
		if next <= off {
			break
		}
		off = next
	}
	return out
}
