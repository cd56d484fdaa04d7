package volume

import (
	"encoding/binary"
	"os"
	"strconv"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// MBR decodes a classic 4-entry master boot record partition table.
type MBR struct {
	SectorSize int64
}

const mbrSignatureOffset = 510

func (m MBR) sectorSize() int64 {
	if m.SectorSize <= 0 {
		return 512
	}
	return m.SectorSize
}

func (m MBR) Entries(f *os.File) ([]PartitionEntry, error) {
	buf := make([]byte, 512)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, "volume: read MBR", err)
	}
	if buf[mbrSignatureOffset] != 0x55 || buf[mbrSignatureOffset+1] != 0xAA {
		return nil, orcerr.Wrap(orcerr.ErrConfig, "volume: no MBR signature", nil)
	}

	var entries []PartitionEntry
	ss := m.sectorSize()
	for i := 0; i < 4; i++ {
		off := 446 + i*16
		status := buf[off]
		partType := buf[off+4]
		if partType == 0 {
			continue
		}
		startLBA := binary.LittleEndian.Uint32(buf[off+8 : off+12])
		numSectors := binary.LittleEndian.Uint32(buf[off+12 : off+16])
		entries = append(entries, PartitionEntry{
			Index:       strconv.Itoa(i + 1),
			StartOffset: int64(startLBA) * ss,
			SizeBytes:   int64(numSectors) * ss,
			Bootable:    status == 0x80,
		})
	}
	return entries, nil
}
