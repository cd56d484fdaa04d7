//go:build windows

package usn

import (
	"encoding/binary"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/mft"
)

const fsctlEnumUsnData = 0x900b3

// mftEnumDataV0 mirrors MFT_ENUM_DATA_V0: StartFileReferenceNumber,
// LowUsn, HighUsn.
type mftEnumDataV0 struct {
	StartFRN uint64
	LowUsn   int64
	HighUsn  int64
}

// EnumerateOnline asks the OS for the next batch of USN records
// starting at startFRN (0 enumerates from the beginning), via
// FSCTL_ENUM_USN_DATA on an already-open volume handle. It returns the
// decoded records and the FRN to resume from on the next call.
func EnumerateOnline(vol *os.File, startFRN mft.FRN, bufSize int) ([]Record, mft.FRN, error) {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	in := mftEnumDataV0{StartFRN: uint64(startFRN), LowUsn: 0, HighUsn: 1<<63 - 1}
	inBuf := (*[unsafe.Sizeof(in)]byte)(unsafe.Pointer(&in))[:]

	out := make([]byte, bufSize)
	var returned uint32
	err := windows.DeviceIoControl(
		windows.Handle(vol.Fd()),
		fsctlEnumUsnData,
		&inBuf[0],
		uint32(len(inBuf)),
		&out[0],
		uint32(len(out)),
		&returned,
		nil,
	)
	if err != nil {
		return nil, startFRN, orcerr.Wrap(orcerr.ErrIo, "usn: FSCTL_ENUM_USN_DATA", err)
	}
	if returned < 8 {
		return nil, startFRN, nil
	}

	nextFRN := mft.FRN(binary.LittleEndian.Uint64(out[0:8]))
	body := out[8:returned]

	var records []Record
	offset := 0
	for offset < len(body) {
		rec, consumed, dErr := Decode(body[offset:])
		if dErr != nil {
			break
		}
		records = append(records, rec)
		offset += consumed
	}
	return records, nextFRN, nil
}
