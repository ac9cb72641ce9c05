package offsetindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// cacheMagic identifies the sidecar offset-cache format. Bumped on
// incompatible layout changes.
const cacheMagic = "LSOF" + "\x01"

// CachePath returns the sidecar path for a log file.
func CachePath(logPath string) string { return logPath + ".logseer-offsets" }

// SaveCache serializes an OffsetIndex's sparse offset table next to the
// log file it indexes, tagged with the source file's size and mtime so a
// later Load can detect staleness. Record layout is fixed-width,
// big-endian: header (magic, delta, count, sourceSize, sourceMTime,
// storedCount) followed by storedCount offsets.
func SaveCache(cachePath string, oi *OffsetIndex, sourceSize, sourceMTime int64) error {
	f, err := os.Create(cachePath)
	if err != nil {
		return fmt.Errorf("offsetindex: creating cache: %w", err)
	}
	defer f.Close()

	stored := oi.StoredOffsets()
	header := make([]byte, 0, len(cacheMagic)+5*8)
	header = append(header, cacheMagic...)
	header = appendInt64(header, oi.Delta())
	header = appendInt64(header, oi.Size())
	header = appendInt64(header, sourceSize)
	header = appendInt64(header, sourceMTime)
	header = appendInt64(header, int64(len(stored)))
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("offsetindex: writing cache header: %w", err)
	}

	buf := make([]byte, len(stored)*8)
	for i, off := range stored {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], uint64(off))
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("offsetindex: writing cache body: %w", err)
	}
	return nil
}

// LoadCache reads a sidecar offset cache and validates it against the
// current source file's size and mtime. A mismatch returns (nil, false,
// nil): the caller should fall back to a fresh scan.
func LoadCache(cachePath string, sourceSize, sourceMTime int64, nextOffset NextOffsetFunc) (*OffsetIndex, bool, error) {
	f, err := os.Open(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("offsetindex: opening cache: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(cacheMagic)+5*8)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, false, nil // truncated/corrupt cache: treat as absent
	}
	if string(header[:len(cacheMagic)]) != cacheMagic {
		return nil, false, nil
	}
	pos := len(cacheMagic)
	delta := readInt64(header, &pos)
	count := readInt64(header, &pos)
	gotSize := readInt64(header, &pos)
	gotMTime := readInt64(header, &pos)
	storedCount := readInt64(header, &pos)

	if gotSize != sourceSize || gotMTime != sourceMTime {
		return nil, false, nil
	}

	buf := make([]byte, storedCount*8)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, false, nil
	}
	stored := make([]int64, storedCount)
	for i := range stored {
		stored[i] = int64(binary.BigEndian.Uint64(buf[i*8 : i*8+8]))
	}

	oi, err := LoadStored(delta, count, stored, nextOffset)
	if err != nil {
		return nil, false, nil
	}
	return oi, true, nil
}

func appendInt64(b []byte, v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return append(b, buf[:]...)
}

func readInt64(b []byte, pos *int) int64 {
	v := int64(binary.BigEndian.Uint64(b[*pos : *pos+8]))
	*pos += 8
	return v
}
