package fileparser

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Encoding identifies the byte layout detected from a file's BOM.
type Encoding int

const (
	UTF8 Encoding = iota
	UTF16BE
	UTF16LE
	UTF32BE
	UTF32LE
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "UTF-8"
	case UTF16BE:
		return "UTF-16BE"
	case UTF16LE:
		return "UTF-16LE"
	case UTF32BE:
		return "UTF-32BE"
	case UTF32LE:
		return "UTF-32LE"
	default:
		return "unknown"
	}
}

// unitSize returns the number of bytes per code unit for the encoding,
// and whether the newline's content byte is the last byte of its unit
// (big-endian) or the first (little-endian). UTF-8 is a 1-byte unit.
func (e Encoding) unitSize() int {
	switch e {
	case UTF16BE, UTF16LE:
		return 2
	case UTF32BE, UTF32LE:
		return 4
	default:
		return 1
	}
}

func (e Encoding) bigEndian() bool {
	return e == UTF16BE || e == UTF32BE
}

// detectBOM inspects the leading bytes of data and returns the BOM
// length to skip and the detected encoding. Absent any recognized BOM,
// the file is treated as UTF-8. 4-byte BOMs are checked before 2/3-byte
// ones since UTF-32LE's BOM (FF FE 00 00) is a superset of UTF-16LE's
// (FF FE).
func detectBOM(data []byte) (int, Encoding) {
	switch {
	case len(data) >= 4 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0xFE && data[3] == 0xFF:
		return 4, UTF32BE
	case len(data) >= 4 && data[0] == 0xFF && data[1] == 0xFE && data[2] == 0x00 && data[3] == 0x00:
		return 4, UTF32LE
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return 3, UTF8
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return 2, UTF16BE
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return 2, UTF16LE
	default:
		return 0, UTF8
	}
}

// decodeToUTF8 converts raw line bytes in the given encoding to a UTF-8
// string, byte-swapping big-endian code units first.
func decodeToUTF8(raw []byte, enc Encoding) string {
	switch enc {
	case UTF8:
		return string(raw)
	case UTF16BE, UTF16LE:
		n := len(raw) / 2
		units := make([]uint16, n)
		for i := 0; i < n; i++ {
			hi, lo := raw[i*2], raw[i*2+1]
			if enc == UTF16LE {
				hi, lo = lo, hi
			}
			units[i] = uint16(hi)<<8 | uint16(lo)
		}
		return string(utf16.Decode(units))
	case UTF32BE, UTF32LE:
		n := len(raw) / 4
		buf := make([]byte, 0, n*4)
		for i := 0; i < n; i++ {
			b0, b1, b2, b3 := raw[i*4], raw[i*4+1], raw[i*4+2], raw[i*4+3]
			var r rune
			if enc == UTF32BE {
				r = rune(uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8 | uint32(b3))
			} else {
				r = rune(uint32(b3)<<24 | uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0))
			}
			var tmp [utf8.UTFMax]byte
			n := utf8.EncodeRune(tmp[:], r)
			buf = append(buf, tmp[:n]...)
		}
		return string(buf)
	default:
		return string(raw)
	}
}

// trimTrailingNUL drops whole trailing all-zero code units, used only
// for the final line of a file with no terminator. Trimming
// proceeds unitSize bytes at a time so multi-byte encodings never end up
// with a truncated, unpaired code unit.
func trimTrailingNUL(b []byte, unitSize int) []byte {
	end := len(b)
	for end >= unitSize {
		allZero := true
		for _, v := range b[end-unitSize : end] {
			if v != 0x00 {
				allZero = false
				break
			}
		}
		if !allZero {
			break
		}
		end -= unitSize
	}
	return b[:end]
}
