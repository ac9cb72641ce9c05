// Package fileparser maps a byte stream (with optional BOM-declared
// encoding) to a line-offset index, and reads lines back by logical
// index, converted to UTF-8.
package fileparser

import (
	"fmt"
	"os"
	"sync"

	"github.com/logscope/logscope/internal/coreerr"
	"github.com/logscope/logscope/internal/offsetindex"
)

// defaultDelta is the OffsetIndex sparsity: store every 32nd
// line's offset and re-scan the rest.
const defaultDelta = 32

// defaultLineCacheBytes bounds the decoded-line LRU (linecache.go).
const defaultLineCacheBytes = 4 << 20

// FileParser owns a seekable byte source and its derived OffsetIndex.
// SetDelta, Index, LineCount and ReadLine are serialized by mu; Size,
// Encoding and Close take no lock.
type FileParser struct {
	mu sync.Mutex

	data   []byte
	closer func() error
	delta  int64

	bomLen               int
	encoding             Encoding
	offsets              *offsetindex.OffsetIndex
	lastLineNoTerminator bool
	indexed              bool

	cache *lineCache
}

// Open memory-maps path (falling back to a buffered read where mmap is
// unsupported, per mmap_unix.go/mmap_other.go) and returns a FileParser
// ready to be Indexed.
func Open(path string) (*FileParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileparser: opening %s: %w: %w", path, coreerr.ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fileparser: stat %s: %w: %w", path, coreerr.ErrIO, err)
	}
	data, err := mmapFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fileparser: mmap %s: %w: %w", path, coreerr.ErrIO, err)
	}
	closer := func() error {
		defer f.Close()
		return munmapFile(data)
	}
	return FromBytes(data, closer), nil
}

// FromBytes wraps an in-memory buffer directly, useful for tests and for
// streams that are already fully materialized. closer may be nil.
func FromBytes(data []byte, closer func() error) *FileParser {
	return &FileParser{
		data:   data,
		closer: closer,
		delta:  defaultDelta,
		cache:  newLineCache(defaultLineCacheBytes),
	}
}

// SetDelta overrides the OffsetIndex sparsity (SessionConfig's
// offset_delta) used by the next Index call. delta must be a power of
// two; called before Index, it has no effect afterwards.
func (fp *FileParser) SetDelta(delta int64) {
	if delta <= 0 || delta&(delta-1) != 0 {
		return
	}
	fp.mu.Lock()
	fp.delta = delta
	fp.mu.Unlock()
}

// Close releases the backing byte source.
func (fp *FileParser) Close() error {
	if fp.closer == nil {
		return nil
	}
	return fp.closer()
}

// Size returns the total byte length of the underlying stream.
func (fp *FileParser) Size() int64 { return int64(len(fp.data)) }

// Encoding returns the encoding detected by the most recent Index call.
func (fp *FileParser) Encoding() Encoding { return fp.encoding }

// Index detects the BOM, builds the OffsetIndex, and records line
// boundaries. Returns false iff stopRequested fired before completion.
func (fp *FileParser) Index(progress func(done, total int64), stopRequested func() bool) (bool, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	bomLen, enc := detectBOM(fp.data)
	fp.bomLen = bomLen
	fp.encoding = enc

	total := int64(len(fp.data))
	fp.offsets = offsetindex.New(fp.delta, fp.nextOffset)
	fp.lastLineNoTerminator = false

	offset := int64(bomLen)
	for offset < total {
		fp.offsets.Add(offset)
		if stopRequested != nil && stopRequested() {
			return false, nil
		}
		next, err := fp.nextOffset(offset)
		if err != nil {
			// No further terminator: the rest of the file is one
			// unterminated final line.
			fp.lastLineNoTerminator = true
			offset = total
			break
		}
		if progress != nil {
			progress(offset, total)
		}
		offset = next
	}
	fp.offsets.Add(offset) // EOF sentinel; offset == total here.
	fp.indexed = true
	if progress != nil {
		progress(total, total)
	}
	return true, nil
}

// LineCount returns the number of logical lines, valid after Index.
func (fp *FileParser) LineCount() int64 {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.lineCountLocked()
}

func (fp *FileParser) lineCountLocked() int64 {
	if fp.offsets == nil {
		return 0
	}
	return fp.offsets.Size() - 1
}

// ReadLine returns the UTF-8 content of logical line i.
func (fp *FileParser) ReadLine(i int64) (string, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.offsets == nil {
		return "", fmt.Errorf("fileparser: ReadLine before Index")
	}
	if cached, ok := fp.cache.get(i); ok {
		return cached, nil
	}

	count := fp.lineCountLocked()
	if i < 0 || i >= count {
		return "", fmt.Errorf("fileparser: line %d out of range [0,%d)", i, count)
	}

	start, err := fp.offsets.Map(i)
	if err != nil {
		return "", fmt.Errorf("fileparser: mapping line %d: %w: %w", i, coreerr.ErrIO, err)
	}

	isLast := i == count-1
	var raw []byte
	if isLast && fp.lastLineNoTerminator {
		raw = fp.data[start:]
		raw = trimTrailingNUL(raw, fp.encoding.unitSize())
	} else {
		nextStart, err := fp.offsets.Map(i + 1)
		if err != nil {
			return "", fmt.Errorf("fileparser: mapping line %d terminator: %w: %w", i, coreerr.ErrIO, err)
		}
		contentEnd := nextStart - int64(fp.encoding.unitSize())
		if contentEnd < start {
			contentEnd = start
		}
		raw = fp.data[start:contentEnd]
	}

	line := decodeToUTF8(raw, fp.encoding)
	fp.cache.put(i, line)
	return line, nil
}

// nextOffset implements the OffsetIndex callback: given the
// byte offset a line starts at, return the offset immediately after the
// newline terminating it, consuming the full terminator code unit.
// Returns an error if no terminator is found before EOF.
func (fp *FileParser) nextOffset(offset int64) (int64, error) {
	n := int64(len(fp.data))
	if fp.encoding == UTF8 {
		i := offset
		for i < n && fp.data[i] != '\n' {
			i++
		}
		if i >= n {
			return 0, fmt.Errorf("fileparser: no terminator after offset %d", offset)
		}
		return i + 1, nil
	}

	unit := int64(fp.encoding.unitSize())
	be := fp.encoding.bigEndian()
	i := offset
	for i+unit <= n {
		var nlPos int64
		if be {
			nlPos = i + unit - 1
		} else {
			nlPos = i
		}
		if fp.data[nlPos] == '\n' {
			return i + unit, nil
		}
		i += unit
	}
	return 0, fmt.Errorf("fileparser: no terminator after offset %d", offset)
}
