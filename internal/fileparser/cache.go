package fileparser

import "github.com/logscope/logscope/internal/offsetindex"

// IndexWithCache validates and loads a previously saved OffsetIndex
// sidecar before falling back to the normal linear scan. On a cache
// hit the linear scan is skipped entirely; on a miss (or
// corrupt/absent cache) it runs Index and, if save is true, writes a
// fresh sidecar for the next open.
func (fp *FileParser) IndexWithCache(cachePath string, sourceSize, sourceMTime int64, save bool, progress func(done, total int64), stopRequested func() bool) (bool, error) {
	fp.mu.Lock()
	bomLen, enc := detectBOM(fp.data)
	fp.bomLen = bomLen
	fp.encoding = enc
	fp.mu.Unlock()

	if oi, hit, err := offsetindex.LoadCache(cachePath, sourceSize, sourceMTime, fp.nextOffset); err == nil && hit {
		fp.mu.Lock()
		fp.offsets = oi
		fp.lastLineNoTerminator = !fp.hasTrailingTerminatorLocked()
		fp.indexed = true
		fp.mu.Unlock()
		if progress != nil {
			progress(sourceSize, sourceSize)
		}
		return true, nil
	}

	ok, err := fp.Index(progress, stopRequested)
	if err != nil || !ok {
		return ok, err
	}
	if save {
		fp.mu.Lock()
		oi := fp.offsets
		fp.mu.Unlock()
		// The cache is derived, recomputable data; a write failure (e.g.
		// a read-only log directory) never fails indexing itself.
		_ = offsetindex.SaveCache(cachePath, oi, sourceSize, sourceMTime)
	}
	return true, nil
}

// hasTrailingTerminatorLocked reports whether the byte stream's final
// logical line ends with its encoding's newline code unit. Must be
// called with mu held and after bomLen/encoding are set.
func (fp *FileParser) hasTrailingTerminatorLocked() bool {
	n := int64(len(fp.data))
	if n <= int64(fp.bomLen) {
		return true
	}
	unit := int64(fp.encoding.unitSize())
	if n < unit {
		return false
	}
	if fp.encoding.bigEndian() {
		return fp.data[n-1] == '\n'
	}
	if fp.encoding == UTF8 {
		return fp.data[n-1] == '\n'
	}
	return fp.data[n-unit] == '\n'
}
