//go:build !unix

package fileparser

import (
	"io"
	"os"
)

// mmapFile falls back to a plain read on platforms without a mapped
// implementation.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return io.ReadAll(f)
}

// munmapFile is a no-op for the ReadAll fallback.
func munmapFile(data []byte) error { return nil }
