//go:build unix

package fileparser

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps f read-only so random-access ReadLine calls
// avoid redundant read syscalls on large files.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// munmapFile unmaps memory obtained from mmapFile.
func munmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
