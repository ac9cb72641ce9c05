package offsetindex

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// naiveOffsets builds offsets for fixed-width "lines" of the given
// lengths (plus one newline byte each), the way a line-splitter would.
func naiveOffsets(lineLengths []int) []int64 {
	offsets := make([]int64, 0, len(lineLengths)+1)
	cur := int64(0)
	for _, l := range lineLengths {
		offsets = append(offsets, cur)
		cur += int64(l) + 1
	}
	offsets = append(offsets, cur) // EOF sentinel
	return offsets
}

func nextOffsetFor(lineLengths []int) NextOffsetFunc {
	naive := naiveOffsets(lineLengths)
	return func(offset int64) (int64, error) {
		for i, o := range naive {
			if o == offset && i+1 < len(naive) {
				return naive[i+1], nil
			}
		}
		return 0, fmt.Errorf("no such offset %d", offset)
	}
}

func TestMapMatchesNaiveForAnyPowerOfTwoDelta(t *testing.T) {
	lineLengths := []int{3, 10, 1, 1, 50, 4, 4, 4, 9, 0, 12, 1}
	naive := naiveOffsets(lineLengths)

	for _, delta := range []int64{1, 2, 4, 8, 32} {
		oi := New(delta, nextOffsetFor(lineLengths))
		for _, off := range naive {
			oi.Add(off)
		}
		require.Equal(t, int64(len(naive)), oi.Size())
		for i := range naive {
			got, err := oi.Map(int64(i))
			require.NoError(t, err)
			require.Equal(t, naive[i], got, "delta=%d i=%d", delta, i)
		}
	}
}

func TestMapOutOfRange(t *testing.T) {
	oi := New(4, nextOffsetFor([]int{1, 2}))
	oi.Add(0)
	oi.Add(2)
	oi.Add(5)
	_, err := oi.Map(5)
	require.Error(t, err)
}

func TestCacheRoundTripAndInvalidation(t *testing.T) {
	lineLengths := []int{3, 10, 1, 1, 50}
	naive := naiveOffsets(lineLengths)
	oi := New(2, nextOffsetFor(lineLengths))
	for _, off := range naive {
		oi.Add(off)
	}

	dir := t.TempDir()
	cachePath := filepath.Join(dir, "log.txt.logseer-offsets")
	require.NoError(t, SaveCache(cachePath, oi, 12345, 67890))

	loaded, ok, err := LoadCache(cachePath, 12345, 67890, nextOffsetFor(lineLengths))
	require.NoError(t, err)
	require.True(t, ok)
	for i := range naive {
		got, err := loaded.Map(int64(i))
		require.NoError(t, err)
		require.Equal(t, naive[i], got)
	}

	_, ok, err = LoadCache(cachePath, 12345, 99999, nextOffsetFor(lineLengths))
	require.NoError(t, err)
	require.False(t, ok, "mtime mismatch should invalidate the cache")

	missing := filepath.Join(dir, "does-not-exist")
	_, ok, err = LoadCache(missing, 1, 1, nextOffsetFor(lineLengths))
	require.NoError(t, err)
	require.False(t, ok)
	_ = os.Remove(cachePath)
}
