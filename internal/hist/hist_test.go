package hist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConservation(t *testing.T) {
	const total = 1000
	h := New(10)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for n := int64(worker); n < total; n += 8 {
				h.Add(n, total)
			}
		}(w)
	}
	wg.Wait()
	h.Freeze()

	// Summing Get over the full line-number domain must recover every
	// add, whatever the relation of domain size to bucket count.
	var sum int64
	for n := int64(0); n < total; n++ {
		sum += h.Get(n, total)
	}
	require.Equal(t, int64(total), sum)
	require.Equal(t, int64(total), h.Total())
}

func TestBucketBoundaries(t *testing.T) {
	h := New(4)
	h.Add(0, 8)
	h.Add(1, 8)
	h.Add(3, 8)
	h.Add(7, 8)
	h.Freeze()

	require.Equal(t, int64(2), h.Bucket(0))
	require.Equal(t, int64(1), h.Bucket(1))
	require.Equal(t, int64(0), h.Bucket(2))
	require.Equal(t, int64(1), h.Bucket(3))
}

// Querying at the histogram's own resolution makes Get a per-bucket
// read; querying coarser sums adjacent buckets.
func TestGetSumsBucketRange(t *testing.T) {
	h := New(4)
	h.Add(0, 8)
	h.Add(1, 8)
	h.Add(3, 8)
	h.Add(7, 8)
	h.Freeze()

	require.Equal(t, int64(2), h.Get(0, 4))
	require.Equal(t, int64(1), h.Get(1, 4))
	require.Equal(t, int64(0), h.Get(2, 4))
	require.Equal(t, int64(1), h.Get(3, 4))

	require.Equal(t, int64(3), h.Get(0, 2))
	require.Equal(t, int64(1), h.Get(1, 2))
}

func TestGetOutOfRangeIsZero(t *testing.T) {
	h := New(4)
	require.Equal(t, int64(0), h.Get(-1, 4))
	require.Equal(t, int64(0), h.Get(4, 4))
	require.Equal(t, int64(0), h.Get(0, 0))
	require.Equal(t, int64(0), h.Bucket(-1))
	require.Equal(t, int64(0), h.Bucket(4))
}
