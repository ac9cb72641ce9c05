// Package hist implements a fixed-resolution count-histogram over a
// line-number domain, built concurrently by indexing/search workers
// and queried only after Freeze.
package hist

import "sync/atomic"

// Hist buckets line numbers from a [0, total) domain into a fixed
// number of equal-width buckets. Add is safe for concurrent callers;
// Get is only meaningful after Freeze has been called (or after all
// writers have joined, making Freeze a formality).
type Hist struct {
	buckets  []int64
	frozen   atomic.Bool
	totalAdd int64
}

// New returns a histogram with the given resolution (bucket count).
func New(resolution int) *Hist {
	if resolution < 1 {
		resolution = 1
	}
	return &Hist{buckets: make([]int64, resolution)}
}

// Resolution returns the fixed bucket count.
func (h *Hist) Resolution() int { return len(h.buckets) }

// Add records one occurrence of lineNumber within a domain of size
// total, incrementing the bucket it falls into.
func (h *Hist) Add(lineNumber, total int64) {
	b := h.bucketFor(lineNumber, total)
	atomic.AddInt64(&h.buckets[b], 1)
	atomic.AddInt64(&h.totalAdd, 1)
}

func (h *Hist) bucketFor(lineNumber, total int64) int {
	if total <= 0 {
		return 0
	}
	res := int64(len(h.buckets))
	b := lineNumber * res / total
	if b < 0 {
		b = 0
	}
	if b >= res {
		b = res - 1
	}
	return int(b)
}

// Freeze marks the histogram read-only. After Freeze, Get observes a
// consistent snapshot; calling Add concurrently with Get before Freeze
// is the caller's responsibility to avoid (the indexing/search tasks
// that own a Hist only read it after their worker pool has joined).
func (h *Hist) Freeze() { h.frozen.Store(true) }

// Get returns the number of adds recorded for query index n over a
// domain of size total: the sum of the buckets covering the range
// [⌊n/total·H⌋ .. ⌊(n+1)/total·H⌋−1]. Querying every n in [0,total)
// partitions the bucket array exactly, so the per-query sums add up to
// Total regardless of how total relates to the bucket count.
func (h *Hist) Get(n, total int64) int64 {
	if total <= 0 || n < 0 || n >= total {
		return 0
	}
	res := int64(len(h.buckets))
	first := n * res / total
	last := (n+1)*res/total - 1
	if last >= res {
		last = res - 1
	}
	var sum int64
	for b := first; b <= last; b++ {
		sum += atomic.LoadInt64(&h.buckets[b])
	}
	return sum
}

// Bucket returns the raw count in bucket n, for callers rendering the
// histogram at its native resolution.
func (h *Hist) Bucket(n int) int64 {
	if n < 0 || n >= len(h.buckets) {
		return 0
	}
	return atomic.LoadInt64(&h.buckets[n])
}

// Total returns the number of Add calls observed so far.
func (h *Hist) Total() int64 { return atomic.LoadInt64(&h.totalAdd) }
