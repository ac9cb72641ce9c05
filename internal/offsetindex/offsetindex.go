// Package offsetindex implements a sparse logical-line to byte-offset
// mapping: storing every Dth offset and re-scanning forward for the
// rest keeps the index at 1/D of the naive size while costing only a
// handful of re-derivations per lookup.
package offsetindex

import "fmt"

// NextOffsetFunc returns the byte offset immediately after the newline
// terminating the line that starts at offset, consuming any
// encoding-specific right-padding bytes. It must not mutate shared state
// beyond the underlying stream's read position.
type NextOffsetFunc func(offset int64) (int64, error)

// OffsetIndex maps line number -> byte offset with sparsity Delta.
type OffsetIndex struct {
	delta      int64
	stored     []int64
	nextOffset NextOffsetFunc
	count      int64
}

// New returns an OffsetIndex storing every delta-th offset. delta must be
// a power of two.
func New(delta int64, nextOffset NextOffsetFunc) *OffsetIndex {
	if delta <= 0 || delta&(delta-1) != 0 {
		panic("offsetindex: delta must be a power of two")
	}
	return &OffsetIndex{delta: delta, nextOffset: nextOffset}
}

// Reset clears the index and rebinds the next-offset callback, e.g. when
// reopening the same FileParser against a new stream.
func (oi *OffsetIndex) Reset(delta int64, nextOffset NextOffsetFunc) {
	if delta <= 0 || delta&(delta-1) != 0 {
		panic("offsetindex: delta must be a power of two")
	}
	oi.delta = delta
	oi.nextOffset = nextOffset
	oi.stored = oi.stored[:0]
	oi.count = 0
}

// Add appends the byte offset of the next line in sequence. Offsets must
// be supplied in file order, one per line including the trailing EOF
// sentinel.
func (oi *OffsetIndex) Add(offset int64) {
	if oi.count%oi.delta == 0 {
		oi.stored = append(oi.stored, offset)
	}
	oi.count++
}

// Size returns the number of offsets added (lines + 1 EOF sentinel).
func (oi *OffsetIndex) Size() int64 { return oi.count }

// Delta returns the configured sparsity.
func (oi *OffsetIndex) Delta() int64 { return oi.delta }

// Map returns the byte offset of line i, re-deriving any offsets between
// the nearest stored boundary and i via nextOffset.
func (oi *OffsetIndex) Map(i int64) (int64, error) {
	if i < 0 || i >= oi.count {
		return 0, fmt.Errorf("offsetindex: index %d out of range [0,%d)", i, oi.count)
	}
	bucket := i &^ (oi.delta - 1)
	offset := oi.stored[bucket/oi.delta]
	for j := bucket; j < i; j++ {
		var err error
		offset, err = oi.nextOffset(offset)
		if err != nil {
			return 0, fmt.Errorf("offsetindex: re-deriving offset for line %d: %w", i, err)
		}
	}
	return offset, nil
}

// StoredOffsets exposes the sparse offset table, for serialization by the
// on-disk cache and for tests.
func (oi *OffsetIndex) StoredOffsets() []int64 {
	out := make([]int64, len(oi.stored))
	copy(out, oi.stored)
	return out
}

// LoadStored restores a previously serialized sparse offset table. The
// caller is responsible for validating that the source file has not
// changed since the table was captured.
func LoadStored(delta, count int64, stored []int64, nextOffset NextOffsetFunc) (*OffsetIndex, error) {
	if delta <= 0 || delta&(delta-1) != 0 {
		return nil, fmt.Errorf("offsetindex: delta must be a power of two, got %d", delta)
	}
	if int64(len(stored)) != expectedStoredCount(count, delta) {
		return nil, fmt.Errorf("offsetindex: stored offset count mismatch: got %d want %d", len(stored), expectedStoredCount(count, delta))
	}
	return &OffsetIndex{delta: delta, stored: stored, nextOffset: nextOffset, count: count}, nil
}

func expectedStoredCount(count, delta int64) int64 {
	if count == 0 {
		return 0
	}
	return (count + delta - 1) / delta
}
