package bitset

// LineMap is the append-only random-access adapter over a filtered view:
// callers Add file-line numbers in ascending order while walking a
// filter or search result, then Freeze once to get O(log N/bucket)
// random access via Get.
type LineMap struct {
	b        *Builder
	frozen   *Bitmap
	bucketSz int
}

// NewLineMap creates an empty LineMap. bucketSz is the bucket-table
// spacing used once Freeze is called.
func NewLineMap(bucketSz int) *LineMap {
	return &LineMap{b: NewBuilder(), bucketSz: bucketSz}
}

// Add appends the next visible file-line number. Must be called in
// strictly increasing order and before Freeze.
func (lm *LineMap) Add(lineNumber int64) {
	if lm.frozen != nil {
		panic("bitset: LineMap.Add after Freeze")
	}
	lm.b.Add(lineNumber)
}

// Freeze finalizes the map for random access. Idempotent.
func (lm *LineMap) Freeze() {
	if lm.frozen == nil {
		lm.frozen = lm.b.Freeze(lm.bucketSz)
	}
}

// Size returns the number of visible lines.
func (lm *LineMap) Size() int {
	if lm.frozen != nil {
		return lm.frozen.Size()
	}
	return lm.b.Size()
}

// Get returns the file-line number of the kth visible line. Freeze must
// have been called first.
func (lm *LineMap) Get(k int) int64 {
	if lm.frozen == nil {
		panic("bitset: LineMap.Get before Freeze")
	}
	return lm.frozen.Get(k)
}

// Identity builds a LineMap containing every line [0,count), representing
// the unfiltered view.
func Identity(count int64, bucketSz int) *LineMap {
	lm := NewLineMap(bucketSz)
	for i := int64(0); i < count; i++ {
		lm.Add(i)
	}
	lm.Freeze()
	return lm
}
