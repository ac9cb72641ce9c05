package bitset

import (
	"fmt"
	"math/bits"

	"github.com/tidwall/btree"
)

// Bitmap is the indexed/random-access EWAH-style variant: an
// immutable compressed bitmap that supports size, ascending iteration,
// O(log N/bucket) random access via Get, and the three bitwise algebra
// operations indexing and filtering rely on.
//
// Random access is backed by a bucket table keyed by cumulative set-bit
// count: every bucketWords words, it records the run index the decoder
// should resume from. tidwall/btree.Map gives the ordered predecessor
// search the lookup needs without hand-rolling a sorted-slice binary
// search.
type Bitmap struct {
	runs        []run
	size        int
	bucketWords int
	// buckets maps "bits-before-run[i]" -> run index i, for every i that
	// starts a new bucketWords-word span.
	buckets *btree.Map[int64, int]
	// bitsBeforeRun[i] is the number of set bits contributed by runs[:i].
	bitsBeforeRun []int64
	// wordBeforeRun[i] is the word index at which runs[i] begins.
	wordBeforeRun []int64
}

func newBitmap(runs []run, size int, bucketWords int) *Bitmap {
	if bucketWords < wordBits {
		bucketWords = wordBits
	}
	bucketWords = 1 << bits.Len(uint(bucketWords-1))

	bm := &Bitmap{runs: runs, size: size, bucketWords: bucketWords}
	bm.bitsBeforeRun = make([]int64, len(runs)+1)
	bm.wordBeforeRun = make([]int64, len(runs)+1)

	buckets := &btree.Map[int64, int]{}
	word := int64(0)
	bits := int64(0)
	nextBucketWord := int64(0)
	for i, r := range runs {
		bm.bitsBeforeRun[i] = bits
		bm.wordBeforeRun[i] = word
		if word >= nextBucketWord {
			buckets.Set(bits, i)
			nextBucketWord = word + int64(bucketWords)
		}
		word += int64(r.zeroWords)
		if r.hasLiteral {
			word++
			bits += int64(popcount(r.literal))
		}
	}
	bm.bitsBeforeRun[len(runs)] = bits
	bm.wordBeforeRun[len(runs)] = word
	bm.buckets = buckets
	return bm
}

func popcount(w uint64) int { return bits.OnesCount64(w) }

// Size returns the number of set bits.
func (bm *Bitmap) Size() int { return bm.size }

// Get returns the kth set bit (0-based). Panics if k is out of
// range; an in-range lookup cannot fail.
func (bm *Bitmap) Get(k int) int64 {
	if k < 0 || k >= bm.size {
		panic(fmt.Sprintf("bitset: Get(%d) out of range [0,%d)", k, bm.size))
	}
	target := int64(k)

	runIdx := 0
	bm.buckets.Descend(target, func(bitsBefore int64, idx int) bool {
		runIdx = idx
		return false
	})

	word := bm.wordBeforeRun[runIdx]
	remaining := target - bm.bitsBeforeRun[runIdx]
	for i := runIdx; i < len(bm.runs); i++ {
		r := bm.runs[i]
		word += int64(r.zeroWords)
		if !r.hasLiteral {
			continue
		}
		count := int64(popcount(r.literal))
		if remaining < count {
			return word*wordBits + int64(nthSetBit(r.literal, int(remaining)))
		}
		remaining -= count
		word++
	}
	panic("bitset: Get inconsistent bucket table")
}

// nthSetBit returns the bit position of the nth (0-based) set bit in w,
// via repeated popcount-chase: find the lowest set bit, clear it, repeat.
func nthSetBit(w uint64, n int) int {
	for i := 0; i < n; i++ {
		w &= w - 1
	}
	return bits.TrailingZeros64(w)
}

// All returns every set bit in ascending order.
func (bm *Bitmap) All() []int64 {
	out := make([]int64, 0, bm.size)
	word := int64(0)
	for _, r := range bm.runs {
		word += int64(r.zeroWords)
		if !r.hasLiteral {
			continue
		}
		w := r.literal
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			w &^= 1 << uint(tz)
			out = append(out, word*wordBits+int64(tz))
		}
		word++
	}
	return out
}

func (bm *Bitmap) words() []uint64 {
	if bm.size == 0 {
		return nil
	}
	lastWord := bm.wordBeforeRun[len(bm.runs)]
	out := make([]uint64, lastWord)
	word := int64(0)
	for _, r := range bm.runs {
		word += int64(r.zeroWords)
		if r.hasLiteral {
			out[word] = r.literal
			word++
		}
	}
	return out
}

func fromWords(words []uint64, bucketWords int) *Bitmap {
	b := NewBuilder()
	for wi, w := range words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			w &^= 1 << uint(tz)
			b.Add(int64(wi)*wordBits + int64(tz))
		}
	}
	return b.Freeze(bucketWords)
}

// Union computes the bitwise OR of bitmaps a..., each assumed built with
// the same bucketWords spacing (callers use Index's configured spacing
// throughout, so this always holds in practice).
func Union(bucketWords int, bitmaps ...*Bitmap) *Bitmap {
	return combine(bucketWords, bitmaps, func(acc, w uint64) uint64 { return acc | w })
}

// Intersection computes the bitwise AND of bitmaps.
func Intersection(bucketWords int, bitmaps ...*Bitmap) *Bitmap {
	if len(bitmaps) == 0 {
		return NewBuilder().Freeze(bucketWords)
	}
	return combine(bucketWords, bitmaps, func(acc, w uint64) uint64 { return acc & w })
}

// Difference computes a AND NOT b.
func Difference(bucketWords int, a, b *Bitmap) *Bitmap {
	aw, bw := a.words(), b.words()
	n := len(aw)
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		var bv uint64
		if i < len(bw) {
			bv = bw[i]
		}
		out[i] = aw[i] &^ bv
	}
	return fromWords(out, bucketWords)
}

func combine(bucketWords int, bitmaps []*Bitmap, op func(acc, w uint64) uint64) *Bitmap {
	if len(bitmaps) == 0 {
		return NewBuilder().Freeze(bucketWords)
	}
	maxLen := 0
	wordSlices := make([][]uint64, len(bitmaps))
	for i, bm := range bitmaps {
		wordSlices[i] = bm.words()
		if len(wordSlices[i]) > maxLen {
			maxLen = len(wordSlices[i])
		}
	}
	out := make([]uint64, maxLen)
	copy(out, wordSlices[0])
	for i := 1; i < len(wordSlices); i++ {
		ws := wordSlices[i]
		for j := 0; j < maxLen; j++ {
			var v uint64
			if j < len(ws) {
				v = ws[j]
			}
			out[j] = op(out[j], v)
		}
	}
	return fromWords(out, bucketWords)
}
