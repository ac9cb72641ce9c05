// Package index implements the central per-column value→BitSet
// structure, its parallel construction, its filter algebra, and text
// search over the filtered view.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/logscope/logscope/internal/bitset"
	"github.com/logscope/logscope/internal/lineparser"
)

// ValueCount is one row of Index.GetValues: a distinct column value,
// how many lines carry it, and whether it is selected by the column's
// active filter (always true when the column is unrestricted).
type ValueCount struct {
	Value    string
	Count    int
	Selected bool
}

type widthProbe struct {
	width int
	line  int64
}

// colUnion caches the union bitmap last computed for one column's
// selection, keyed by the sorted selected-value list, so a refined
// filter can be computed incrementally: new = (base ∪ added) −
// removed. Sound because per-value bitmaps within one column are
// disjoint (a line parses to exactly one value, and a multiline run
// extends exactly one preceding value).
type colUnion struct {
	selected []string // sorted
	union    *bitset.Bitmap
}

// Index owns one ColumnIndex (value→BitSet) per indexed column, the
// current filter view, and per-column maximum-width probes.
type Index struct {
	mu sync.RWMutex

	columns []lineparser.ColumnFormat
	colPos  map[string]int

	values     []map[string]*bitset.Bitmap // indexed by column position; nil entry for non-indexed columns
	multilines *bitset.Bitmap
	lineCount  int64

	activeFilters map[string][]string // column -> selected values; column absent means unrestricted
	filterBitmap  *bitset.Bitmap      // nil when unfiltered
	lineMap       *bitset.LineMap
	filtered      bool
	unionCache    map[string]colUnion

	maxWidth map[string]widthProbe

	bucketWords int
}

// defaultBucketWords is the bucket-table spacing used for every
// Bitmap this package builds.
const defaultBucketWords = 128

// New returns an empty Index for the given column layout. Call Build
// to populate it.
func New(columns []lineparser.ColumnFormat) *Index {
	colPos := make(map[string]int, len(columns))
	for i, c := range columns {
		colPos[c.Name] = i
	}
	return &Index{
		columns:       columns,
		colPos:        colPos,
		values:        make([]map[string]*bitset.Bitmap, len(columns)),
		activeFilters: make(map[string][]string),
		maxWidth:      make(map[string]widthProbe, len(columns)),
		unionCache:    make(map[string]colUnion),
		bucketWords:   defaultBucketWords,
	}
}

// Clone returns a snapshot of idx suitable for handing to a
// SearchingTask: the per-column value->BitSet maps are
// shared by reference (the underlying Bitmaps are immutable once
// built), but the filter/LineMap state is copied so concurrent
// Filter/ClearFilter calls on the live Index never observe or mutate
// the snapshot a running search is iterating over.
func (idx *Index) Clone() *Index {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	activeFilters := make(map[string][]string, len(idx.activeFilters))
	for k, v := range idx.activeFilters {
		cp := make([]string, len(v))
		copy(cp, v)
		activeFilters[k] = cp
	}
	unionCache := make(map[string]colUnion, len(idx.unionCache))
	for k, v := range idx.unionCache {
		unionCache[k] = v // entries are immutable once stored
	}
	return &Index{
		columns:       idx.columns,
		colPos:        idx.colPos,
		values:        idx.values, // shared: Bitmaps are immutable once built
		multilines:    idx.multilines,
		lineCount:     idx.lineCount,
		activeFilters: activeFilters,
		filterBitmap:  idx.filterBitmap,
		lineMap:       idx.lineMap,
		filtered:      idx.filtered,
		unionCache:    unionCache,
		maxWidth:      idx.maxWidth,
		bucketWords:   idx.bucketWords,
	}
}

// ApplySearchResult replaces the visible LineMap with exactly the
// lines in result, in ascending order.
// Called only once a SearchingTask has Finished; a Stopped/Failed
// search never reaches here, so the visible LineMap never partially
// updates.
func (idx *Index) ApplySearchResult(lines []int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	lm := bitset.NewLineMap(idx.bucketWords)
	for _, n := range lines {
		lm.Add(n)
	}
	lm.Freeze()
	idx.lineMap = lm
	idx.filtered = true
}

// UnfilteredLineCount returns the total number of lines indexed.
func (idx *Index) UnfilteredLineCount() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.lineCount
}

// Filtered reports whether a non-trivial filter is currently applied.
func (idx *Index) Filtered() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.filtered
}

// LineMap returns the current filtered view: the identity view when no
// filter is active, or the random-access adapter over the filter
// bitmap otherwise.
func (idx *Index) LineMap() *bitset.LineMap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.lineMap != nil {
		return idx.lineMap
	}
	return bitset.Identity(idx.lineCount, idx.bucketWords)
}

// MaxWidth returns the (grapheme width, line number) probe recorded
// for an autosize column during Build.
func (idx *Index) MaxWidth(column string) (width int, line int64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.maxWidth[column]
	return p.width, p.line, ok
}

// ActiveFilters returns a snapshot of the columns currently restricted
// by SetColumnFilter/ExcludeValue/IncludeOnlyValue and their selected
// values, keyed by column name.
func (idx *Index) ActiveFilters() map[string][]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string][]string, len(idx.activeFilters))
	for k, v := range idx.activeFilters {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// GetValues returns the distinct values of an indexed column, sorted
// lexicographically, with their line counts and current selection
// state.
func (idx *Index) GetValues(column string) ([]ValueCount, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pos, ok := idx.colPos[column]
	if !ok {
		return nil, fmt.Errorf("index: unknown column %q", column)
	}
	valueMap := idx.values[pos]
	if valueMap == nil {
		return nil, fmt.Errorf("index: column %q is not indexed", column)
	}

	selected, restricted := idx.activeFilters[column]
	selectedSet := make(map[string]bool, len(selected))
	for _, v := range selected {
		selectedSet[v] = true
	}

	out := make([]ValueCount, 0, len(valueMap))
	for value, bm := range valueMap {
		out = append(out, ValueCount{
			Value:    value,
			Count:    bm.Size(),
			Selected: !restricted || selectedSet[value],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

// SetColumnFilter restricts column to exactly the given values. An
// empty, non-nil slice restricts the column to nothing (matches no
// line). Call ClearFilter to remove the restriction entirely.
func (idx *Index) SetColumnFilter(column string, values []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.colPos[column]; !ok {
		return fmt.Errorf("index: unknown column %q", column)
	}
	cp := make([]string, len(values))
	copy(cp, values)
	idx.activeFilters[column] = cp
	return idx.applyFilterLocked()
}

// ExcludeValue removes value from column's selection, starting from
// "all selected" if the column has no active restriction yet.
func (idx *Index) ExcludeValue(column, value string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	pos, ok := idx.colPos[column]
	if !ok {
		return fmt.Errorf("index: unknown column %q", column)
	}
	sel, restricted := idx.activeFilters[column]
	if !restricted {
		for v := range idx.values[pos] {
			if v != value {
				sel = append(sel, v)
			}
		}
	} else {
		out := sel[:0]
		for _, v := range sel {
			if v != value {
				out = append(out, v)
			}
		}
		sel = out
	}
	idx.activeFilters[column] = sel
	return idx.applyFilterLocked()
}

// IncludeOnlyValue restricts column to exactly value.
func (idx *Index) IncludeOnlyValue(column, value string) error {
	return idx.SetColumnFilter(column, []string{value})
}

// ClearFilter removes any restriction on column.
func (idx *Index) ClearFilter(column string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.activeFilters, column)
	return idx.applyFilterLocked()
}

// ClearFilters removes every column restriction and drops the cached
// per-column unions, so the next filter is computed directly.
func (idx *Index) ClearFilters() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.activeFilters = make(map[string][]string)
	idx.unionCache = make(map[string]colUnion)
	return idx.applyFilterLocked()
}

// applyFilterLocked recomputes the filter bitmap as the intersection,
// over every column with an active restriction, of the union of its
// selected values' bitmaps. Filter associativity holds
// because the result depends only on the (column, selected-values)
// set, never on insertion order.
func (idx *Index) applyFilterLocked() error {
	if len(idx.activeFilters) == 0 {
		idx.filterBitmap = nil
		idx.lineMap = nil
		idx.filtered = false
		return nil
	}

	var result *bitset.Bitmap
	for column, selected := range idx.activeFilters {
		union := idx.columnUnionLocked(column, selected)
		if result == nil {
			result = union
		} else {
			result = bitset.Intersection(idx.bucketWords, result, union)
		}
	}
	if result == nil {
		result = bitset.Union(idx.bucketWords)
	}

	idx.filterBitmap = result
	idx.filtered = true
	lm := bitset.NewLineMap(idx.bucketWords)
	for _, n := range result.All() {
		lm.Add(n)
	}
	lm.Freeze()
	idx.lineMap = lm
	return nil
}

// columnUnionLocked returns the union of the selected values' bitmaps
// for one column. When the selection is a small edit of the previously
// computed one, the new union is derived as
// (base ∪ added) − removed from the cached base instead of re-merging
// every selected value; the incremental path is taken only when the
// changed-value count is below the total selected-value count.
func (idx *Index) columnUnionLocked(column string, selected []string) *bitset.Bitmap {
	valueMap := idx.values[idx.colPos[column]]
	sorted := make([]string, len(selected))
	copy(sorted, selected)
	sort.Strings(sorted)

	if cached, ok := idx.unionCache[column]; ok {
		added, removed := diffSorted(cached.selected, sorted)
		if len(added)+len(removed) < len(sorted) {
			u := cached.union
			if bms := bitmapsFor(valueMap, added); len(bms) > 0 {
				u = bitset.Union(idx.bucketWords, append([]*bitset.Bitmap{u}, bms...)...)
			}
			if bms := bitmapsFor(valueMap, removed); len(bms) > 0 {
				u = bitset.Difference(idx.bucketWords, u, bitset.Union(idx.bucketWords, bms...))
			}
			idx.unionCache[column] = colUnion{selected: sorted, union: u}
			return u
		}
	}

	u := bitset.Union(idx.bucketWords, bitmapsFor(valueMap, sorted)...)
	idx.unionCache[column] = colUnion{selected: sorted, union: u}
	return u
}

// diffSorted returns the values present only in cur (added) and only
// in prev (removed). Both inputs must be sorted.
func diffSorted(prev, cur []string) (added, removed []string) {
	i, j := 0, 0
	for i < len(prev) && j < len(cur) {
		switch {
		case prev[i] == cur[j]:
			i++
			j++
		case prev[i] < cur[j]:
			removed = append(removed, prev[i])
			i++
		default:
			added = append(added, cur[j])
			j++
		}
	}
	removed = append(removed, prev[i:]...)
	added = append(added, cur[j:]...)
	return added, removed
}

func bitmapsFor(valueMap map[string]*bitset.Bitmap, values []string) []*bitset.Bitmap {
	var out []*bitset.Bitmap
	for _, v := range values {
		if bm, ok := valueMap[v]; ok {
			out = append(out, bm)
		}
	}
	return out
}
