package index

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/logscope/logscope/internal/bitset"
	"github.com/logscope/logscope/internal/fileparser"
	"github.com/logscope/logscope/internal/hist"
	"github.com/logscope/logscope/internal/lineparser"
	"github.com/rivo/uniseg"
)

// lineJob is the unit of work sent over the bounded producer/consumer
// channel.
type lineJob struct {
	line int64
}

type workerResult struct {
	values  []map[string][]int64 // per column position, value -> unsorted line numbers
	fails   []int64
	maxProb []widthProbe
}

// Build runs the parallel indexing pass over every line
// of fp, using lp to parse each line. maxWorkers <= 0 defaults to
// runtime.NumCPU(). Returns false (with nil error) iff stopRequested
// fired before completion; an indexing pass that stops early discards
// its partial results, leaving the Index unmodified. A line that cannot
// be read ends the pass the same way but returns the read error. h, if non-nil,
// receives one Add per successfully parsed line (used by callers that
// want an indexing-progress histogram).
func (idx *Index) Build(fp *fileparser.FileParser, lp lineparser.LineParser, maxWorkers int, stopRequested func() bool, progress func(done, total int64), h *hist.Hist) (bool, error) {
	total := fp.LineCount()
	hasIndexed := false
	for _, c := range idx.columns {
		if c.Indexed {
			hasIndexed = true
			break
		}
	}

	if !hasIndexed {
		idx.lineCount = total
		return true, nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	jobs := make(chan lineJob, 256*maxWorkers)
	results := make([]workerResult, maxWorkers)
	for w := range results {
		results[w] = workerResult{
			values:  make([]map[string][]int64, len(idx.columns)),
			maxProb: make([]widthProbe, len(idx.columns)),
		}
		for c := range idx.columns {
			results[w].values[c] = make(map[string][]int64)
		}
	}

	var g errgroup.Group
	stopped := false

	for w := 0; w < maxWorkers; w++ {
		w := w
		g.Go(func() error {
			ctx := lp.NewContext()
			scratch := make([]string, len(idx.columns))
			res := &results[w]
			var readErr error
			for job := range jobs {
				line, err := fp.ReadLine(job.line)
				if err != nil {
					// Keep draining so the producer never blocks.
					if readErr == nil {
						readErr = err
					}
					continue
				}
				if lp.ParseLine(line, scratch, ctx) {
					recordColumns(idx.columns, scratch, job.line, res)
				} else {
					res.fails = append(res.fails, job.line)
				}
			}
			return readErr
		})
	}

	for i := int64(0); i < total; i++ {
		if stopRequested != nil && stopRequested() {
			stopped = true
			break
		}
		jobs <- lineJob{line: i}
		if progress != nil && i%1024 == 0 {
			progress(i, total)
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil {
		return false, err
	}

	if stopped {
		return false, nil
	}
	if progress != nil {
		progress(total, total)
	}

	idx.reduce(results, total, h)
	return true, nil
}

func recordColumns(columns []lineparser.ColumnFormat, scratch []string, line int64, res *workerResult) {
	for i, c := range columns {
		if !c.Indexed && !c.Autosize {
			continue
		}
		v := scratch[i]
		if c.Indexed {
			res.values[i][v] = append(res.values[i][v], line)
		}
		if c.Autosize {
			w := uniseg.GraphemeClusterCount(v)
			if w > res.maxProb[i].width {
				res.maxProb[i] = widthProbe{width: w, line: line}
			}
		}
	}
}

// reduce is the reduction + multi-line consolidation step: union
// per-worker failures into `multilines`, union
// per-worker value line-lists into the shared per-column index, extend
// each value's bitmap through any immediately-following multiline run,
// and fold the per-worker width probes into the column max-width
// table, keeping the widest value seen over the whole file.
func (idx *Index) reduce(results []workerResult, total int64, h *hist.Hist) {
	var allFails []int64
	var allSuccess []int64
	for _, r := range results {
		allFails = append(allFails, r.fails...)
		// Every parsed line records a value in every indexed column, so
		// the first non-empty column map lists each success exactly once.
		for _, vm := range r.values {
			if len(vm) == 0 {
				continue
			}
			for _, lines := range vm {
				allSuccess = append(allSuccess, lines...)
			}
			break
		}
	}
	sort.Slice(allFails, func(i, j int) bool { return allFails[i] < allFails[j] })
	sort.Slice(allSuccess, func(i, j int) bool { return allSuccess[i] < allSuccess[j] })

	multilineSet := make(map[int64]bool, len(allFails))
	for _, f := range allFails {
		multilineSet[f] = true
	}

	var firstSuccess int64 = -1
	if len(allSuccess) > 0 {
		firstSuccess = allSuccess[0]
	}
	var leading []int64
	for _, f := range allFails {
		if firstSuccess < 0 || f < firstSuccess {
			leading = append(leading, f)
		}
	}

	for colPos, c := range idx.columns {
		if !c.Indexed {
			continue
		}
		merged := make(map[string][]int64)
		for _, r := range results {
			for v, lines := range r.values[colPos] {
				merged[v] = append(merged[v], lines...)
			}
		}
		valueMap := make(map[string]*bitset.Bitmap, len(merged)+1)
		for v, lines := range merged {
			sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
			extended := extendThroughMultilines(lines, multilineSet)
			b := bitset.NewBuilder()
			for _, n := range extended {
				b.Add(n)
			}
			valueMap[v] = b.Freeze(idx.bucketWords)
		}
		if len(leading) > 0 {
			b := bitset.NewBuilder()
			for _, n := range leading {
				b.Add(n)
			}
			if existing, ok := valueMap[""]; ok {
				merged := bitset.Union(idx.bucketWords, existing, b.Freeze(idx.bucketWords))
				valueMap[""] = merged
			} else {
				valueMap[""] = b.Freeze(idx.bucketWords)
			}
		}
		idx.values[colPos] = valueMap
	}

	for colPos, c := range idx.columns {
		if !c.Autosize {
			continue
		}
		best := idx.maxWidth[c.Name]
		for _, r := range results {
			if p := r.maxProb[colPos]; p.width > best.width {
				best = p
			}
		}
		if best.width > 0 {
			idx.maxWidth[c.Name] = best
		}
	}

	mb := bitset.NewBuilder()
	for _, f := range allFails {
		mb.Add(f)
	}
	idx.multilines = mb.Freeze(idx.bucketWords)
	idx.lineCount = total
	idx.unionCache = make(map[string]colUnion) // cached unions refer to the replaced bitmaps

	if h != nil {
		for _, n := range allSuccess {
			h.Add(n, total)
		}
		h.Freeze()
	}
}

// extendThroughMultilines walks value's sorted line numbers in
// ascending order and, for each, also includes every consecutive
// following line present in multilineSet, stopping at the first gap.
func extendThroughMultilines(lines []int64, multilineSet map[int64]bool) []int64 {
	out := make([]int64, 0, len(lines))
	for _, v := range lines {
		out = append(out, v)
		next := v + 1
		for multilineSet[next] {
			out = append(out, next)
			next++
		}
	}
	return out
}
