package index

import (
	"github.com/logscope/logscope/internal/fileparser"
	"github.com/logscope/logscope/internal/hist"
	"github.com/logscope/logscope/internal/lineparser"
	"github.com/logscope/logscope/internal/searcher"
)

// SearchOptions configures Index.Search.
type SearchOptions struct {
	Pattern      string
	Regex        bool
	Caseless     bool
	Unicode      bool
	MessageOnly  string // column name to restrict matching to; empty means whole line
	HistBuckets  int    // 0 disables histogram collection
	OverUnfilter bool   // search the full unfiltered line range instead of the current view
}

// SearchResult is the outcome of Index.Search: matching file-line
// numbers in ascending order, plus an optional match-position
// histogram over the searched domain.
type SearchResult struct {
	Lines []int64
	Hist  *hist.Hist
}

// Search scans either the current filtered view or the full unfiltered
// line range for Pattern, using fp/lp to materialize
// and re-parse each candidate line. stopRequested is checked between
// lines; a stopped search returns its partial (possibly empty) result
// and ok=false.
func (idx *Index) Search(fp *fileparser.FileParser, lp lineparser.LineParser, opts SearchOptions, stopRequested func() bool, progress func(done, total int64)) (SearchResult, bool, error) {
	s, err := buildSearcher(opts)
	if err != nil {
		return SearchResult{}, false, err
	}

	var domain []int64
	if opts.OverUnfilter {
		total := idx.UnfilteredLineCount()
		domain = make([]int64, total)
		for i := range domain {
			domain[i] = int64(i)
		}
	} else {
		lm := idx.LineMap()
		domain = make([]int64, lm.Size())
		for i := range domain {
			domain[i] = lm.Get(i)
		}
	}

	var h *hist.Hist
	if opts.HistBuckets > 0 {
		h = hist.New(opts.HistBuckets)
	}

	columns := lp.ColumnFormats()
	msgPos := -1
	if opts.MessageOnly != "" {
		for i, c := range columns {
			if c.Name == opts.MessageOnly {
				msgPos = i
				break
			}
		}
	}

	var ctx *lineparser.ParserContext
	var scratch []string
	if msgPos >= 0 {
		ctx = lp.NewContext()
		scratch = make([]string, len(columns))
	}

	var matches []int64
	total := int64(len(domain))
	for i, line := range domain {
		if stopRequested != nil && stopRequested() {
			return SearchResult{Lines: matches, Hist: h}, false, nil
		}
		if progress != nil && int64(i)%1024 == 0 {
			progress(int64(i), total)
		}

		text, err := fp.ReadLine(line)
		if err != nil {
			return SearchResult{}, false, err
		}
		if msgPos >= 0 {
			if lp.ParseLine(text, scratch, ctx) {
				text = scratch[msgPos]
			}
		}

		if _, _, ok := s.Search(text); ok {
			matches = append(matches, line)
			if h != nil {
				h.Add(line, idx.UnfilteredLineCount())
			}
		}
	}
	if h != nil {
		h.Freeze()
	}
	if progress != nil {
		progress(total, total)
	}
	return SearchResult{Lines: matches, Hist: h}, true, nil
}

func buildSearcher(opts SearchOptions) (searcher.Searcher, error) {
	so := searcher.Options{Caseless: opts.Caseless, Unicode: opts.Unicode}
	if opts.Regex {
		return searcher.NewRegex(opts.Pattern, so)
	}
	return searcher.NewLiteral(opts.Pattern, so), nil
}
