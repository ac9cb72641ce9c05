// Package logfile implements the state machine that orchestrates
// FileParser/Index/Task across a user session (open -> index ->
// complete -> search -> reload ...): an explicit tagged state plus a
// switch over events, with the transition logic spread across the
// event methods below.
package logfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/logscope/logscope/internal/config"
	"github.com/logscope/logscope/internal/fileparser"
	"github.com/logscope/logscope/internal/hist"
	"github.com/logscope/logscope/internal/index"
	"github.com/logscope/logscope/internal/lineparser"
	"github.com/logscope/logscope/internal/task"
)

// State is one of the six states a LogFile can occupy.
type State int

const (
	Idle State = iota
	Indexing
	Complete
	Searching
	Failed
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Indexing:
		return "Indexing"
	case Complete:
		return "Complete"
	case Searching:
		return "Searching"
	case Failed:
		return "Failed"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// SearchRequest carries the parameters of one search event.
type SearchRequest struct {
	Text          string
	Regex         bool
	CaseSensitive bool
	UnicodeAware  bool
	MessageOnly   bool
}

// reloadRequest is a reload event queued while Interrupted.
type reloadRequest struct {
	path       string
	parserName string
}

// LogFile orchestrates one open log file's parse/index/filter/search
// lifecycle. All exported methods are safe for concurrent use; state
// transitions are serialized by mu, but task bodies themselves run on
// their own worker goroutines.
type LogFile struct {
	cfg  config.SessionConfig
	repo *lineparser.Repository
	log  zerolog.Logger

	onState    func(State)
	onProgress func(int)

	mu            sync.Mutex
	state         State
	path          string
	fp            *fileparser.FileParser
	lp            lineparser.LineParser
	idx           *index.Index
	lastSearchHist *hist.Hist
	task          *task.Task
	pendingSearch *SearchRequest
	pendingReload *reloadRequest
	lastErr       error
}

// New returns an Idle LogFile. repo resolves a LineParser for newly
// opened files; onStateChanged/onProgress, if non-nil, are invoked on
// a task's worker goroutine, exactly as Task documents for its own
// callbacks.
func New(cfg config.SessionConfig, repo *lineparser.Repository, log zerolog.Logger, onStateChanged func(State), onProgress func(int)) *LogFile {
	return &LogFile{
		cfg:        cfg,
		repo:       repo,
		log:        log.With().Str("component", "logfile.LogFile").Logger(),
		onState:    onStateChanged,
		onProgress: onProgress,
		state:      Idle,
	}
}

// State returns the current state.
func (l *LogFile) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error that moved the LogFile to Failed, if any.
func (l *LogFile) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Index returns the current Index snapshot. Valid once State() is
// Complete or Searching.
func (l *LogFile) Index() *index.Index {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idx
}

// FileParser returns the underlying FileParser, valid once indexing
// has started.
func (l *LogFile) FileParser() *fileparser.FileParser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fp
}

// LineParser returns the parser resolved (or forced) for the current
// open file, valid once indexing has started.
func (l *LogFile) LineParser() lineparser.LineParser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lp
}

func (l *LogFile) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.onState != nil {
		l.onState(s)
	}
}

// Open implements the Idle --Index--> Indexing transition:
// opens path, resolves a parser (parserName empty picks automatically),
// and runs parsing then indexing as a two-stage background pipeline.
// Interrupt cancels either stage; Open is a no-op error if not Idle or
// Interrupted.
func (l *LogFile) Open(path, parserName string) error {
	l.mu.Lock()
	if l.state != Idle && l.state != Interrupted {
		l.mu.Unlock()
		return fmt.Errorf("logfile: Open invalid from state %s", l.state)
	}
	l.mu.Unlock()
	return l.startIndexing(path, parserName)
}

func (l *LogFile) startIndexing(path, parserName string) error {
	fp, err := fileparser.Open(path)
	if err != nil {
		l.fail(err)
		return err
	}

	l.mu.Lock()
	l.path = path
	l.fp = fp
	l.mu.Unlock()
	l.setState(Indexing)

	info, statErr := os.Stat(path)
	var cachePath string
	var size, mtime int64
	if statErr == nil && l.cfg.OffsetCache {
		cachePath = path + ".logseer-offsets"
		size = info.Size()
		mtime = info.ModTime().UnixNano()
	}

	parseTask := task.NewParsingTaskWithCache(fp, cachePath, size, mtime, l.cfg.OffsetCache, func(s task.State) {
		switch s {
		case task.Failed:
			l.fail(fmt.Errorf("logfile: parsing failed"))
		case task.Stopped:
			l.setState(Interrupted)
		case task.Finished:
			l.afterParse(parserName)
		}
	}, l.onProgress)

	l.mu.Lock()
	l.task = parseTask
	l.mu.Unlock()
	parseTask.Start()
	return nil
}

// afterParse resolves the line parser and starts the IndexingTask
// (still under the Indexing state). The Index being replaced
// is carried through to enterComplete so any filters it had active can
// be adapted to the new column layout rather than silently dropped.
func (l *LogFile) afterParse(parserName string) {
	l.mu.Lock()
	fp := l.fp
	prevIdx := l.idx
	l.mu.Unlock()

	sample := lineparser.Sample(fp, 10)
	var lp lineparser.LineParser
	if parserName != "" {
		lp = l.repo.ResolveByName(parserName)
	} else {
		lp = l.repo.Resolve(sample, l.path)
	}

	idx := index.New(lp.ColumnFormats())
	l.mu.Lock()
	l.lp = lp
	l.idx = idx
	l.mu.Unlock()

	h := hist.New(l.cfg.HistBuckets)
	idxTask := task.NewIndexingTask(idx, fp, lp, l.cfg.MaxIndexWorkers, h, func(s task.State) {
		switch s {
		case task.Failed:
			l.fail(fmt.Errorf("logfile: indexing failed"))
		case task.Stopped:
			l.setState(Interrupted)
		case task.Finished:
			l.enterComplete(prevIdx, idx)
		}
	}, l.onProgress)

	l.mu.Lock()
	l.task = idxTask
	l.mu.Unlock()
	idxTask.Start()
}

// enterComplete runs on the first Complete after indexing: adapt any
// per-column filters prev had active
// to the new Index's value set (intersection) and re-apply them, so a
// filter set before a Reload survives it instead of being dropped.
// prev is nil on the very first Open, in which case there is nothing
// to carry over.
func (l *LogFile) enterComplete(prev, cur *index.Index) {
	if prev != nil {
		reapplyFilters(prev, cur)
	}
	l.setState(Complete)
}

// reapplyFilters intersects each column filter active on prev against
// cur's actual value set and re-applies the result via
// SetColumnFilter. A column no longer indexed in cur is dropped
// entirely; a value no longer present in cur's set is dropped from
// that column's selection.
func reapplyFilters(prev, cur *index.Index) {
	for column, values := range prev.ActiveFilters() {
		avail, err := cur.GetValues(column)
		if err != nil {
			continue
		}
		present := make(map[string]bool, len(avail))
		for _, v := range avail {
			present[v.Value] = true
		}
		kept := make([]string, 0, len(values))
		for _, v := range values {
			if present[v] {
				kept = append(kept, v)
			}
		}
		_ = cur.SetColumnFilter(column, kept)
	}
}

func (l *LogFile) fail(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	l.log.Error().Err(err).Msg("logfile transitioned to Failed")
	l.setState(Failed)
}

// Interrupt implements the Indexing/Searching --Interrupt--> Interrupted
// and Complete/Failed --Interrupt--> Interrupted transitions.
func (l *LogFile) Interrupt() {
	l.mu.Lock()
	st := l.state
	t := l.task
	l.mu.Unlock()

	switch st {
	case Indexing, Searching:
		if t != nil {
			t.Stop() // worker reports Stopped, which setState(Interrupted)s above
		}
	case Complete, Failed:
		l.setState(Interrupted)
	}
}

// Search implements the Complete --Search--> Searching transition, and
// the Searching --Search--> Searching "stop current, queue next"
// transition.
func (l *LogFile) Search(req SearchRequest) error {
	l.mu.Lock()
	st := l.state
	l.mu.Unlock()

	switch st {
	case Complete:
		return l.startSearch(req)
	case Searching:
		l.mu.Lock()
		l.pendingSearch = &req
		t := l.task
		l.mu.Unlock()
		if t != nil {
			t.Stop()
		}
		return nil
	default:
		return fmt.Errorf("logfile: Search invalid from state %s", st)
	}
}

func (l *LogFile) startSearch(req SearchRequest) error {
	l.mu.Lock()
	fp := l.fp
	lp := l.lp
	snapshot := l.idx.Clone()
	l.mu.Unlock()

	opts := index.SearchOptions{
		Pattern:     req.Text,
		Regex:       req.Regex,
		Caseless:    !req.CaseSensitive,
		Unicode:     req.UnicodeAware,
		HistBuckets: l.cfg.HistBuckets,
	}
	if req.MessageOnly {
		cols := lp.ColumnFormats()
		if len(cols) > 0 {
			opts.MessageOnly = cols[len(cols)-1].Name
		}
	}

	l.setState(Searching)
	var outcome *task.SearchOutcome
	var t *task.Task
	t, outcome = task.NewSearchingTask(snapshot, fp, lp, opts, func(s task.State) {
		switch s {
		case task.Failed:
			l.fail(fmt.Errorf("logfile: search failed"))
		case task.Stopped:
			l.afterSearchStopped()
		case task.Finished:
			l.afterSearchFinished(outcome)
		}
	}, l.onProgress)

	l.mu.Lock()
	l.task = t
	l.mu.Unlock()
	t.Start()
	return nil
}

// afterSearchStopped implements "task.Stop; queue new search on
// Stopped": if a new SearchRequest arrived while this one was
// being cancelled, start it now; a stop with no search queued came
// from Interrupt and moves to Interrupted. Either way the pre-search
// view stays untouched (a stopped search never partially updates the
// visible LineMap).
func (l *LogFile) afterSearchStopped() {
	l.mu.Lock()
	pending := l.pendingSearch
	l.pendingSearch = nil
	l.mu.Unlock()

	if pending != nil {
		if err := l.startSearch(*pending); err == nil {
			return
		}
		l.setState(Complete)
		return
	}
	l.setState(Interrupted)
}

func (l *LogFile) afterSearchFinished(outcome *task.SearchOutcome) {
	l.mu.Lock()
	idx := l.idx
	l.lastSearchHist = outcome.Result.Hist
	l.mu.Unlock()
	idx.ApplySearchResult(outcome.Result.Lines)
	l.setState(Complete)
}

// LastSearchHist returns the match-position histogram collected by the
// most recently finished search, or nil if no search has completed.
func (l *LogFile) LastSearchHist() *hist.Hist {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSearchHist
}

// Reload implements the Interrupted --Index--> Indexing transition:
// it re-opens path (the current path when empty) with parserName
// (automatic resolution when empty). A reload queued with QueueReload
// is applied by ApplyQueuedReload, which calls Reload.
func (l *LogFile) Reload(path, parserName string) error {
	l.mu.Lock()
	if l.state != Interrupted {
		l.mu.Unlock()
		return fmt.Errorf("logfile: Reload invalid from state %s", l.state)
	}
	if path == "" {
		path = l.path
	}
	l.mu.Unlock()
	return l.startIndexing(path, parserName)
}

// QueueReload stashes a ReloadEvent for later application once the
// LogFile reaches Interrupted, e.g. from an Indexing/Searching
// Interrupt() call still in flight.
func (l *LogFile) QueueReload(path, parserName string) {
	l.mu.Lock()
	l.pendingReload = &reloadRequest{path: path, parserName: parserName}
	l.mu.Unlock()
}

// ApplyQueuedReload consumes and applies a reload queued via
// QueueReload; a no-op if none is pending.
func (l *LogFile) ApplyQueuedReload() error {
	l.mu.Lock()
	r := l.pendingReload
	l.pendingReload = nil
	l.mu.Unlock()
	if r == nil {
		return nil
	}
	return l.Reload(r.path, r.parserName)
}

// Close releases the underlying FileParser, if any.
func (l *LogFile) Close() error {
	l.mu.Lock()
	fp := l.fp
	l.mu.Unlock()
	if fp == nil {
		return nil
	}
	return fp.Close()
}
