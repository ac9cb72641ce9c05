package task

import (
	"github.com/logscope/logscope/internal/fileparser"
	"github.com/logscope/logscope/internal/index"
	"github.com/logscope/logscope/internal/lineparser"
)

// SearchOutcome is the box a SearchingTask writes its result into once
// it finishes. The caller only reads it after the task reaches
// Finished; a Stopped/Failed task leaves it unset, so a stopped search
// never partially updates the visible LineMap.
type SearchOutcome struct {
	Result index.SearchResult
}

// NewSearchingTask wraps Index.Search as a Task body. snapshot must be
// a Clone of the Index taken before the search starts, so concurrent
// filter changes on the live Index never corrupt an in-flight search.
func NewSearchingTask(snapshot *index.Index, fp *fileparser.FileParser, lp lineparser.LineParser, opts index.SearchOptions, onState func(State), onProgress func(int)) (*Task, *SearchOutcome) {
	out := &SearchOutcome{}
	body := func(ctl *Control) error {
		res, ok, err := snapshot.Search(fp, lp, opts, ctl.StopRequested, func(done, total int64) {
			if total > 0 {
				ctl.Progress(int(done * 100 / total))
			}
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil // stopped: leave out.Result zero
		}
		out.Result = res
		ctl.Progress(100)
		return nil
	}
	return New(body, onState, onProgress), out
}
