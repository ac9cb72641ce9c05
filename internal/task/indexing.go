package task

import (
	"github.com/logscope/logscope/internal/fileparser"
	"github.com/logscope/logscope/internal/hist"
	"github.com/logscope/logscope/internal/index"
	"github.com/logscope/logscope/internal/lineparser"
)

// NewIndexingTask wraps Index.Build as a Task body.
func NewIndexingTask(idx *index.Index, fp *fileparser.FileParser, lp lineparser.LineParser, maxWorkers int, h *hist.Hist, onState func(State), onProgress func(int)) *Task {
	body := func(ctl *Control) error {
		ok, err := idx.Build(fp, lp, maxWorkers, ctl.StopRequested, func(done, total int64) {
			if total > 0 {
				ctl.Progress(int(done * 100 / total))
			}
		}, h)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		ctl.Progress(100)
		return nil
	}
	return New(body, onState, onProgress)
}
