package task

import "github.com/logscope/logscope/internal/fileparser"

// NewParsingTask wraps FileParser.Index as a Task body. It
// reports progress as a 0-100 percentage of bytes scanned.
func NewParsingTask(fp *fileparser.FileParser, onState func(State), onProgress func(int)) *Task {
	body := func(ctl *Control) error {
		ok, err := fp.Index(func(done, total int64) {
			if total > 0 {
				ctl.Progress(int(done * 100 / total))
			}
		}, ctl.StopRequested)
		if err != nil {
			return err
		}
		if !ok {
			return nil // stopped; Task.run sets Stopped from ctl.StopRequested()
		}
		ctl.Progress(100)
		return nil
	}
	return New(body, onState, onProgress)
}

// NewParsingTaskWithCache wraps FileParser.IndexWithCache: a
// cache hit skips the scan entirely; a miss scans normally and, if
// save is true, writes a fresh sidecar for the next open. cachePath
// empty disables the cache for this run.
func NewParsingTaskWithCache(fp *fileparser.FileParser, cachePath string, sourceSize, sourceMTime int64, save bool, onState func(State), onProgress func(int)) *Task {
	if cachePath == "" {
		return NewParsingTask(fp, onState, onProgress)
	}
	body := func(ctl *Control) error {
		ok, err := fp.IndexWithCache(cachePath, sourceSize, sourceMTime, save, func(done, total int64) {
			if total > 0 {
				ctl.Progress(int(done * 100 / total))
			}
		}, ctl.StopRequested)
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
