package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/logscope/logscope/internal/config"
	"github.com/logscope/logscope/internal/coreerr"
	"github.com/logscope/logscope/internal/lineparser"
	"github.com/logscope/logscope/internal/logfile"
)

var progressWriter = os.Stderr
var progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

// session bundles a LogFile with the channel its state-change callback
// feeds, so a CLI command can await each terminal transition in turn
// (first Open's Indexing->Complete, then a later Search's
// Searching->Complete) without re-registering a callback.
type session struct {
	lf   *logfile.LogFile
	done chan logfile.State
}

// awaitTerminal blocks for the next Complete/Failed/Interrupted
// transition and turns Failed/Interrupted into an error.
func (s *session) awaitTerminal() error {
	final := <-s.done
	if final == logfile.Complete {
		return nil
	}
	if final == logfile.Interrupted {
		return fmt.Errorf("logseer-core: %w", coreerr.ErrCancelled)
	}
	if err := s.lf.Err(); err != nil {
		return err
	}
	return fmt.Errorf("logseer-core: reached state %s, not Complete", final)
}

// openAndIndex runs the Idle->Indexing->Complete pipeline synchronously
// for CLI use: it blocks until the LogFile reaches a terminal state
// and returns an error unless that state is Complete.
func openAndIndex(path, parserName string, quiet bool) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	setLevel(cfg.LogLevel)

	repo, err := lineparser.NewRepository(cfg.ParserConfigDir, logger)
	if err != nil {
		return nil, fmt.Errorf("loading parser config dir %s: %w", cfg.ParserConfigDir, err)
	}

	done := make(chan logfile.State, 1)
	lf := logfile.New(cfg, repo, logger, func(s logfile.State) {
		switch s {
		case logfile.Complete, logfile.Failed, logfile.Interrupted:
			select {
			case done <- s:
			default:
			}
		}
	}, func(p int) {
		if !quiet {
			fmt.Fprintf(progressWriter, "\r%s %d%%", progressStyle.Render("indexing"), p)
		}
	})

	if err := lf.Open(path, parserName); err != nil {
		return nil, err
	}
	sess := &session{lf: lf, done: done}
	if err := sess.awaitTerminal(); err != nil {
		return nil, err
	}
	if !quiet {
		fmt.Fprintln(progressWriter)
	}
	return sess, nil
}
