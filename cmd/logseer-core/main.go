// Command logseer-core is a thin CLI front end that drives the
// indexing/filtering/searching core end to end against a real file:
// parse, index, filter, search, print. It stands in for a desktop
// UI, exercising the same core interfaces such a UI would call.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rs/zerolog"
)

var (
	cfgPath string
	logger  zerolog.Logger
)

func main() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:   "logseer-core",
		Short: "Index, filter and search log files from the command line",
		Long: `logseer-core drives the logseer indexing/filtering/searching core
against a real log file: parse, index, optionally filter, optionally
search, and print the resulting rows.`,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a SessionConfig TOML file")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newFilterCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
