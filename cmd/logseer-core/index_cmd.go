package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logscope/logscope/internal/logfile"
)

func newIndexCmd() *cobra.Command {
	var parserName string
	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Parse and index a log file, printing a column summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openAndIndex(args[0], parserName, false)
			if err != nil {
				return err
			}
			defer sess.lf.Close()

			idx := sess.lf.Index()
			fmt.Println(headerStyle.Render(fmt.Sprintf("indexed %d lines (encoding %s)",
				idx.UnfilteredLineCount(), sess.lf.FileParser().Encoding())))
			return printColumnSummary(sess.lf)
		},
	}
	cmd.Flags().StringVar(&parserName, "parser", "", "force a specific registered parser by name")
	return cmd
}

// printColumnSummary renders the GetValues/MaxWidth probes as CLI
// output: for every column, its name, whether it is indexed, the
// autosize max-width probe if any, and (for indexed columns) its
// distinct value count.
func printColumnSummary(lf *logfile.LogFile) error {
	lp := lf.LineParser()
	idx := lf.Index()
	for _, col := range lp.ColumnFormats() {
		line := fmt.Sprintf("  %-16s indexed=%-5v autosize=%-5v", col.Name, col.Indexed, col.Autosize)
		if w, ln, ok := idx.MaxWidth(col.Name); ok {
			line += fmt.Sprintf("  maxwidth=%d@line%d", w, ln)
		}
		if col.Indexed {
			values, err := idx.GetValues(col.Name)
			if err != nil {
				return err
			}
			line += fmt.Sprintf("  distinct=%d", len(values))
		}
		fmt.Println(line)
	}
	return nil
}
