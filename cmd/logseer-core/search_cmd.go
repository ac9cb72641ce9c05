package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/logscope/logscope/internal/logfile"
)

func newSearchCmd() *cobra.Command {
	var parserName string
	var regex, caseSensitive, unicodeAware, messageOnly, showHist bool
	var limit int

	cmd := &cobra.Command{
		Use:   "search <path> <pattern>",
		Short: "Index a log file and search it for a literal or regex pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openAndIndex(args[0], parserName, false)
			if err != nil {
				return err
			}
			defer sess.lf.Close()

			if err := sess.lf.Search(logfile.SearchRequest{
				Text:          args[1],
				Regex:         regex,
				CaseSensitive: caseSensitive,
				UnicodeAware:  unicodeAware,
				MessageOnly:   messageOnly,
			}); err != nil {
				return err
			}
			if err := sess.awaitTerminal(); err != nil {
				return err
			}

			idx := sess.lf.Index()
			fp := sess.lf.FileParser()
			lm := idx.LineMap()
			fmt.Println(headerStyle.Render(fmt.Sprintf("%d matches", lm.Size())))

			if showHist {
				if h := sess.lf.LastSearchHist(); h != nil {
					counts := make([]int64, h.Resolution())
					for i := range counts {
						counts[i] = h.Bucket(i)
					}
					fmt.Print(renderHistogram(counts, 40))
				}
			}

			n := lm.Size()
			if limit > 0 && limit < n {
				n = limit
			}
			for i := 0; i < n; i++ {
				line := lm.Get(i)
				text, err := fp.ReadLine(line)
				if err != nil {
					continue
				}
				fmt.Printf("%8d  %s\n", line+1, text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&parserName, "parser", "", "force a specific registered parser by name")
	cmd.Flags().BoolVar(&regex, "regex", false, "interpret the pattern as a regular expression")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "case-sensitive match")
	cmd.Flags().BoolVar(&unicodeAware, "unicode", false, "enable Unicode-aware matching")
	cmd.Flags().BoolVar(&messageOnly, "message-only", false, "match only the last column instead of the whole line")
	cmd.Flags().BoolVar(&showHist, "hist", false, "print a match-position histogram before the matching lines")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of matches to print (0 = all)")
	return cmd
}

// renderHistogram draws a compact bar-chart of hist buckets using
// lipgloss, used by --hist.
func renderHistogram(counts []int64, width int) string {
	max := int64(1)
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	var b strings.Builder
	for _, c := range counts {
		filled := int(c * int64(width) / max)
		b.WriteString(bar.Render(strings.Repeat("#", filled)))
		b.WriteString(strings.Repeat(" ", width-filled))
		b.WriteString("\n")
	}
	return b.String()
}
