package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFilterCmd() *cobra.Command {
	var parserName string
	var columnFilters []string // "Column=v1,v2"
	var limit int

	cmd := &cobra.Command{
		Use:   "filter <path>",
		Short: "Index a log file and print the lines selected by one or more column filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openAndIndex(args[0], parserName, false)
			if err != nil {
				return err
			}
			defer sess.lf.Close()

			idx := sess.lf.Index()
			for _, spec := range columnFilters {
				col, valuesCSV, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("invalid --filter %q, want Column=v1,v2", spec)
				}
				if err := idx.SetColumnFilter(col, strings.Split(valuesCSV, ",")); err != nil {
					return err
				}
			}

			fp := sess.lf.FileParser()
			lm := idx.LineMap()
			fmt.Println(headerStyle.Render(fmt.Sprintf("%d of %d lines selected", lm.Size(), idx.UnfilteredLineCount())))
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
	cmd.Flags().StringArrayVar(&columnFilters, "filter", nil, "Column=value1,value2 (repeatable, intersected)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of lines to print (0 = all)")
	return cmd
}
