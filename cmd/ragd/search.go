package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/rag"
)

const timePrecision = time.Millisecond

func newSearchCmd(configPath *string) *cobra.Command {
	var (
		topK       int
		searchType string
		minScore   float64
		filename   string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the index without generating an answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts := rag.QueryOptions{Filename: filename}
			if cmd.Flags().Changed("top-k") {
				opts.TopK = &topK
			}
			if cmd.Flags().Changed("search-type") {
				opts.SearchType = &searchType
			}
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = &minScore
			}

			res, err := a.service.SearchOnly(ctx, args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d results (%s search, %s)\n",
				res.TotalResults, res.SearchType, res.SearchTime.Round(timePrecision))
			for i, r := range res.Results {
				fmt.Fprintf(out, "\n%d. %s (page %d, score %.3f)\n",
					i+1, r.Chunk.Filename, r.Chunk.PageNumber, r.Score)
				fmt.Fprintln(out, indent(preview(r.Chunk.Content, 300)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum number of results (1-20)")
	cmd.Flags().StringVar(&searchType, "search-type", "", "semantic, keyword, or hybrid")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum similarity score (0-1)")
	cmd.Flags().StringVar(&filename, "filename", "", "restrict results to one document")
	return cmd
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func indent(s string) string {
	return "   " + strings.ReplaceAll(s, "\n", "\n   ")
}
