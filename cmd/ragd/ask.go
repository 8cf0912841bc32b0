package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/rag"
)

func newAskCmd(configPath *string) *cobra.Command {
	var (
		topK          int
		searchType    string
		minScore      float64
		contextLength int
		temperature   float64
		maxTokens     int
	)

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts := rag.QueryOptions{}
			if cmd.Flags().Changed("top-k") {
				opts.TopK = &topK
			}
			if cmd.Flags().Changed("search-type") {
				opts.SearchType = &searchType
			}
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = &minScore
			}
			if cmd.Flags().Changed("context-length") {
				opts.ContextLength = &contextLength
			}
			if cmd.Flags().Changed("temperature") {
				opts.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				opts.MaxTokens = &maxTokens
			}

			res, err := a.service.Ask(ctx, args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			fmt.Fprintf(out, "\nConfidence: %.2f (%d results, %s search, %s)\n",
				res.Confidence, res.SearchResultsCount, res.SearchType,
				res.ProcessingTime.Round(timePrecision))
			if len(res.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range res.Sources {
					fmt.Fprintf(out, "  - %s (page %d, score %.3f)\n",
						src.Filename, src.PageNumber, src.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum number of results (1-20)")
	cmd.Flags().StringVar(&searchType, "search-type", "", "semantic, keyword, or hybrid")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum similarity score (0-1)")
	cmd.Flags().IntVar(&contextLength, "context-length", 0, "context budget in characters (500-8000)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature (0-2)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "completion token limit (100-1000)")
	return cmd
}
