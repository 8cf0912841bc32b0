package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/rag"
)

func newIngestCmd(configPath *string) *cobra.Command {
	var (
		tags  []string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Chunk, embed, and index extracted document text",
		Long: `Ingest reads extracted document text from FILE arguments and indexes it.
Page boundaries are recognized via "--- Page N ---" marker lines.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := a.service.Ingest(ctx, chunker.Document{
					Filename: filepath.Base(path),
					Text:     string(data),
				}, rag.IngestOptions{
					ForceReprocess: force,
					Tags:           tags,
				})
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks in %s\n",
					res.Filename, res.ChunkCount, res.ProcessingTime.Round(timePrecision))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "tags to attach to every chunk")
	cmd.Flags().BoolVar(&force, "force", false, "delete existing chunks for the document before indexing")
	return cmd
}
