package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"winnow/internal/chunk"
	"winnow/internal/document"
	"winnow/internal/logging"
)

func newChunksCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Show how the documents in a directory would be chunked",
		Long: `Chunks loads a directory and splits every document with the configured
chunking bounds, without calling any model. Useful for tuning target_size
and overlap before spending inference time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			chunker, err := chunk.New(chunk.Config{
				TargetSize: cfg.Chunking.TargetSize,
				Overlap:    cfg.Chunking.Overlap,
				MinSize:    cfg.Chunking.MinSize,
			})
			if err != nil {
				return fmt.Errorf("chunking bounds: %w", err)
			}

			loader := document.NewLoader(cfg.Documents.Extensions, logging.NewNop())
			docs, report, err := loader.LoadDir(dir)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no supported documents under %s", dir)
			}

			totalSize := 0
			totalChunks := 0
			rows := make([][]string, 0, len(docs)+1)
			for _, doc := range docs {
				chunks := chunker.Split(doc.ID, doc.Text)
				totalSize += len(doc.Text)
				totalChunks += len(chunks)
				rows = append(rows, []string{
					doc.ID,
					strconv.Itoa(len(doc.Text)),
					strconv.Itoa(len(chunks)),
				})
			}
			rows = append(rows, []string{"total", strconv.Itoa(totalSize), strconv.Itoa(totalChunks)})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Document", "Size", "Chunks"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			if report.Skipped > 0 {
				fmt.Fprintf(out, "Skipped %d unsupported or unreadable files\n", report.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents to inspect")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
