package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"winnow/internal/pipeline"
	"winnow/internal/scancache"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var (
		question string
		dir      string
		verbose  bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question from the documents in a directory",
		Long: `Ask runs the full answering pipeline: chunk the documents, scan every
chunk with the fast model, select the most promising chunks with the mid
model, extract evidence with the high model, and synthesize a cited answer.

The answer is written to stdout followed by a run report; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg, verbose)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			router, err := buildRouter(cfg, logger)
			if err != nil {
				return err
			}

			var cache *scancache.Store
			if !noCache {
				var warning string
				cache, warning = openCache(cfg, logger)
				if warning != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), warning)
				}
				if cache != nil {
					defer cache.Close()
				}
			}

			controller, err := pipeline.NewController(cfg, router, cache, logger)
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			run, err := controller.Run(runCtx, question, dir)
			if err != nil {
				printFailureProgress(cmd.ErrOrStderr(), run)
				if run != nil && run.Failure != nil {
					return fmt.Errorf("run failed during %s: %w", run.Failure.Stage, err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, run.Answer.Text)
			fmt.Fprintln(out)
			printRunReport(out, run)
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to answer")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents to read")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Run without the scan summary cache")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
