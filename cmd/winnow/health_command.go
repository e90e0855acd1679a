package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"winnow/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check backend reachability and model availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg, false)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			provider, err := buildProvider(cfg, logger)
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, provider, dir)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				status := "ok"
				if !result.Passed {
					status = "failed"
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			if !preflight.Passed(results) {
				return errors.New("one or more health checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Also verify read access to a document directory")

	return cmd
}
