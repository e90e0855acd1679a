package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"winnow/internal/scancache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Scan summary cache utilities",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show scan cache size and location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheForMaintenance(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Scan cache is disabled; enable it under [scan_cache] in the config")
				return nil
			}
			defer store.Close()

			stats, err := store.ReadStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read cache stats: %w", err)
			}
			rows := [][]string{
				{"Path", stats.Path},
				{"Entries", strconv.FormatInt(stats.Entries, 10)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Stat", "Value"}, rows, nil))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached chunk summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheForMaintenance(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Scan cache is disabled; nothing to clear")
				return nil
			}
			defer store.Close()

			dropped, err := store.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached summaries\n", dropped)
			return nil
		},
	}
}

// openCacheForMaintenance opens the cache exclusively. Unlike ask, the
// maintenance commands treat a held lock as an error rather than degrading.
func openCacheForMaintenance(ctx *commandContext) (*scancache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.ScanCache.Enabled {
		return nil, nil
	}
	logger, err := buildLogger(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	store, err := scancache.Open(cfg.ScanCache.Path, logger)
	if err != nil {
		if errors.Is(err, scancache.ErrBusy) {
			return nil, fmt.Errorf("scan cache at %s is in use by another winnow process", cfg.ScanCache.Path)
		}
		return nil, fmt.Errorf("open scan cache: %w", err)
	}
	return store, nil
}
