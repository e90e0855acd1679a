package preflight

import (
	"context"

	"winnow/internal/config"
	"winnow/internal/inference"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks. corpusDir is optional;
// the directory check only runs when one is given.
func RunAll(ctx context.Context, cfg *config.Config, provider inference.Provider, corpusDir string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if corpusDir != "" {
		results = append(results, CheckDirectoryAccess("Corpus directory", corpusDir))
	}

	results = append(results, CheckProvider(ctx, provider))

	if missing := CheckModels(ctx, provider, cfg); missing != nil {
		results = append(results, *missing)
	}

	if cfg.ScanCache.Enabled {
		results = append(results, CheckCacheLocation(cfg.ScanCache.Path))
	}

	return results
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
