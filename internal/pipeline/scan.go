package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"winnow/internal/chunk"
	"winnow/internal/inference"
	"winnow/internal/logging"
	"winnow/internal/scancache"
	"winnow/internal/services"
	"winnow/internal/textutil"
)

const (
	// scanPreviewLimit caps how much of a chunk the fast tier sees.
	scanPreviewLimit = 2000
	// summaryLimit caps a stored summary to one digest-friendly line.
	summaryLimit = 150
)

// scanStage summarizes every chunk on the fast tier under a bounded worker
// pool. A chunk whose scan fails after retries is recorded in ScanFailures
// and carries no summary, which keeps it out of selection; the stage only
// fails when no chunk could be scanned at all.
func (c *Controller) scanStage(ctx context.Context, log *slog.Logger, run *RunState) error {
	workers := c.cfg.Pipeline.ScanConcurrency
	if workers < 1 {
		workers = 1
	}
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		cacheHits int
	)
	results := make(map[string]string, len(run.Chunks))
	sem := make(chan struct{}, workers)
	for _, ck := range run.Chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(ck chunk.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			summary, fromCache, err := c.scanChunk(ctx, log, ck)
			if err != nil {
				log.Warn("chunk scan failed",
					logging.String("chunk", ck.ID),
					logging.Error(err),
				)
				mu.Lock()
				run.ScanFailures[ck.ID] = err.Error()
				mu.Unlock()
				return
			}
			mu.Lock()
			if fromCache {
				cacheHits++
			}
			results[ck.ID] = summary
			mu.Unlock()
		}(ck)
	}
	wg.Wait()
	run.CacheHits = cacheHits

	// Completion order varies with scheduling; summaries always leave this
	// stage in chunk order so the selection prompt is reproducible.
	summaries := make([]Summary, 0, len(results))
	for _, ck := range run.Chunks {
		if text, ok := results[ck.ID]; ok {
			summaries = append(summaries, Summary{ChunkID: ck.ID, Text: text})
		}
	}
	run.Summaries = summaries
	if len(summaries) == 0 {
		return services.Wrap(services.ErrInference, StageScanning, "summarize", fmt.Sprintf("all %d chunk scans failed", len(run.Chunks)), nil)
	}
	log.Info("chunks scanned",
		logging.Int("scanned", len(summaries)),
		logging.Int("failed", len(run.ScanFailures)),
		logging.Int("cache_hits", cacheHits),
	)
	return nil
}

func (c *Controller) scanChunk(ctx context.Context, log *slog.Logger, ck chunk.Chunk) (summary string, fromCache bool, err error) {
	model := c.cfg.Inference.FastModel
	hash := scancache.Hash(ck.Text)
	cached, ok, lookupErr := c.cache.Lookup(ctx, hash, model)
	if lookupErr != nil {
		log.Debug("scan cache lookup failed",
			logging.String("chunk", ck.ID),
			logging.Error(lookupErr),
		)
	} else if ok {
		return cached, true, nil
	}

	response, err := c.invoker.Complete(ctx, inference.TierFast, scanSystemPrompt, scanUserPrompt(textutil.Truncate(ck.Text, scanPreviewLimit)))
	if err != nil {
		return "", false, err
	}
	summary = textutil.Truncate(textutil.Flatten(strings.TrimSpace(response)), summaryLimit)
	if summary == "" {
		return "", false, services.Wrap(services.ErrValidation, StageScanning, "summarize", fmt.Sprintf("blank summary for %s", ck.ID), nil)
	}
	if putErr := c.cache.Put(ctx, hash, model, summary); putErr != nil {
		log.Debug("scan cache write failed",
			logging.String("chunk", ck.ID),
			logging.Error(putErr),
		)
	}
	return summary, false, nil
}
