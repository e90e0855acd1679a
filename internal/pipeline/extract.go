package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"winnow/internal/chunk"
	"winnow/internal/inference"
	"winnow/internal/logging"
)

const (
	// nothingSentinel is what the extractor prompt tells the model to answer
	// when a chunk holds nothing relevant.
	nothingSentinel = "NOTHING"
	// minEvidenceRunes filters out token-level noise masquerading as
	// evidence.
	minEvidenceRunes = 10
)

// extractStage reads each selected chunk on the high tier under a bounded
// worker pool. Unselected chunks are never sent. A chunk that fails after
// retries, or that yields the nothing sentinel, simply contributes no
// evidence; an answer can legitimately be synthesized from none.
func (c *Controller) extractStage(ctx context.Context, log *slog.Logger, run *RunState) error {
	if len(run.Selected) == 0 {
		run.Evidence = nil
		return nil
	}
	byID := make(map[string]chunk.Chunk, len(run.Chunks))
	for _, ck := range run.Chunks {
		byID[ck.ID] = ck
	}
	workers := c.cfg.Pipeline.ExtractConcurrency
	if workers < 1 {
		workers = 1
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	results := make(map[string]string, len(run.Selected))
	sem := make(chan struct{}, workers)
	for _, id := range run.Selected {
		ck, ok := byID[id]
		if !ok {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ck chunk.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			excerpt, err := c.extractChunk(ctx, run.Question, ck)
			if err != nil {
				log.Warn("chunk extraction failed",
					logging.String("chunk", ck.ID),
					logging.Error(err),
				)
				return
			}
			if excerpt == "" {
				log.Debug("nothing relevant in chunk", logging.String("chunk", ck.ID))
				return
			}
			mu.Lock()
			results[ck.ID] = excerpt
			mu.Unlock()
		}(ck)
	}
	wg.Wait()

	// Selected is already in document order, so evidence inherits it.
	evidence := make([]Evidence, 0, len(results))
	for _, id := range run.Selected {
		if excerpt, ok := results[id]; ok {
			evidence = append(evidence, Evidence{ChunkID: id, Excerpt: excerpt})
		}
	}
	run.Evidence = evidence
	log.Info("evidence extracted",
		logging.Int("selected", len(run.Selected)),
		logging.Int("evidence", len(evidence)),
	)
	return nil
}

// extractChunk returns the model's excerpt, or empty when the chunk holds
// nothing relevant.
func (c *Controller) extractChunk(ctx context.Context, question string, ck chunk.Chunk) (string, error) {
	response, err := c.invoker.Complete(ctx, inference.TierHigh, extractorSystemPrompt, extractorUserPrompt(question, ck.ID, ck.Text))
	if err != nil {
		return "", err
	}
	excerpt := strings.TrimSpace(response)
	if strings.Contains(strings.ToUpper(excerpt), nothingSentinel) {
		return "", nil
	}
	if utf8.RuneCountInString(excerpt) <= minEvidenceRunes {
		return "", nil
	}
	return excerpt, nil
}
