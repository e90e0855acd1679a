package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"winnow/internal/chunk"
	"winnow/internal/inference"
	"winnow/internal/logging"
	"winnow/internal/services"
	"winnow/internal/textutil"
)

// selectStage asks the mid tier to pick the chunks worth close reading. Ids
// the model invents are dropped with a warning; an empty result degrades to
// the leading scanned chunks so the run can still answer from something. A
// payload with no recoverable id list fails the run.
func (c *Controller) selectStage(ctx context.Context, log *slog.Logger, run *RunState) error {
	response, err := c.invoker.Complete(ctx, inference.TierMid, selectorSystemPrompt, selectorUserPrompt(run.Question, summariesDigest(run.Summaries)))
	if err != nil {
		return err
	}
	proposed, err := parseSelection(response)
	if err != nil {
		return services.Wrap(services.ErrValidation, StageSelection, "parse", "unrecoverable selection payload", err)
	}

	valid := make(map[string]struct{}, len(run.Summaries))
	for _, s := range run.Summaries {
		valid[s.ChunkID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(proposed))
	kept := make([]string, 0, len(proposed))
	var dropped []string
	for _, id := range proposed {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := valid[id]; !ok {
			dropped = append(dropped, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	if len(dropped) > 0 {
		log.Warn("dropping unknown chunk ids from selection",
			logging.Int("dropped", len(dropped)),
			logging.String("ids", strings.Join(dropped, ", ")),
		)
	}
	limit := c.cfg.Pipeline.MaxSelected
	if limit > 0 && len(kept) > limit {
		log.Debug("capping selection",
			logging.Int("proposed", len(kept)),
			logging.Int("max_selected", limit),
		)
		kept = kept[:limit]
	}
	if len(kept) == 0 {
		kept = fallbackSelection(run.Summaries, limit)
		log.Warn("selection came back empty, falling back to leading chunks",
			logging.Int("selected", len(kept)),
		)
	}

	// The model ranks by relevance; downstream wants document order so the
	// synthesis prompt is byte-stable across runs.
	order := chunkOrder(run.Chunks)
	sort.SliceStable(kept, func(i, j int) bool { return order[kept[i]] < order[kept[j]] })
	run.Selected = kept
	log.Info("chunks selected",
		logging.Int("selected", len(kept)),
		logging.Int("candidates", len(run.Summaries)),
	)
	return nil
}

func summariesDigest(summaries []Summary) string {
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("[%s]: %s", s.ChunkID, s.Text))
	}
	return strings.Join(lines, "\n")
}

// parseSelection accepts strict JSON id lists as well as the looser bracketed
// payloads small models produce: single-quoted items, bare ids, code fences,
// and surrounding prose. Only a payload with no bracketed list at all is an
// error.
func parseSelection(raw string) ([]string, error) {
	var ids []string
	if err := inference.DecodeModelJSON(raw, &ids); err == nil {
		return ids, nil
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no bracketed id list in %s", textutil.Snippet(raw))
	}
	ids = nil
	for _, token := range strings.Split(raw[start+1:end], ",") {
		token = strings.TrimSpace(token)
		token = strings.Trim(token, "'\"`")
		token = strings.TrimSpace(token)
		if token != "" {
			ids = append(ids, token)
		}
	}
	return ids, nil
}

func fallbackSelection(summaries []Summary, limit int) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, s.ChunkID)
	}
	return ids
}

func chunkOrder(chunks []chunk.Chunk) map[string]int {
	order := make(map[string]int, len(chunks))
	for i, ck := range chunks {
		order[ck.ID] = i
	}
	return order
}
