package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"winnow/internal/inference"
	"winnow/internal/logging"
	"winnow/internal/services"
)

// noEvidencePlaceholder stands in for the evidence section when extraction
// produced nothing, so the model answers honestly instead of guessing.
const noEvidencePlaceholder = "No relevant information could be extracted from selected chunks."

var citationPattern = regexp.MustCompile(`\[([^\[\]:]+):[^\[\]]*\]`)

// synthesizeStage makes the single high-tier call that writes the answer.
// Citations pointing outside the evidence set are a quality warning, never
// fatal; the model already promised honesty about thin evidence.
func (c *Controller) synthesizeStage(ctx context.Context, log *slog.Logger, run *RunState) error {
	response, err := c.invoker.Complete(ctx, inference.TierHigh, personaPrompt, synthesizeUserPrompt(run.Question, evidenceBlock(run.Evidence)))
	if err != nil {
		return err
	}
	text := strings.TrimSpace(response)
	if text == "" {
		return services.Wrap(services.ErrValidation, StageSynthesis, "synthesize", "model produced an empty answer", nil)
	}
	if unknown := unknownCitations(text, run.Evidence); len(unknown) > 0 {
		log.Warn("answer cites sources outside the evidence set",
			logging.String("ids", strings.Join(unknown, ", ")),
		)
	}
	run.Answer.Text = text
	log.Info("answer synthesized",
		logging.Int("answer_chars", len(text)),
		logging.Int("evidence", len(run.Evidence)),
	)
	return nil
}

func evidenceBlock(evidence []Evidence) string {
	if len(evidence) == 0 {
		return noEvidencePlaceholder
	}
	blocks := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		blocks = append(blocks, fmt.Sprintf("--- Source: %s ---\n%s", ev.ChunkID, ev.Excerpt))
	}
	return strings.Join(blocks, "\n\n")
}

func unknownCitations(answer string, evidence []Evidence) []string {
	known := make(map[string]struct{}, len(evidence))
	for _, ev := range evidence {
		known[ev.ChunkID] = struct{}{}
	}
	var unknown []string
	seen := make(map[string]struct{})
	for _, match := range citationPattern.FindAllStringSubmatch(answer, -1) {
		id := strings.TrimSpace(match[1])
		if id == "" {
			continue
		}
		if _, ok := known[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unknown = append(unknown, id)
	}
	return unknown
}
