package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"winnow/internal/config"
	"winnow/internal/inference"
	"winnow/internal/logging"
	"winnow/internal/scancache"
	"winnow/internal/services"
)

type stubCall struct {
	tier   inference.Tier
	system string
	user   string
}

// stubInvoker routes by tier to per-tier handlers and records every call.
// High-tier handlers receive the system prompt so tests can tell extraction
// from synthesis apart.
type stubInvoker struct {
	mu    sync.Mutex
	calls []stubCall
	fast  func(user string) (string, error)
	mid   func(user string) (string, error)
	high  func(system, user string) (string, error)
}

func (s *stubInvoker) Complete(_ context.Context, tier inference.Tier, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubCall{tier: tier, system: systemPrompt, user: userPrompt})
	s.mu.Unlock()
	switch tier {
	case inference.TierFast:
		if s.fast == nil {
			return "one line chunk summary", nil
		}
		return s.fast(userPrompt)
	case inference.TierMid:
		if s.mid == nil {
			return "[]", nil
		}
		return s.mid(userPrompt)
	default:
		if s.high == nil {
			return "extracted evidence that is long enough", nil
		}
		return s.high(systemPrompt, userPrompt)
	}
}

func (s *stubInvoker) callsForTier(tier inference.Tier) []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stubCall
	for _, call := range s.calls {
		if call.tier == tier {
			out = append(out, call)
		}
	}
	return out
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func testConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func newTestController(t *testing.T, cfg *config.Config, invoker inference.Invoker, cache *scancache.Store) *Controller {
	t.Helper()
	controller, err := NewController(cfg, invoker, cache, logging.NewNop())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return controller
}

func twoDocCorpus(t *testing.T) string {
	t.Helper()
	return writeCorpus(t, map[string]string{
		"alpha.txt": "The launch window opens on March 15. Weather teams currently rate the risk as low.",
		"beta.txt":  "Catering for the viewing stands is handled by the usual vendor from town.",
	})
}

func TestRunReachesDone(t *testing.T) {
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return `["alpha.txt_s1"]`, nil },
		high: func(system, _ string) (string, error) {
			if system == extractorSystemPrompt {
				return "The launch window opens on March 15.", nil
			}
			return `The launch window opens on March 15 [alpha.txt_s1 : "March 15"].`, nil
		},
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "When does the launch window open?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != StateDone {
		t.Fatalf("state = %s, want %s", run.State, StateDone)
	}
	if run.Failure != nil {
		t.Fatalf("unexpected failure: %+v", run.Failure)
	}
	if len(run.Chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(run.Chunks))
	}
	if len(run.Summaries) != 2 || run.Summaries[0].ChunkID != "alpha.txt_s1" || run.Summaries[1].ChunkID != "beta.txt_s1" {
		t.Fatalf("summaries out of order: %+v", run.Summaries)
	}
	if len(run.Selected) != 1 || run.Selected[0] != "alpha.txt_s1" {
		t.Fatalf("selected = %v", run.Selected)
	}
	if len(run.Evidence) != 1 || run.Evidence[0].ChunkID != "alpha.txt_s1" {
		t.Fatalf("evidence = %+v", run.Evidence)
	}
	if !strings.Contains(run.Answer.Text, "March 15") {
		t.Fatalf("answer = %q", run.Answer.Text)
	}
	for _, stage := range StageOrder {
		if _, ok := run.Timings[stage]; !ok {
			t.Errorf("missing timing for %s", stage)
		}
	}
	if len(run.Answer.Timings) != len(run.Timings) {
		t.Fatalf("answer timings = %v", run.Answer.Timings)
	}
}

func TestRunSelectionPromptListsSummariesInChunkOrder(t *testing.T) {
	invoker := &stubInvoker{}
	invoker.mid = func(user string) (string, error) {
		alpha := strings.Index(user, "[alpha.txt_s1]:")
		beta := strings.Index(user, "[beta.txt_s1]:")
		if alpha == -1 || beta == -1 || beta < alpha {
			t.Errorf("digest out of order:\n%s", user)
		}
		if !strings.Contains(user, `USER QUESTION: "what changed?"`) {
			t.Errorf("question missing from prompt:\n%s", user)
		}
		return `["beta.txt_s1", "alpha.txt_s1"]`, nil
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "what changed?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Model ranked beta first; downstream order is document order.
	if len(run.Selected) != 2 || run.Selected[0] != "alpha.txt_s1" || run.Selected[1] != "beta.txt_s1" {
		t.Fatalf("selected = %v", run.Selected)
	}
	if len(run.Evidence) != 2 || run.Evidence[0].ChunkID != "alpha.txt_s1" {
		t.Fatalf("evidence = %+v", run.Evidence)
	}
}

func TestRunEmptyDirectoryFailsBeforeInference(t *testing.T) {
	invoker := &stubInvoker{}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "anything in here?", t.TempDir())
	if err == nil {
		t.Fatal("expected failure for empty directory")
	}
	if !errors.Is(err, services.ErrNoInput) {
		t.Fatalf("error = %v, want no-input marker", err)
	}
	if run.State != StateFailed {
		t.Fatalf("state = %s", run.State)
	}
	if run.Failure == nil || run.Failure.Stage != StageChunking || run.Failure.Category != "document_load" {
		t.Fatalf("failure = %+v", run.Failure)
	}
	if len(invoker.calls) != 0 {
		t.Fatalf("inference invoked %d times on empty corpus", len(invoker.calls))
	}
	if _, ok := run.Timings[StageChunking]; !ok {
		t.Error("chunking duration not recorded")
	}
	if _, ok := run.Timings[StageScanning]; ok {
		t.Error("scanning should never have started")
	}
}

func TestRunDropsUnknownSelectedIDs(t *testing.T) {
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return `["alpha.txt_s1", "ghost.txt_s9"]`, nil },
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "what is planned?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Selected) != 1 || run.Selected[0] != "alpha.txt_s1" {
		t.Fatalf("selected = %v, want unknown id dropped", run.Selected)
	}
	if run.State != StateDone {
		t.Fatalf("state = %s", run.State)
	}
}

func TestRunEmptySelectionFallsBackToLeadingChunks(t *testing.T) {
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return `[]`, nil },
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "what is planned?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Selected) != 2 || run.Selected[0] != "alpha.txt_s1" || run.Selected[1] != "beta.txt_s1" {
		t.Fatalf("fallback selected = %v", run.Selected)
	}
	if run.State != StateDone {
		t.Fatalf("state = %s", run.State)
	}
}

func TestRunFallbackSelectionRespectsMaxSelected(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxSelected = 1
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return `[]`, nil },
	}
	controller := newTestController(t, cfg, invoker, nil)

	run, err := controller.Run(context.Background(), "what is planned?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Selected) != 1 || run.Selected[0] != "alpha.txt_s1" {
		t.Fatalf("capped fallback = %v", run.Selected)
	}
}

func TestRunScanFailureLeavesChunkUnselectable(t *testing.T) {
	scanErr := errors.New("fast tier unavailable")
	invoker := &stubInvoker{
		fast: func(user string) (string, error) {
			if strings.Contains(user, "Catering") {
				return "", scanErr
			}
			return "launch schedule details", nil
		},
		mid: func(user string) (string, error) {
			if strings.Contains(user, "beta.txt_s1") {
				t.Errorf("failed chunk leaked into selection prompt:\n%s", user)
			}
			return `["beta.txt_s1", "alpha.txt_s1"]`, nil
		},
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "when is the launch?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != StateDone {
		t.Fatalf("state = %s, want done despite one failed scan", run.State)
	}
	if _, ok := run.ScanFailures["beta.txt_s1"]; !ok {
		t.Fatalf("scan failures = %v", run.ScanFailures)
	}
	if len(run.Summaries) != 1 || run.Summaries[0].ChunkID != "alpha.txt_s1" {
		t.Fatalf("summaries = %+v", run.Summaries)
	}
	if len(run.Selected) != 1 || run.Selected[0] != "alpha.txt_s1" {
		t.Fatalf("selected = %v, want failed chunk dropped", run.Selected)
	}
}

func TestRunFailsWhenEveryScanFails(t *testing.T) {
	invoker := &stubInvoker{
		fast: func(string) (string, error) { return "", errors.New("model not loaded") },
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "anything?", twoDocCorpus(t))
	if err == nil {
		t.Fatal("expected failure when no chunk scanned")
	}
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("error = %v", err)
	}
	if run.Failure == nil || run.Failure.Stage != StageScanning || run.Failure.Category != "inference" {
		t.Fatalf("failure = %+v", run.Failure)
	}
	if calls := invoker.callsForTier(inference.TierMid); len(calls) != 0 {
		t.Fatalf("selection ran after scan stage failed: %d calls", len(calls))
	}
}

func TestRunFailsOnUnparseableSelection(t *testing.T) {
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return "I could not decide on any chunks.", nil },
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "anything?", twoDocCorpus(t))
	if err == nil {
		t.Fatal("expected failure for unparseable selection")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v", err)
	}
	if run.Failure == nil || run.Failure.Stage != StageSelection || run.Failure.Category != "validation" {
		t.Fatalf("failure = %+v", run.Failure)
	}
}

func TestRunToleratesExtractFailure(t *testing.T) {
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return `["alpha.txt_s1", "beta.txt_s1"]`, nil },
		high: func(system, user string) (string, error) {
			if system == extractorSystemPrompt {
				if strings.Contains(user, "beta.txt_s1") {
					return "", errors.New("request timed out")
				}
				return "The launch window opens on March 15.", nil
			}
			return "The launch opens March 15 [alpha.txt_s1 : March 15].", nil
		},
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "when is the launch?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != StateDone {
		t.Fatalf("state = %s", run.State)
	}
	if len(run.Evidence) != 1 || run.Evidence[0].ChunkID != "alpha.txt_s1" {
		t.Fatalf("evidence = %+v", run.Evidence)
	}
}

func TestRunSynthesizesWithoutEvidence(t *testing.T) {
	invoker := &stubInvoker{
		mid: func(string) (string, error) { return `["alpha.txt_s1", "beta.txt_s1"]`, nil },
		high: func(system, user string) (string, error) {
			if system == extractorSystemPrompt {
				if strings.Contains(user, "beta.txt_s1") {
					return "NOTHING", nil
				}
				return "too short", nil
			}
			if !strings.Contains(user, noEvidencePlaceholder) {
				t.Errorf("synthesis prompt missing placeholder:\n%s", user)
			}
			return "The documents do not say when the launch happens.", nil
		},
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "when is the launch?", twoDocCorpus(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != StateDone {
		t.Fatalf("state = %s", run.State)
	}
	if len(run.Evidence) != 0 {
		t.Fatalf("evidence = %+v, want none", run.Evidence)
	}
	if run.Answer.Text == "" {
		t.Fatal("answer missing")
	}
}

func TestRunCancellationStopsAtStageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	invoker := &stubInvoker{
		fast: func(string) (string, error) {
			cancel()
			return "still a fine summary", nil
		},
	}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(ctx, "when is the launch?", twoDocCorpus(t))
	if err == nil {
		t.Fatal("expected cancellation failure")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if run.Failure == nil || run.Failure.Stage != StageSelection || run.Failure.Category != "canceled" {
		t.Fatalf("failure = %+v", run.Failure)
	}
	// The scan stage already underway runs to completion.
	if len(run.Summaries) != 2 {
		t.Fatalf("summaries = %+v, want scan to finish", run.Summaries)
	}
	if calls := invoker.callsForTier(inference.TierMid); len(calls) != 0 {
		t.Fatalf("selection ran after cancellation: %d calls", len(calls))
	}
}

func TestRunRejectsBlankQuestion(t *testing.T) {
	invoker := &stubInvoker{}
	controller := newTestController(t, testConfig(), invoker, nil)

	run, err := controller.Run(context.Background(), "   ", twoDocCorpus(t))
	if err == nil {
		t.Fatal("expected failure for blank question")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v", err)
	}
	if run.State != StateFailed {
		t.Fatalf("state = %s", run.State)
	}
	if len(invoker.calls) != 0 {
		t.Fatal("inference must not run for a rejected question")
	}
}

func TestRunScanPreviewAndSummaryAreCapped(t *testing.T) {
	cfg := testConfig()
	cfg.Chunking.TargetSize = 4000
	long := strings.Repeat("abcdefghij", 250) // 2500 chars, one chunk
	dir := writeCorpus(t, map[string]string{"big.txt": long})

	invoker := &stubInvoker{
		fast: func(user string) (string, error) {
			const prefix = "CHUNK CONTENT:\n"
			if !strings.HasPrefix(user, prefix) {
				t.Errorf("scan prompt shape: %q", user[:40])
			}
			if got := utf8.RuneCountInString(user) - utf8.RuneCountInString(prefix); got != scanPreviewLimit {
				t.Errorf("preview length = %d, want %d", got, scanPreviewLimit)
			}
			return strings.Repeat("word ", 80), nil // 400 chars before capping
		},
		mid: func(string) (string, error) { return `["big.txt_s1"]`, nil },
	}
	controller := newTestController(t, cfg, invoker, nil)

	run, err := controller.Run(context.Background(), "what does it say?", dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Summaries) != 1 {
		t.Fatalf("summaries = %+v", run.Summaries)
	}
	if got := utf8.RuneCountInString(run.Summaries[0].Text); got != summaryLimit {
		t.Fatalf("summary length = %d, want %d", got, summaryLimit)
	}
}

func TestRunReusesCachedSummaries(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "scan_cache.db")
	store, err := scancache.Open(cachePath, logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	var fastCalls int
	var mu sync.Mutex
	invoker := &stubInvoker{
		fast: func(string) (string, error) {
			mu.Lock()
			fastCalls++
			mu.Unlock()
			return "stable summary line", nil
		},
		mid: func(string) (string, error) { return `["alpha.txt_s1"]`, nil },
	}
	controller := newTestController(t, testConfig(), invoker, store)
	dir := twoDocCorpus(t)

	first, err := controller.Run(context.Background(), "when is the launch?", dir)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.CacheHits != 0 {
		t.Fatalf("first run cache hits = %d", first.CacheHits)
	}
	if fastCalls != 2 {
		t.Fatalf("first run fast calls = %d", fastCalls)
	}

	second, err := controller.Run(context.Background(), "when is the launch?", dir)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.CacheHits != 2 {
		t.Fatalf("second run cache hits = %d", second.CacheHits)
	}
	if fastCalls != 2 {
		t.Fatalf("fast tier called again despite cache: %d", fastCalls)
	}
	if second.State != StateDone {
		t.Fatalf("state = %s", second.State)
	}
}

func TestNewControllerValidatesInputs(t *testing.T) {
	if _, err := NewController(nil, &stubInvoker{}, nil, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("nil config error = %v", err)
	}
	if _, err := NewController(testConfig(), nil, nil, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("nil invoker error = %v", err)
	}
	bad := testConfig()
	bad.Chunking.Overlap = bad.Chunking.TargetSize
	if _, err := NewController(bad, &stubInvoker{}, nil, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("bad chunking error = %v", err)
	}
}
