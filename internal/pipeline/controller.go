package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"winnow/internal/chunk"
	"winnow/internal/config"
	"winnow/internal/document"
	"winnow/internal/inference"
	"winnow/internal/logging"
	"winnow/internal/scancache"
	"winnow/internal/services"
	"winnow/internal/textutil"
)

// Controller drives questions through the staged state machine.
type Controller struct {
	cfg     *config.Config
	invoker inference.Invoker
	loader  *document.Loader
	chunker *chunk.Chunker
	cache   *scancache.Store
	logger  *slog.Logger
}

// NewController wires the pipeline against the given inference backend. The
// cache may be nil, which disables cross-run summary reuse.
func NewController(cfg *config.Config, invoker inference.Invoker, cache *scancache.Store, logger *slog.Logger) (*Controller, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "configuration required", nil)
	}
	if invoker == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "inference invoker required", nil)
	}
	chunker, err := chunk.New(chunk.Config{
		TargetSize: cfg.Chunking.TargetSize,
		Overlap:    cfg.Chunking.Overlap,
		MinSize:    cfg.Chunking.MinSize,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "chunking bounds", err)
	}
	return &Controller{
		cfg:     cfg,
		invoker: invoker,
		loader:  document.NewLoader(cfg.Documents.Extensions, logger),
		chunker: chunker,
		cache:   cache,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

type stageFunc func(ctx context.Context, log *slog.Logger, run *RunState) error

// Run answers question from the documents under dir. The returned RunState is
// always populated as far as the run progressed; the error is non-nil exactly
// when the run ends in StateFailed. Cancellation is checked before each
// stage; a stage already underway finishes under its own request timeouts.
func (c *Controller) Run(ctx context.Context, question, dir string) (*RunState, error) {
	run := &RunState{
		RunID:        uuid.NewString(),
		Question:     strings.TrimSpace(question),
		Directory:    dir,
		State:        StateInit,
		ScanFailures: make(map[string]string),
		Timings:      make(map[string]time.Duration),
	}
	ctx = services.WithRunID(ctx, run.RunID)
	if run.Question == "" {
		return run, c.fail(ctx, run, "run", services.Wrap(services.ErrValidation, "run", "admit", "question required", nil))
	}
	if strings.TrimSpace(run.Directory) == "" {
		return run, c.fail(ctx, run, "run", services.Wrap(services.ErrValidation, "run", "admit", "document directory required", nil))
	}

	stages := []struct {
		name string
		exec stageFunc
	}{
		{StageChunking, c.chunkStage},
		{StageScanning, c.scanStage},
		{StageSelection, c.selectStage},
		{StageExtraction, c.extractStage},
		{StageSynthesis, c.synthesizeStage},
	}
	logging.WithContext(ctx, c.logger).Info("run started",
		logging.String("question", textutil.TruncateWithEllipsis(run.Question, 120)),
		logging.String("directory", run.Directory),
	)
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			stageCtx := services.WithStage(ctx, st.name)
			return run, c.fail(stageCtx, run, st.name, fmt.Errorf("run canceled before %s: %w", st.name, err))
		}
		stageCtx := services.WithStage(context.WithoutCancel(ctx), st.name)
		log := logging.WithContext(stageCtx, c.logger)
		log.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
		stageStart := time.Now()
		err := st.exec(stageCtx, log, run)
		run.Timings[st.name] = time.Since(stageStart)
		if err != nil {
			return run, c.fail(stageCtx, run, st.name, err)
		}
		c.advance(run)
		log.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("state", string(run.State)),
			logging.Duration("stage_duration", run.Timings[st.name]),
		)
	}
	c.advance(run)
	run.Answer.Timings = run.Timings
	logging.WithContext(ctx, c.logger).Info("run completed",
		logging.String("state", string(run.State)),
		logging.Duration("total_duration", totalDuration(run.Timings)),
	)
	return run, nil
}

func (c *Controller) advance(run *RunState) {
	if next, ok := run.State.Next(); ok {
		run.State = next
	}
}

func (c *Controller) fail(ctx context.Context, run *RunState, stage string, err error) error {
	run.State = StateFailed
	run.Failure = &Failure{Stage: stage, Category: services.Classify(err), Err: err}
	logging.WithContext(ctx, c.logger).Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("category", run.Failure.Category),
		logging.Alert("stage_failure"),
		logging.Error(err),
	)
	return err
}

// chunkStage loads the corpus and splits every document. A directory with no
// usable documents ends the run before any inference call.
func (c *Controller) chunkStage(_ context.Context, log *slog.Logger, run *RunState) error {
	docs, report, err := c.loader.LoadDir(run.Directory)
	if err != nil {
		return err
	}
	run.Documents = docs
	run.Report = report
	if len(docs) == 0 {
		return services.Wrap(services.ErrNoInput, StageChunking, "load", fmt.Sprintf("no supported documents under %s", run.Directory), nil)
	}
	chunks := make([]chunk.Chunk, 0, len(docs))
	for _, doc := range docs {
		pieces := c.chunker.Split(doc.ID, doc.Text)
		log.Debug("document chunked",
			logging.String("document", doc.ID),
			logging.Int("chars", len(doc.Text)),
			logging.Int("chunks", len(pieces)),
		)
		chunks = append(chunks, pieces...)
	}
	run.Chunks = chunks
	if len(chunks) == 0 {
		return services.Wrap(services.ErrNoInput, StageChunking, "split", "documents produced no chunks", nil)
	}
	log.Info("corpus chunked",
		logging.Int("documents", len(docs)),
		logging.Int("skipped_files", report.Skipped),
		logging.Int("chunks", len(chunks)),
	)
	return nil
}

func totalDuration(timings map[string]time.Duration) time.Duration {
	var total time.Duration
	for _, d := range timings {
		total += d
	}
	return total
}
