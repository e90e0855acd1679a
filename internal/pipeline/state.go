package pipeline

import (
	"time"

	"winnow/internal/chunk"
	"winnow/internal/document"
)

// State identifies a position in the run lifecycle. Successful stages move
// strictly forward; Failed can be entered from any non-terminal state and,
// like Done, is terminal.
type State string

const (
	StateInit        State = "init"
	StateChunked     State = "chunked"
	StateScanned     State = "scanned"
	StateSelected    State = "selected"
	StateExtracted   State = "extracted"
	StateSynthesized State = "synthesized"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

var forward = map[State]State{
	StateInit:        StateChunked,
	StateChunked:     StateScanned,
	StateScanned:     StateSelected,
	StateSelected:    StateExtracted,
	StateExtracted:   StateSynthesized,
	StateSynthesized: StateDone,
}

// Next returns the state a successful stage advances the run into.
func (s State) Next() (State, bool) {
	next, ok := forward[s]
	return next, ok
}

// Terminal reports whether the run can advance no further.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Stage names double as Timings keys and as the Stage recorded in a Failure.
const (
	StageChunking   = "chunking"
	StageScanning   = "scanning"
	StageSelection  = "selection"
	StageExtraction = "extraction"
	StageSynthesis  = "synthesis"
)

// StageOrder lists the stage names in execution order.
var StageOrder = []string{StageChunking, StageScanning, StageSelection, StageExtraction, StageSynthesis}

// Summary is one chunk's fast-tier scan result.
type Summary struct {
	ChunkID string
	Text    string
}

// Evidence is one selected chunk's extracted excerpt.
type Evidence struct {
	ChunkID string
	Excerpt string
}

// Answer is the synthesized response together with the per-stage durations of
// the run that produced it.
type Answer struct {
	Text    string
	Timings map[string]time.Duration
}

// Failure records the stage that ended a run and why.
type Failure struct {
	Stage    string
	Category string
	Err      error
}

// RunState carries everything produced while answering one question. Each
// field is written by the stage that owns the corresponding machine state and
// only read afterward; on failure the state is preserved as far as the run
// progressed.
type RunState struct {
	RunID     string
	Question  string
	Directory string
	State     State

	Documents []document.Document
	Report    document.Report
	Chunks    []chunk.Chunk

	Summaries    []Summary
	ScanFailures map[string]string
	CacheHits    int

	Selected []string
	Evidence []Evidence

	Answer  Answer
	Timings map[string]time.Duration
	Failure *Failure
}
