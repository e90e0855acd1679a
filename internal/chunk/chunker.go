package chunk

import (
	"strings"
	"unicode/utf8"
)

// separators orders split candidates from coarsest to finest. A span that
// cannot be split at one level is retried with the next; spans with none of
// these at all fall through to fixed-width slicing.
var separators = []string{"\n\n\n", "\n\n", "\n", ". ", ", ", " "}

// Chunker deterministically splits document text according to an immutable
// Config.
type Chunker struct {
	cfg Config
}

// New constructs a Chunker, rejecting invalid bounds.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// span is a half-open byte range into the source text.
type span struct {
	start, end int
}

func (s span) size() int { return s.end - s.start }

// Split segments text into ordered chunks for the given document. Empty text
// yields no chunks. Text at or below the target size yields a single chunk
// with no overlap.
func (c *Chunker) Split(documentID, text string) []Chunk {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= c.cfg.TargetSize {
		return []Chunk{c.build(documentID, 1, text, span{0, len(text)}, 0)}
	}

	pieces := c.split(text, span{0, len(text)}, 0)
	groups := c.pack(pieces)
	groups = c.mergeSmall(groups)

	chunks := make([]Chunk, 0, len(groups))
	for i, g := range groups {
		overlap := 0
		if i > 0 {
			overlap = overlapStart(text, groups[i-1], c.cfg.Overlap)
		}
		chunks = append(chunks, c.build(documentID, i+1, text, g, overlap))
	}
	return chunks
}

func (c *Chunker) build(documentID string, sequence int, text string, core span, overlap int) Chunk {
	return Chunk{
		ID:         ChunkID(documentID, sequence),
		DocumentID: documentID,
		Sequence:   sequence,
		Text:       text[core.start-overlap : core.end],
		Start:      core.start,
		End:        core.end,
		Overlap:    overlap,
	}
}

// split recursively divides s until every piece fits the target, trying
// separators[level] first and descending to finer levels only inside pieces
// that remain oversized.
func (c *Chunker) split(text string, s span, level int) []span {
	if s.size() <= c.cfg.TargetSize {
		return []span{s}
	}
	if level >= len(separators) {
		return c.fixedSlices(text, s)
	}

	parts := splitAfter(text, s, separators[level])
	if len(parts) <= 1 {
		return c.split(text, s, level+1)
	}

	out := make([]span, 0, len(parts))
	for _, part := range parts {
		if part.size() > c.cfg.TargetSize {
			out = append(out, c.split(text, part, level+1)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// splitAfter divides s at every occurrence of sep, keeping the separator
// attached to the preceding piece so the pieces concatenate back to the
// original span.
func splitAfter(text string, s span, sep string) []span {
	var parts []span
	start := s.start
	for start < s.end {
		idx := strings.Index(text[start:s.end], sep)
		if idx < 0 {
			break
		}
		cut := start + idx + len(sep)
		parts = append(parts, span{start, cut})
		start = cut
	}
	if start < s.end {
		parts = append(parts, span{start, s.end})
	}
	return parts
}

// fixedSlices cuts s into target-sized pieces at rune boundaries. This is the
// last resort for spans with no separators; it always shrinks the span, so
// splitting terminates even on pathological input.
func (c *Chunker) fixedSlices(text string, s span) []span {
	var parts []span
	start := s.start
	for start < s.end {
		cut := start + c.cfg.TargetSize
		if cut >= s.end {
			parts = append(parts, span{start, s.end})
			break
		}
		for cut > start && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == start {
			_, width := utf8.DecodeRuneInString(text[start:s.end])
			cut = start + width
		}
		parts = append(parts, span{start, cut})
		start = cut
	}
	return parts
}

// pack greedily joins adjacent pieces while the combined span stays within the
// target, rebuilding chunks near the target size out of fine-grained splits.
func (c *Chunker) pack(pieces []span) []span {
	if len(pieces) == 0 {
		return nil
	}
	packed := make([]span, 0, len(pieces))
	current := pieces[0]
	for _, p := range pieces[1:] {
		if p.end-current.start <= c.cfg.TargetSize {
			current.end = p.end
			continue
		}
		packed = append(packed, current)
		current = p
	}
	return append(packed, current)
}

// mergeSmall folds groups below MinSize into their predecessor, or into their
// successor when no predecessor exists yet. The document's final group is
// exempt and may stay small.
func (c *Chunker) mergeSmall(groups []span) []span {
	if len(groups) <= 1 {
		return groups
	}
	out := make([]span, 0, len(groups))
	for i := range groups {
		g := groups[i]
		last := i == len(groups)-1
		switch {
		case g.size() >= c.cfg.MinSize, last:
			out = append(out, g)
		case len(out) > 0:
			out[len(out)-1].end = g.end
		default:
			groups[i+1].start = g.start
		}
	}
	return out
}

// overlapStart computes the length of the context prefix for a chunk: up to
// limit bytes taken from the tail of the previous core, aligned to a rune
// boundary.
func overlapStart(text string, previous span, limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > previous.size() {
		limit = previous.size()
	}
	start := previous.end - limit
	for start < previous.end && !utf8.RuneStart(text[start]) {
		start++
	}
	return previous.end - start
}
