package chunk

import (
	"fmt"
	"strconv"
)

// Chunk is one bounded segment of a document. Text carries an optional overlap
// prefix copied from the previous chunk; the core region Text[Overlap:] is the
// chunk's own slice of the document, spanning bytes [Start, End).
type Chunk struct {
	ID         string
	DocumentID string
	Sequence   int
	Text       string
	Start      int
	End        int
	Overlap    int
}

// Core returns the chunk's own text without the overlap prefix. Concatenating
// the cores of a document's chunks in sequence order reproduces the document.
func (c Chunk) Core() string {
	if c.Overlap <= 0 || c.Overlap > len(c.Text) {
		return c.Text
	}
	return c.Text[c.Overlap:]
}

// ChunkID derives the stable identifier for a document chunk. Sequence numbers
// start at 1.
func ChunkID(documentID string, sequence int) string {
	return documentID + "_s" + strconv.Itoa(sequence)
}

// Config bounds chunk sizes. All values are measured in bytes; split points
// always land on rune boundaries so multi-byte text never tears.
type Config struct {
	// TargetSize is the soft upper bound on a chunk's core length.
	TargetSize int
	// Overlap is the maximum number of bytes copied from the previous chunk's
	// core as leading context. Overlap never counts against TargetSize.
	Overlap int
	// MinSize is the smallest acceptable core; smaller pieces are merged into a
	// neighbor. The final chunk of a document is exempt.
	MinSize int
}

// Validate reports the first invalid bound.
func (c Config) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("chunk target size must be positive, got %d", c.TargetSize)
	}
	if c.MinSize < 0 {
		return fmt.Errorf("chunk min size must not be negative, got %d", c.MinSize)
	}
	if c.MinSize > c.TargetSize {
		return fmt.Errorf("chunk min size %d exceeds target size %d", c.MinSize, c.TargetSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.TargetSize {
		return fmt.Errorf("chunk overlap %d must stay below target size %d", c.Overlap, c.TargetSize)
	}
	return nil
}
