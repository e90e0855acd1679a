// Package chunk segments document text into bounded, ordered, overlap-augmented
// pieces without any model inference.
//
// Splitting walks a fixed separator cascade from coarsest (blank-line runs) to
// finest (single spaces), recursing only into spans that still exceed the
// target size, then packs adjacent pieces back together up to the target and
// merges fragments below the minimum size into a neighbor. Fixed-width slicing
// is the terminal fallback for pathological spans with no separators at all,
// so splitting always terminates.
//
// Every chunk records its core byte range in the source document; the cores of
// a document's chunks concatenate back to the exact original text. Overlap is
// a prefix copied from the previous chunk's core and never participates in
// reconstruction. Identical input and configuration always produce identical
// chunks, ids included.
package chunk
