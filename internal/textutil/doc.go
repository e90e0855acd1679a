// Package textutil provides small text helpers shared by prompt assembly,
// logging, and console output.
//
// The primary use cases are:
//   - Flattening multi-line model output into single-line form
//   - Rune-safe truncation of previews and summaries
//   - Compact payload snippets for error messages and logs
//
// All helpers operate on runes, not bytes, so multi-byte text never gets cut
// mid-character.
package textutil
