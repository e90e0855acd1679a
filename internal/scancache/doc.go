// Package scancache persists chunk summaries across runs. Summaries are
// keyed by (content hash, model), so edits to a document invalidate only
// the chunks that changed and switching the fast model never serves stale
// text. The store is SQLite-backed and guarded by an advisory file lock;
// a nil *Store is valid and turns every operation into a no-op, which is
// how a disabled cache is represented.
package scancache
