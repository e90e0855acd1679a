// Package document loads the plain-text corpus a pipeline run reads from disk.
//
// Loading is deliberately boring: list the directory, keep files whose
// extension is supported, read each one in name order, and normalize the text
// so downstream components see consistent input (UTF-8 BOM stripped, Unicode
// NFC, LF line endings). Files that cannot be read and files with no content
// are skipped with a warning; only an unreadable directory fails the load.
package document
