// Package pipeline drives a question through the staged document analysis
// machine: chunk, scan, select, extract, synthesize.
//
// A run owns a RunState that advances through fixed forward transitions; any
// stage error moves the run to StateFailed with the failing stage and cause
// preserved for diagnostics. Scan and extract fan out over bounded worker
// pools, selection and synthesis are single model calls. Cancellation is
// honored between stages; a stage that has started is left to finish under
// its own per-request timeouts.
package pipeline
