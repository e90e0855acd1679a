// Package preflight verifies runtime dependencies before a pipeline run:
// corpus directory access, inference backend reachability, model
// availability, and the scan cache location. Checks return Results rather
// than errors so the CLI can render a full report instead of stopping at
// the first problem.
package preflight
