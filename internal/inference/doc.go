// Package inference defines the tiered model abstraction the pipeline runs
// against. Stages never name concrete models; they ask for a tier (fast, mid,
// high) and the router resolves the configured model alias and delegates to
// the active backend provider. Providers own transport, retries, and
// backend-specific response cleanup, so an error escaping a provider is
// final for that request.
package inference
