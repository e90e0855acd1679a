// Package config loads, normalizes, and validates winnow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and OLLAMA_HOST. The Config type centralizes every knob the
// CLI and pipeline need, so chunk bounds, model tiers, concurrency ceilings,
// and cache locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors. The
// loaded Config is treated as immutable: components copy the values they need
// at construction and never observe later mutation.
package config
