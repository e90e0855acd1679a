// Package ollama implements the inference provider for a local Ollama
// server. It speaks the native /api/chat endpoint, retries transient
// failures with capped exponential backoff, and scrubs reasoning-model
// think blocks from responses before handing them to callers.
package ollama
