// Package openaicompat implements the inference provider for hosted
// OpenAI-compatible endpoints. Any service that speaks the OpenAI chat
// completion API works: api.openai.com itself, or compatible gateways
// pointed at via openai.base_url.
package openaicompat
