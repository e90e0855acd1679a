package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid combinations. It reports
// every problem it finds rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	problems = append(problems, c.validateChunking()...)
	problems = append(problems, c.validateDocuments()...)
	problems = append(problems, c.validateInference()...)
	problems = append(problems, c.validatePipeline()...)
	problems = append(problems, c.validateScanCache()...)
	problems = append(problems, c.validateLogging()...)

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateChunking() []string {
	var problems []string
	ch := c.Chunking
	if ch.TargetSize <= 0 {
		problems = append(problems, "chunking.target_size must be positive")
	}
	if ch.Overlap < 0 {
		problems = append(problems, "chunking.overlap must not be negative")
	}
	if ch.MinSize < 0 {
		problems = append(problems, "chunking.min_size must not be negative")
	}
	if ch.TargetSize > 0 && ch.Overlap >= ch.TargetSize {
		problems = append(problems, "chunking.overlap must be smaller than chunking.target_size")
	}
	if ch.TargetSize > 0 && ch.MinSize > ch.TargetSize {
		problems = append(problems, "chunking.min_size must not exceed chunking.target_size")
	}
	return problems
}

func (c *Config) validateDocuments() []string {
	if len(c.Documents.Extensions) == 0 {
		return []string{"documents.extensions must list at least one extension"}
	}
	return nil
}

func (c *Config) validateInference() []string {
	var problems []string
	inf := c.Inference

	switch inf.Provider {
	case "ollama", "openai":
	default:
		problems = append(problems, fmt.Sprintf("inference.provider must be \"ollama\" or \"openai\", got %q", inf.Provider))
	}

	for key, model := range map[string]string{
		"inference.fast_model": inf.FastModel,
		"inference.mid_model":  inf.MidModel,
		"inference.high_model": inf.HighModel,
	} {
		if model == "" {
			problems = append(problems, key+" must be set")
		}
	}

	problems = append(problems, ensurePositive(map[string]int{
		"inference.timeout_seconds":     inf.TimeoutSeconds,
		"inference.retry_base_delay_ms": inf.RetryBaseDelayMS,
		"inference.retry_max_delay_ms":  inf.RetryMaxDelayMS,
	})...)
	if inf.RetryAttempts < 1 {
		problems = append(problems, "inference.retry_attempts must be at least 1")
	}
	if inf.RetryMaxDelayMS > 0 && inf.RetryBaseDelayMS > inf.RetryMaxDelayMS {
		problems = append(problems, "inference.retry_base_delay_ms must not exceed inference.retry_max_delay_ms")
	}

	switch inf.Provider {
	case "ollama":
		if c.Ollama.BaseURL == "" {
			problems = append(problems, "ollama.base_url must be set when inference.provider is \"ollama\"")
		}
	case "openai":
		if c.OpenAI.BaseURL == "" {
			problems = append(problems, "openai.base_url must be set when inference.provider is \"openai\"")
		}
		if c.OpenAI.APIKey == "" {
			problems = append(problems, "openai.api_key must be set (or exported as OPENAI_API_KEY) when inference.provider is \"openai\"")
		}
	}

	return problems
}

func (c *Config) validatePipeline() []string {
	return ensurePositive(map[string]int{
		"pipeline.scan_concurrency":    c.Pipeline.ScanConcurrency,
		"pipeline.extract_concurrency": c.Pipeline.ExtractConcurrency,
		"pipeline.max_selected":        c.Pipeline.MaxSelected,
	})
}

func (c *Config) validateScanCache() []string {
	if c.ScanCache.Enabled && c.ScanCache.Path == "" {
		return []string{"scan_cache.path must be set when scan_cache.enabled is true"}
	}
	return nil
}

func (c *Config) validateLogging() []string {
	var problems []string
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}
	return problems
}

func ensurePositive(values map[string]int) []string {
	var problems []string
	for key, value := range values {
		if value <= 0 {
			problems = append(problems, key+" must be positive")
		}
	}
	return problems
}
