package config

import (
	"os"
	"strings"
)

// normalize trims user-supplied strings, applies environment fallbacks, and
// expands filesystem paths. It runs after decoding and before validation so
// Validate only ever sees canonical values.
func (c *Config) normalize() error {
	c.Inference.Provider = strings.ToLower(strings.TrimSpace(c.Inference.Provider))
	c.Inference.FastModel = strings.TrimSpace(c.Inference.FastModel)
	c.Inference.MidModel = strings.TrimSpace(c.Inference.MidModel)
	c.Inference.HighModel = strings.TrimSpace(c.Inference.HighModel)

	c.Ollama.BaseURL = strings.TrimSpace(c.Ollama.BaseURL)
	if host := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); host != "" && c.Ollama.BaseURL == defaultOllamaBaseURL {
		c.Ollama.BaseURL = host
	}
	c.Ollama.BaseURL = strings.TrimRight(c.Ollama.BaseURL, "/")

	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	normalized := make([]string, 0, len(c.Documents.Extensions))
	for _, ext := range c.Documents.Extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, strings.ToLower(ext))
	}
	c.Documents.Extensions = normalized

	c.ScanCache.Path = strings.TrimSpace(c.ScanCache.Path)
	if c.ScanCache.Path != "" {
		expanded, err := expandPath(c.ScanCache.Path)
		if err != nil {
			return err
		}
		c.ScanCache.Path = expanded
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File != "" {
		expanded, err := expandPath(c.Logging.File)
		if err != nil {
			return err
		}
		c.Logging.File = expanded
	}

	return nil
}
