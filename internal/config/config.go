package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Chunking bounds the deterministic document splitter.
type Chunking struct {
	TargetSize int `toml:"target_size"`
	Overlap    int `toml:"overlap"`
	MinSize    int `toml:"min_size"`
}

// Documents configures corpus loading.
type Documents struct {
	Extensions []string `toml:"extensions"`
}

// Inference selects the backend provider and the model alias for each tier.
type Inference struct {
	Provider         string `toml:"provider"`
	FastModel        string `toml:"fast_model"`
	MidModel         string `toml:"mid_model"`
	HighModel        string `toml:"high_model"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	RetryAttempts    int    `toml:"retry_attempts"`
	RetryBaseDelayMS int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int    `toml:"retry_max_delay_ms"`
}

// Ollama configures the local Ollama backend.
type Ollama struct {
	BaseURL string `toml:"base_url"`
}

// OpenAI configures a hosted OpenAI-compatible backend.
type OpenAI struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Pipeline bounds pipeline fan-out and selection size.
type Pipeline struct {
	ScanConcurrency    int `toml:"scan_concurrency"`
	ExtractConcurrency int `toml:"extract_concurrency"`
	MaxSelected        int `toml:"max_selected"`
}

// ScanCache configures the optional cross-run summary cache.
type ScanCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for winnow.
//
// Configuration sections by subsystem:
//   - Chunking: target/overlap/min bounds for the splitter
//   - Documents: supported corpus file extensions
//   - Inference: provider choice, tier model aliases, timeout and retry policy
//   - Ollama: local backend connection
//   - OpenAI: hosted backend connection and credentials
//   - Pipeline: scan/extract concurrency ceilings and the selection cap
//   - ScanCache: content-hash summary cache across runs
//   - Logging: log format, level, and optional file output
type Config struct {
	Chunking  Chunking  `toml:"chunking"`
	Documents Documents `toml:"documents"`
	Inference Inference `toml:"inference"`
	Ollama    Ollama    `toml:"ollama"`
	OpenAI    OpenAI    `toml:"openai"`
	Pipeline  Pipeline  `toml:"pipeline"`
	ScanCache ScanCache `toml:"scan_cache"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/winnow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The WINNOW_CONFIG
// environment variable overrides the default search locations when path is
// empty.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("WINNOW_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("winnow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ResolvePath reports where the configuration would be read from and whether
// a file exists there, without parsing it. The same search order as Load
// applies.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration text.
func Sample() string {
	return sampleConfig
}

// TierModels lists the configured model alias per tier name.
func (c *Config) TierModels() map[string]string {
	return map[string]string{
		"fast": c.Inference.FastModel,
		"mid":  c.Inference.MidModel,
		"high": c.Inference.HighModel,
	}
}
