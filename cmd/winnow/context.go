package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"winnow/internal/config"
	"winnow/internal/inference"
	"winnow/internal/logging"
	"winnow/internal/scancache"
	"winnow/internal/services/ollama"
	"winnow/internal/services/openaicompat"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.pathFlag())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// pathFlag returns the value of the persistent --config flag, if set.
func (c *commandContext) pathFlag() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// buildLogger follows the configured format and level; verbose forces debug.
// Logs go to stderr (or the configured file) so stdout stays clean for
// answers and tables.
func buildLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	outputs := []string{"stderr"}
	if strings.TrimSpace(cfg.Logging.File) != "" {
		outputs = append(outputs, cfg.Logging.File)
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return logger, nil
}

// buildProvider constructs the configured backend client with the retry
// policy from the inference section.
func buildProvider(cfg *config.Config, logger *slog.Logger) (inference.Provider, error) {
	baseDelay := time.Duration(cfg.Inference.RetryBaseDelayMS) * time.Millisecond
	maxDelay := time.Duration(cfg.Inference.RetryMaxDelayMS) * time.Millisecond
	switch cfg.Inference.Provider {
	case "openai":
		return openaicompat.NewClient(openaicompat.Config{
			BaseURL:        cfg.OpenAI.BaseURL,
			APIKey:         cfg.OpenAI.APIKey,
			TimeoutSeconds: cfg.Inference.TimeoutSeconds,
		},
			openaicompat.WithLogger(logger),
			openaicompat.WithRetryMaxAttempts(cfg.Inference.RetryAttempts),
			openaicompat.WithRetryBackoff(baseDelay, maxDelay),
		)
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL:        cfg.Ollama.BaseURL,
			TimeoutSeconds: cfg.Inference.TimeoutSeconds,
		},
			ollama.WithLogger(logger),
			ollama.WithRetryMaxAttempts(cfg.Inference.RetryAttempts),
			ollama.WithRetryBackoff(baseDelay, maxDelay),
		), nil
	default:
		return nil, fmt.Errorf("unsupported inference provider %q", cfg.Inference.Provider)
	}
}

func buildRouter(cfg *config.Config, logger *slog.Logger) (*inference.Router, error) {
	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	return inference.NewRouter(provider, inference.Models{
		Fast: cfg.Inference.FastModel,
		Mid:  cfg.Inference.MidModel,
		High: cfg.Inference.HighModel,
	}, logger)
}

// openCache opens the configured scan cache, or returns nil when disabled.
// A cache held by another process degrades to running without one.
func openCache(cfg *config.Config, logger *slog.Logger) (*scancache.Store, string) {
	if !cfg.ScanCache.Enabled {
		return nil, ""
	}
	store, err := scancache.Open(cfg.ScanCache.Path, logger)
	if err != nil {
		if errors.Is(err, scancache.ErrBusy) {
			return nil, "scan cache is in use by another winnow process; continuing without it"
		}
		return nil, fmt.Sprintf("scan cache unavailable (%v); continuing without it", err)
	}
	return store, ""
}

// skipConfigAnnotation marks commands that must run without a loaded
// configuration, such as config init on a fresh machine.
const skipConfigAnnotation = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
