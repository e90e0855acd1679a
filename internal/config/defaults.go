package config

// Default values applied before any configuration file is read.
const (
	defaultChunkTargetSize = 1500
	defaultChunkOverlap    = 200
	defaultChunkMinSize    = 300

	defaultProvider         = "ollama"
	defaultFastModel        = "qwen3:0.6b"
	defaultMidModel         = "qwen3:8b"
	defaultHighModel        = "qwen3:14b"
	defaultTimeoutSeconds   = 120
	defaultRetryAttempts    = 3
	defaultRetryBaseDelayMS = 1000
	defaultRetryMaxDelayMS  = 10000

	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	defaultScanConcurrency    = 4
	defaultExtractConcurrency = 2
	defaultMaxSelected        = 8

	defaultScanCachePath = "~/.cache/winnow/scan_cache.db"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

func defaultExtensions() []string {
	return []string{".txt", ".md", ".py", ".json", ".csv", ".log", ".yml", ".yaml", ".xml", ".html"}
}

// Default returns a Config populated with the built-in defaults. Callers
// normally go through Load, which layers a configuration file on top.
func Default() Config {
	return Config{
		Chunking: Chunking{
			TargetSize: defaultChunkTargetSize,
			Overlap:    defaultChunkOverlap,
			MinSize:    defaultChunkMinSize,
		},
		Documents: Documents{
			Extensions: defaultExtensions(),
		},
		Inference: Inference{
			Provider:         defaultProvider,
			FastModel:        defaultFastModel,
			MidModel:         defaultMidModel,
			HighModel:        defaultHighModel,
			TimeoutSeconds:   defaultTimeoutSeconds,
			RetryAttempts:    defaultRetryAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
		},
		Ollama: Ollama{
			BaseURL: defaultOllamaBaseURL,
		},
		OpenAI: OpenAI{
			BaseURL: defaultOpenAIBaseURL,
		},
		Pipeline: Pipeline{
			ScanConcurrency:    defaultScanConcurrency,
			ExtractConcurrency: defaultExtractConcurrency,
			MaxSelected:        defaultMaxSelected,
		},
		ScanCache: ScanCache{
			Enabled: false,
			Path:    defaultScanCachePath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
