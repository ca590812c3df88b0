package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"moodmix.yaml",
	"moodmix.yml",
	"/etc/moodmix/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns the built-in configuration layer.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second, // two LLM calls plus up to eight searches
			ShutdownTimeout: 10 * time.Second,
		},
		Spotify: SpotifyConfig{
			BaseURL:         "https://api.spotify.com/v1",
			TokenURL:        "https://accounts.spotify.com/api/token",
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			RateLimit:       10,
			RateBurst:       5,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  60 * time.Second,
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Storage: StorageConfig{
			Path: "moodmix.db",
		},
		Recommend: RecommendConfig{
			DefaultLimit:   10,
			MaxLimit:       50,
			PoolFloor:      50,
			PoolMultiplier: 5,
			SearchTimeout:  10 * time.Second,
			Parallelism:    1,
		},
		Preview: PreviewConfig{
			Enabled:  true,
			Timeout:  15 * time.Second,
			MaxBytes: 2 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the config file and the environment.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_addr":             "server.addr",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		"spotify_client_id":        "spotify.client_id",
		"spotify_client_secret":    "spotify.client_secret",
		"spotify_base_url":         "spotify.base_url",
		"spotify_token_url":        "spotify.token_url",
		"spotify_market":           "spotify.market",
		"spotify_timeout":          "spotify.timeout",
		"spotify_max_retries":      "spotify.max_retries",
		"spotify_retry_backoff":    "spotify.retry_backoff",
		"spotify_rate_limit":       "spotify.rate_limit",
		"spotify_rate_burst":       "spotify.rate_burst",
		"spotify_breaker_failures": "spotify.breaker_failures",
		"spotify_breaker_timeout":  "spotify.breaker_timeout",

		"llm_provider": "llm.provider",
		"llm_timeout":  "llm.timeout",

		"ollama_host":  "ollama.host",
		"ollama_model": "ollama.model",

		"openai_api_key":  "openai.api_key",
		"openai_base_url": "openai.base_url",
		"openai_model":    "openai.model",

		"storage_path": "storage.path",

		"recommend_default_limit":   "recommend.default_limit",
		"recommend_max_limit":       "recommend.max_limit",
		"recommend_pool_floor":      "recommend.pool_floor",
		"recommend_pool_multiplier": "recommend.pool_multiplier",
		"recommend_search_timeout":  "recommend.search_timeout",
		"recommend_parallelism":     "recommend.parallelism",
		"recommend_seed":            "recommend.seed",

		"preview_enabled":   "preview.enabled",
		"preview_timeout":   "preview.timeout",
		"preview_max_bytes": "preview.max_bytes",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
