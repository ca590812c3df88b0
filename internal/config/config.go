// Package config loads moodmix settings from defaults, an optional YAML file and
// the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Spotify   SpotifyConfig   `koanf:"spotify"`
	LLM       LLMConfig       `koanf:"llm"`
	Ollama    OllamaConfig    `koanf:"ollama"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Storage   StorageConfig   `koanf:"storage"`
	Recommend RecommendConfig `koanf:"recommend"`
	Preview   PreviewConfig   `koanf:"preview"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SpotifyConfig holds Web API settings. Credentials are checked when a flow starts,
// not at load time.
type SpotifyConfig struct {
	ClientID        string        `koanf:"client_id"`
	ClientSecret    string        `koanf:"client_secret"`
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	TokenURL        string        `koanf:"token_url" validate:"required,url"`
	Market          string        `koanf:"market" validate:"omitempty,len=2"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries      int           `koanf:"max_retries" validate:"gte=1,lte=10"`
	RetryBackoff    time.Duration `koanf:"retry_backoff" validate:"gt=0"`
	RateLimit       float64       `koanf:"rate_limit" validate:"gt=0"` // requests per second
	RateBurst       int           `koanf:"rate_burst" validate:"gte=1"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type LLMConfig struct {
	Provider string        `koanf:"provider" validate:"oneof=ollama openai"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

type OllamaConfig struct {
	Host  string `koanf:"host" validate:"required,url"`
	Model string `koanf:"model" validate:"required"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Model   string `koanf:"model" validate:"required"`
}

type StorageConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type RecommendConfig struct {
	DefaultLimit   int           `koanf:"default_limit" validate:"gte=1,lte=50"`
	MaxLimit       int           `koanf:"max_limit" validate:"gte=1,lte=50"`
	PoolFloor      int           `koanf:"pool_floor" validate:"gte=1"`
	PoolMultiplier int           `koanf:"pool_multiplier" validate:"gte=1"`
	SearchTimeout  time.Duration `koanf:"search_timeout" validate:"gt=0"`
	Parallelism    int           `koanf:"parallelism" validate:"gte=1,lte=8"`
	Seed           uint64        `koanf:"seed"` // 0 seeds from the clock
}

type PreviewConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxBytes int64         `koanf:"max_bytes" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.LLM.Provider == "openai" && c.OpenAI.APIKey == "" {
		return errors.New("config: OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("config: recommend.default_limit %d exceeds recommend.max_limit %d",
			c.Recommend.DefaultLimit, c.Recommend.MaxLimit)
	}
	return nil
}

// HasSpotifyCredentials reports whether both client credentials are set.
func (c *Config) HasSpotifyCredentials() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
