// Package app assembles the adapters and the orchestrator from a loaded configuration.
// Both the HTTP server and the CLI start from here.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodmix/internal/adapters/ollama"
	"github.com/ewilliams-labs/moodmix/internal/adapters/openai"
	"github.com/ewilliams-labs/moodmix/internal/adapters/preview"
	"github.com/ewilliams-labs/moodmix/internal/adapters/rest"
	"github.com/ewilliams-labs/moodmix/internal/adapters/spotify"
	"github.com/ewilliams-labs/moodmix/internal/adapters/sqlite"
	"github.com/ewilliams-labs/moodmix/internal/config"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/recommend"
	"github.com/ewilliams-labs/moodmix/internal/core/services"
	"github.com/ewilliams-labs/moodmix/internal/logging"
)

// App owns the long-lived collaborators. Close releases the history database.
type App struct {
	Config       *config.Config
	Orchestrator *services.Orchestrator
	Store        *sqlite.Adapter
	Log          zerolog.Logger
}

// New configures logging and wires every adapter.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	log := logging.WithComponent("app")

	if !cfg.HasSpotifyCredentials() {
		log.Warn().Msg("SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET not set; recommendation requests will fail")
	}

	llm, err := NewLLM(cfg)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewAdapter(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("app: open history store %s: %w", cfg.Storage.Path, err)
	}

	catalog := spotify.NewClient(spotify.Config{
		ClientID:        cfg.Spotify.ClientID,
		ClientSecret:    cfg.Spotify.ClientSecret,
		BaseURL:         cfg.Spotify.BaseURL,
		TokenURL:        cfg.Spotify.TokenURL,
		Market:          cfg.Spotify.Market,
		Timeout:         cfg.Spotify.Timeout,
		MaxRetries:      cfg.Spotify.MaxRetries,
		RetryBackoff:    cfg.Spotify.RetryBackoff,
		RateLimit:       cfg.Spotify.RateLimit,
		RateBurst:       cfg.Spotify.RateBurst,
		BreakerFailures: cfg.Spotify.BreakerFailures,
		BreakerTimeout:  cfg.Spotify.BreakerTimeout,
	}, spotify.WithLogger(logging.WithComponent("spotify")))

	deps := services.Deps{
		Catalog: catalog,
		LLM:     llm,
		Store:   store,
		Rand:    recommend.NewRand(cfg.Recommend.Seed),
		Logger:  logging.Logger(),
	}
	if cfg.Preview.Enabled {
		deps.Preview = preview.NewAnalyzer(cfg.Preview.Timeout, cfg.Preview.MaxBytes)
	}

	orch := services.NewOrchestrator(deps, services.Config{
		DefaultLimit: cfg.Recommend.DefaultLimit,
		MaxLimit:     cfg.Recommend.MaxLimit,
		Aggregator: recommend.Config{
			PoolFloor:      cfg.Recommend.PoolFloor,
			PoolMultiplier: cfg.Recommend.PoolMultiplier,
			SearchTimeout:  cfg.Recommend.SearchTimeout,
			Parallelism:    cfg.Recommend.Parallelism,
		},
	})

	log.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Str("storage", cfg.Storage.Path).
		Bool("preview", cfg.Preview.Enabled).
		Msg("moodmix wired")

	return &App{Config: cfg, Orchestrator: orch, Store: store, Log: log}, nil
}

// NewLLM returns the chat completer selected by llm.provider.
func NewLLM(cfg *config.Config) (ports.ChatCompleter, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model, cfg.LLM.Timeout), nil
	case "openai":
		return openai.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.LLM.Timeout), nil
	default:
		return nil, fmt.Errorf("app: unknown llm provider %q", cfg.LLM.Provider)
	}
}

// Handler returns the HTTP API with a health check against the history store.
func (a *App) Handler() http.Handler {
	return rest.NewHandler(a.Orchestrator, rest.WithHealthCheck(a.Store.Ping))
}

func (a *App) Close() error {
	return a.Store.Close()
}
