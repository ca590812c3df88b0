package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/recommend"
	"github.com/ewilliams-labs/moodmix/internal/logging"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// Flow kinds used for metrics and logs.
const (
	flowMood = "mood"
	flowSong = "song"
)

// Limits applied when a request leaves them out.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// CandidateSource gathers recommendation candidates. *recommend.Aggregator implements it.
type CandidateSource interface {
	Aggregate(ctx context.Context, queries []string, fallback string, limit int) ([]domain.Track, error)
	FindSimilar(ctx context.Context, seed domain.Track, features *domain.FeatureVector, limit int) ([]domain.Track, error)
}

// Deps are the collaborators of an Orchestrator. Preview, Candidates and Rand are optional.
type Deps struct {
	Catalog    ports.Catalog
	LLM        ports.ChatCompleter
	Store      ports.HistoryStore
	Preview    ports.PreviewAnalyzer
	Candidates CandidateSource
	Rand       recommend.Rand
	Logger     zerolog.Logger
}

// Config bounds the number of tracks a single request may ask for.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	Aggregator   recommend.Config
}

// Orchestrator runs the mood and seed-song flows and exposes the history.
type Orchestrator struct {
	catalog    ports.Catalog
	llm        ports.ChatCompleter
	store      ports.HistoryStore
	preview    ports.PreviewAnalyzer
	candidates CandidateSource
	rng        recommend.Rand
	cfg        Config
	log        zerolog.Logger
}

// NewOrchestrator constructs an Orchestrator. When deps.Candidates is nil an aggregator
// over deps.Catalog is built from cfg.Aggregator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}

	rng := deps.Rand
	if rng == nil {
		rng = recommend.NewRand(0)
	}

	log := deps.Logger.With().Str("component", "orchestrator").Logger()

	candidates := deps.Candidates
	if candidates == nil {
		aggLog := deps.Logger.With().Str("component", "aggregator").Logger()
		candidates = recommend.NewAggregator(deps.Catalog, rng, cfg.Aggregator, aggLog)
	}

	return &Orchestrator{
		catalog:    deps.Catalog,
		llm:        deps.LLM,
		store:      deps.Store,
		preview:    deps.Preview,
		candidates: candidates,
		rng:        rng,
		cfg:        cfg,
		log:        log,
	}
}

// logger returns the orchestrator logger tagged with the request id carried by ctx.
func (o *Orchestrator) logger(ctx context.Context) zerolog.Logger {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return o.log.With().Str("request_id", id).Logger()
	}
	return o.log
}

// resolveLimit applies the default and rejects values outside 1..MaxLimit.
func (o *Orchestrator) resolveLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return o.cfg.DefaultLimit, nil
	case limit < 0 || limit > o.cfg.MaxLimit:
		return 0, &domain.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", o.cfg.MaxLimit)}
	default:
		return limit, nil
	}
}

// audioFeatures looks up analysis for tracks. A failed lookup is logged and whatever
// the catalog managed to return is kept.
func (o *Orchestrator) audioFeatures(ctx context.Context, tracks []domain.Track) map[string]domain.AudioFeatures {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.AudioFeatures{}
	}
	features, err := o.catalog.AudioFeatures(ctx, ids)
	if err != nil {
		log := o.logger(ctx)
		log.Warn().Err(err).Int("tracks", len(ids)).Int("kept", len(features)).Msg("audio features incomplete")
	}
	if features == nil {
		features = map[string]domain.AudioFeatures{}
	}
	return features
}

// finishFlow records the outcome of a flow.
func finishFlow(kind string, start time.Time, found bool, err error) {
	result := "found"
	switch {
	case err != nil:
		result = "error"
	case !found:
		result = "empty"
	}
	metrics.RecordFlow(kind, result, time.Since(start))
}
