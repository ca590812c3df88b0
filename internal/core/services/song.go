package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/recommend"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// seedSearchLimit is the number of free-text results considered for a seed.
const seedSearchLimit = 5

// jitter is the maximum perturbation applied to estimated features when the track
// analysis call fails.
const jitter = 0.1

// SongRequest identifies a seed track. TrackID wins over Title/Artist, which win over Query.
type SongRequest struct {
	Query   string `json:"query,omitempty"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	TrackID string `json:"track_id,omitempty"`
	Limit   int    `json:"limit" validate:"gte=0"`
}

// SongResult is the outcome of DiscoverBySong.
type SongResult struct {
	Found     bool         `json:"found"`
	HistoryID int64        `json:"history_id,omitempty"`
	Seed      domain.Track `json:"seed"`
	// SeedAudioFeatures is the catalog analysis of the seed, or the estimate used in its place.
	SeedAudioFeatures domain.AudioFeatures            `json:"seed_audio_features"`
	Estimated         bool                            `json:"estimated"`
	Features          domain.FeatureVector            `json:"features"`
	MoodDescription   string                          `json:"mood_description"`
	Tracks            []domain.Track                  `json:"tracks"`
	AudioFeatures     map[string]domain.AudioFeatures `json:"audio_features"`
}

// DiscoverBySong finds tracks similar to a seed song.
func (o *Orchestrator) DiscoverBySong(ctx context.Context, req SongRequest) (res SongResult, err error) {
	start := time.Now()
	defer func() { finishFlow(flowSong, start, res.Found, err) }()

	req.Query = strings.TrimSpace(req.Query)
	req.Title = strings.TrimSpace(req.Title)
	req.Artist = strings.TrimSpace(req.Artist)
	req.TrackID = strings.TrimSpace(req.TrackID)
	if req.TrackID == "" && req.Query == "" && req.Title == "" {
		return SongResult{}, &domain.ValidationError{Field: "query", Reason: "one of track_id, title or query is required"}
	}
	limit, err := o.resolveLimit(req.Limit)
	if err != nil {
		return SongResult{}, err
	}

	log := o.logger(ctx)

	if err := o.catalog.Authenticate(ctx); err != nil {
		return SongResult{}, fmt.Errorf("service: authenticate catalog: %w", err)
	}

	seed, err := o.resolveSeed(ctx, req)
	if err != nil {
		return SongResult{}, err
	}
	log.Debug().Str("seed_id", seed.ID).Str("seed", seed.Name).Msg("seed resolved")

	seedAudio, estimated := o.seedAudioFeatures(ctx, seed)
	analysis := o.analyzeSeed(ctx, seed, seedAudio)
	features := analysis.Features

	similar, err := o.candidates.FindSimilar(ctx, seed, &features, limit)
	if err != nil {
		return SongResult{}, fmt.Errorf("service: find similar: %w", err)
	}
	if len(similar) < limit {
		similar, err = o.topUp(ctx, seed, features, similar, limit)
		if err != nil {
			return SongResult{}, err
		}
	}

	res = SongResult{
		Seed:              seed,
		SeedAudioFeatures: seedAudio,
		Estimated:         estimated,
		Features:          features,
		Tracks:            similar,
		AudioFeatures:     map[string]domain.AudioFeatures{},
	}
	if len(similar) == 0 {
		log.Info().Str("seed_id", seed.ID).Msg("no similar tracks found")
		return res, nil
	}
	res.Found = true

	res.AudioFeatures = o.audioFeatures(ctx, similar)
	res.MoodDescription = analysis.Explanation
	if res.MoodDescription == "" {
		res.MoodDescription = o.describeSimilarity(ctx, seed, features, len(similar))
	}

	rec := domain.SongDiscovery{
		SourceTrackID:   seed.ID,
		SourceTrack:     seed.Name,
		SourceArtist:    seed.ArtistLine(),
		SourceFeatures:  &features,
		SimilarTracks:   similar,
		MoodDescription: res.MoodDescription,
	}
	if !estimated {
		rec.SourceAudioFeatures = &seedAudio
	}
	entry, err := o.store.InsertSongDiscovery(ctx, rec)
	if err != nil {
		return SongResult{}, fmt.Errorf("service: save song discovery: %w", err)
	}
	res.HistoryID = entry.ID

	log.Info().
		Int64("history_id", entry.ID).
		Str("seed_id", seed.ID).
		Int("tracks", len(similar)).
		Bool("estimated", estimated).
		Msg("song discovery complete")
	return res, nil
}

// resolveSeed finds the seed track for req.
func (o *Orchestrator) resolveSeed(ctx context.Context, req SongRequest) (domain.Track, error) {
	switch {
	case req.TrackID != "":
		track, err := o.catalog.LookupTrack(ctx, req.TrackID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Track{}, fmt.Errorf("service: track %q: %w", req.TrackID, domain.ErrSeedNotFound)
		}
		if err != nil {
			return domain.Track{}, fmt.Errorf("service: lookup seed: %w", err)
		}
		return track, nil

	case req.Title != "" && req.Artist != "":
		track, err := o.catalog.FindTrack(ctx, req.Title, req.Artist)
		if err != nil {
			return domain.Track{}, fmt.Errorf("service: match seed: %w", err)
		}
		return track, nil

	default:
		query := req.Query
		if query == "" {
			query = req.Title
		}
		results, err := o.catalog.Search(ctx, query, seedSearchLimit, 0)
		if err != nil {
			return domain.Track{}, fmt.Errorf("service: search seed: %w", err)
		}
		for _, t := range results {
			if t.ID != "" {
				return t, nil
			}
		}
		return domain.Track{}, fmt.Errorf("service: seed %q: %w", query, domain.ErrSeedNotFound)
	}
}

// seedAudioFeatures returns the catalog analysis for seed, or an estimate when the catalog
// has none. The estimate takes its energy from the preview clip when one is available.
func (o *Orchestrator) seedAudioFeatures(ctx context.Context, seed domain.Track) (domain.AudioFeatures, bool) {
	if af, ok := o.audioFeatures(ctx, []domain.Track{seed})[seed.ID]; ok {
		return af, false
	}

	af := domain.EstimatedAudioFeatures(seed.ID)
	if o.preview == nil || seed.PreviewURL == "" {
		return af, true
	}

	log := o.logger(ctx)
	energy, err := o.preview.Energy(ctx, seed.PreviewURL)
	if err != nil {
		log.Warn().Err(err).Str("seed_id", seed.ID).Msg("preview analysis failed")
		return af, true
	}
	af.Energy = energy
	log.Debug().Str("seed_id", seed.ID).Float64("energy", energy).Msg("energy estimated from preview")
	return af, true
}

// analyzeSeed asks the language model to read the seed. On failure the audio features are
// used directly with a small random perturbation.
func (o *Orchestrator) analyzeSeed(ctx context.Context, seed domain.Track, af domain.AudioFeatures) domain.TrackAnalysis {
	raw, err := o.llm.Complete(ctx, ports.CompletionRequest{
		System:      TrackAnalysisSystemPrompt,
		User:        TrackAnalysisPrompt(seed, af),
		JSON:        true,
		Temperature: analysisTemperature,
	})
	if err == nil {
		var analysis domain.TrackAnalysis
		analysis, err = domain.ParseTrackAnalysis(raw)
		if err == nil {
			return analysis
		}
	}

	metrics.LLMFallbacks.WithLabelValues("track_analysis").Inc()
	log := o.logger(ctx)
	log.Warn().Err(err).Str("seed_id", seed.ID).Msg("track analysis unavailable, deriving features from audio")
	return domain.TrackAnalysis{Features: o.featuresFromAudio(af)}
}

// featuresFromAudio maps audio features onto a FeatureVector, perturbing energy, valence
// and danceability by up to ±jitter.
func (o *Orchestrator) featuresFromAudio(af domain.AudioFeatures) domain.FeatureVector {
	perturb := func(v float64) float64 {
		return v + (o.rng.Float64()*2-1)*jitter
	}
	f, err := domain.NormalizeFeatures(map[string]any{
		"energy":           perturb(af.Energy),
		"valence":          perturb(af.Valence),
		"danceability":     perturb(af.Danceability),
		"acousticness":     af.Acousticness,
		"instrumentalness": af.Instrumentalness,
		"speechiness":      af.Speechiness,
		"loudness":         af.Loudness,
		"mode":             float64(af.Mode),
		"tempo":            af.Tempo,
	})
	if err != nil {
		// Every required field is supplied above.
		return domain.DefaultFeatureVector()
	}
	return f
}

// topUp fills a short similar list from a mood-style aggregation over the seed's features.
func (o *Orchestrator) topUp(ctx context.Context, seed domain.Track, f domain.FeatureVector, tracks []domain.Track, limit int) ([]domain.Track, error) {
	missing := limit - len(tracks)
	extra, err := o.candidates.Aggregate(ctx, recommend.Plan(f), recommend.FallbackQuery(f), missing*2)
	if err != nil {
		return nil, fmt.Errorf("service: top up similar: %w", err)
	}

	seen := make(map[string]struct{}, len(tracks)+1)
	seen[seed.ID] = struct{}{}
	for _, t := range tracks {
		seen[t.ID] = struct{}{}
	}
	for _, t := range extra {
		if len(tracks) >= limit {
			break
		}
		if _, dup := seen[t.ID]; dup || t.ID == "" {
			continue
		}
		seen[t.ID] = struct{}{}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// describeSimilarity asks for a short prose description of the seed, falling back to a template.
func (o *Orchestrator) describeSimilarity(ctx context.Context, seed domain.Track, f domain.FeatureVector, count int) string {
	text, err := o.llm.Complete(ctx, ports.CompletionRequest{
		System:      SimilaritySystemPrompt,
		User:        SimilarityPrompt(seed, f, count),
		Temperature: similarityTemperature,
	})
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}

	metrics.LLMFallbacks.WithLabelValues("similarity").Inc()
	log := o.logger(ctx)
	log.Warn().Err(err).Str("seed_id", seed.ID).Msg("similarity description unavailable, using template")
	return SimilarityTemplate(seed, f, count)
}

// SimilarityTemplate is the description used when the language model is unavailable.
func SimilarityTemplate(seed domain.Track, f domain.FeatureVector, count int) string {
	return fmt.Sprintf(
		"%q by %s has %s energy and %s valence. Found %d tracks with similar audio features.",
		seed.Name, seed.ArtistLine(), percent(f.Energy), percent(f.Valence), count,
	)
}
