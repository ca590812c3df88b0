package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/recommend"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// MaxMoodLength caps the free-text mood sent to the language model.
const MaxMoodLength = 500

// fallbackScore is reported when the evaluator cannot be used.
const fallbackScore = 7

// MoodRequest asks for tracks matching a free-text mood.
type MoodRequest struct {
	Mood  string `json:"mood" validate:"required,max=500"`
	Limit int    `json:"limit" validate:"gte=0"`
}

// MoodResult is the outcome of RecommendByMood. Found is false when the catalog returned
// nothing; such results are not written to the history.
type MoodResult struct {
	Found         bool                            `json:"found"`
	HistoryID     int64                           `json:"history_id,omitempty"`
	Mood          string                          `json:"mood"`
	Features      domain.FeatureVector            `json:"features"`
	Queries       []string                        `json:"queries"`
	Tracks        []domain.Track                  `json:"tracks"`
	AudioFeatures map[string]domain.AudioFeatures `json:"audio_features"`
	Evaluation    *domain.Evaluation              `json:"evaluation,omitempty"`
}

// RecommendByMood turns a mood description into a sampled, evaluated track list.
func (o *Orchestrator) RecommendByMood(ctx context.Context, req MoodRequest) (res MoodResult, err error) {
	start := time.Now()
	defer func() { finishFlow(flowMood, start, res.Found, err) }()

	mood := strings.TrimSpace(req.Mood)
	if mood == "" {
		return MoodResult{}, &domain.ValidationError{Field: "mood", Reason: "must not be empty"}
	}
	if len([]rune(mood)) > MaxMoodLength {
		return MoodResult{}, &domain.ValidationError{Field: "mood", Reason: fmt.Sprintf("must be at most %d characters", MaxMoodLength)}
	}
	limit, err := o.resolveLimit(req.Limit)
	if err != nil {
		return MoodResult{}, err
	}

	log := o.logger(ctx)

	if err := o.catalog.Authenticate(ctx); err != nil {
		return MoodResult{}, fmt.Errorf("service: authenticate catalog: %w", err)
	}

	raw, err := o.llm.Complete(ctx, ports.CompletionRequest{
		System:      MoodSystemPrompt,
		User:        MoodUserPrompt(mood),
		JSON:        true,
		Temperature: moodTemperature,
	})
	if err != nil {
		return MoodResult{}, fmt.Errorf("service: mood to features: %w", err)
	}

	features, err := domain.ParseFeatures(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw", truncate(raw, 200)).Msg("language model returned unusable features")
		return MoodResult{}, fmt.Errorf("service: parse features: %w", err)
	}

	queries := recommend.Plan(features)
	log.Debug().Strs("queries", queries).Msg("planned mood queries")

	tracks, err := o.candidates.Aggregate(ctx, queries, recommend.FallbackQuery(features), limit)
	if err != nil {
		return MoodResult{}, fmt.Errorf("service: aggregate candidates: %w", err)
	}

	res = MoodResult{
		Mood:          mood,
		Features:      features,
		Queries:       queries,
		Tracks:        tracks,
		AudioFeatures: map[string]domain.AudioFeatures{},
	}
	if len(tracks) == 0 {
		log.Info().Str("mood", mood).Msg("no tracks found for mood")
		return res, nil
	}
	res.Found = true

	res.AudioFeatures = o.audioFeatures(ctx, tracks)
	evaluation := o.evaluate(ctx, mood, features, tracks, res.AudioFeatures)
	res.Evaluation = &evaluation

	entry, err := o.store.InsertMoodSearch(ctx, domain.MoodSearch{
		Mood:          mood,
		Features:      features,
		Tracks:        tracks,
		AudioFeatures: res.AudioFeatures,
		Evaluation:    res.Evaluation,
	})
	if err != nil {
		return MoodResult{}, fmt.Errorf("service: save mood search: %w", err)
	}
	res.HistoryID = entry.ID

	log.Info().
		Int64("history_id", entry.ID).
		Int("tracks", len(tracks)).
		Float64("score", evaluation.Score).
		Msg("mood recommendation complete")
	return res, nil
}

// evaluate asks the language model to judge the tracks. Any failure yields FallbackEvaluation.
func (o *Orchestrator) evaluate(ctx context.Context, mood string, f domain.FeatureVector, tracks []domain.Track, audio map[string]domain.AudioFeatures) domain.Evaluation {
	log := o.logger(ctx)

	raw, err := o.llm.Complete(ctx, ports.CompletionRequest{
		System:      EvaluationSystemPrompt,
		User:        EvaluationPrompt(mood, f, tracks, audio),
		JSON:        true,
		Temperature: evaluationTemperature,
	})
	if err == nil {
		var ev domain.Evaluation
		ev, err = ParseEvaluation(raw)
		if err == nil {
			return ev
		}
	}

	metrics.LLMFallbacks.WithLabelValues("evaluation").Inc()
	log.Warn().Err(err).Msg("evaluation unavailable, using fallback")
	return FallbackEvaluation(mood, tracks)
}

// ParseEvaluation decodes an evaluator response. The score is clamped to 1..10 and an
// explanation is required.
func ParseEvaluation(raw string) (domain.Evaluation, error) {
	body := raw
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		body = raw[start : end+1]
	}

	var payload struct {
		Score       any      `json:"score"`
		Explanation string   `json:"explanation"`
		BestMatches []string `json:"best_matches"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return domain.Evaluation{}, &domain.ValidationError{Field: "evaluation", Reason: "malformed JSON object", Err: err}
	}

	var score float64
	switch v := payload.Score.(type) {
	case nil:
		return domain.Evaluation{}, &domain.MissingFieldError{Fields: []string{"score"}}
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return domain.Evaluation{}, &domain.InvalidFieldError{Field: "score", Value: v}
		}
		score = parsed
	default:
		return domain.Evaluation{}, &domain.InvalidFieldError{Field: "score", Value: v}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return domain.Evaluation{}, &domain.InvalidFieldError{Field: "score", Value: payload.Score}
	}
	explanation := strings.TrimSpace(payload.Explanation)
	if explanation == "" {
		return domain.Evaluation{}, &domain.MissingFieldError{Fields: []string{"explanation"}}
	}

	best := make([]string, 0, len(payload.BestMatches))
	for _, name := range payload.BestMatches {
		if name = strings.TrimSpace(name); name != "" {
			best = append(best, name)
		}
	}

	return domain.Evaluation{
		Score:       math.Max(1, math.Min(10, score)),
		Explanation: explanation,
		BestMatches: best,
	}, nil
}

// FallbackEvaluation is the fixed verdict used when the evaluator fails.
func FallbackEvaluation(mood string, tracks []domain.Track) domain.Evaluation {
	best := []string{}
	if len(tracks) >= 2 {
		best = append(best, tracks[0].Name, tracks[1].Name)
	}
	return domain.Evaluation{
		Score: fallbackScore,
		Explanation: fmt.Sprintf(
			"These songs were picked for your %q mood. Their energy, tempo and atmosphere match what you asked for!",
			mood,
		),
		BestMatches: best,
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
