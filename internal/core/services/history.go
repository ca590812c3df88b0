package services

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// recentMoodCount is how many recent moods HistoryStats reports.
const recentMoodCount = 5

// HistoryStats summarises the stored history.
type HistoryStats struct {
	MoodSearches    int64    `json:"mood_searches"`
	SongDiscoveries int64    `json:"song_discoveries"`
	RecentMoods     []string `json:"recent_moods"`
}

// History lists stored entries newest first. An empty kind or domain.KindAll lists both
// kinds together; a limit of 0 returns everything.
func (o *Orchestrator) History(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error) {
	if limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must not be negative"}
	}

	var (
		entries []domain.HistoryEntry
		err     error
	)
	switch {
	case kind == "" || kind == domain.KindAll:
		entries, err = o.store.ListCombined(ctx, limit)
	case kind.Valid():
		entries, err = o.store.List(ctx, kind, limit)
	default:
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown history kind %q", kind)}
	}
	if err != nil {
		return nil, fmt.Errorf("service: list history: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// HistoryEntry returns one stored entry or an error wrapping domain.ErrNotFound.
func (o *Orchestrator) HistoryEntry(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error) {
	if !kind.Valid() {
		return domain.HistoryEntry{}, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown history kind %q", kind)}
	}
	if id <= 0 {
		return domain.HistoryEntry{}, &domain.ValidationError{Field: "id", Reason: "must be positive"}
	}
	entry, err := o.store.Get(ctx, kind, id)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("service: get history entry: %w", err)
	}
	return entry, nil
}

// HistoryStats counts each kind and returns the most recent moods.
func (o *Orchestrator) HistoryStats(ctx context.Context) (HistoryStats, error) {
	moods, err := o.store.Count(ctx, domain.KindMood)
	if err != nil {
		return HistoryStats{}, fmt.Errorf("service: count mood searches: %w", err)
	}
	songs, err := o.store.Count(ctx, domain.KindSong)
	if err != nil {
		return HistoryStats{}, fmt.Errorf("service: count song discoveries: %w", err)
	}
	recent, err := o.store.RecentMoods(ctx, recentMoodCount)
	if err != nil {
		return HistoryStats{}, fmt.Errorf("service: recent moods: %w", err)
	}
	if recent == nil {
		recent = []string{}
	}
	return HistoryStats{MoodSearches: moods, SongDiscoveries: songs, RecentMoods: recent}, nil
}

// ClearHistory deletes every entry of both kinds and returns how many were removed.
func (o *Orchestrator) ClearHistory(ctx context.Context) (int64, error) {
	n, err := o.store.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: clear history: %w", err)
	}
	log := o.logger(ctx)
	log.Info().Int64("deleted", n).Msg("history cleared")
	return n, nil
}
