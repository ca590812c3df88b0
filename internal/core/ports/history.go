package ports

import (
	"context"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// HistoryStore is an append-only log of mood searches and song discoveries.
// List operations return newest first; a limit of 0 means no limit.
type HistoryStore interface {
	InsertMoodSearch(ctx context.Context, rec domain.MoodSearch) (domain.HistoryEntry, error)
	InsertSongDiscovery(ctx context.Context, rec domain.SongDiscovery) (domain.HistoryEntry, error)
	List(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error)
	ListCombined(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	Get(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error)
	Count(ctx context.Context, kind domain.HistoryKind) (int64, error)
	RecentMoods(ctx context.Context, n int) ([]string, error)
	ClearAll(ctx context.Context) (int64, error)
}

// PreviewAnalyzer estimates track energy from a short audio preview.
type PreviewAnalyzer interface {
	Energy(ctx context.Context, previewURL string) (float64, error)
}
