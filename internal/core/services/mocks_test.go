package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

type mockCatalog struct {
	mu sync.Mutex

	authErr     error
	searchFn    func(query string, limit, offset int) ([]domain.Track, error)
	tracks      map[string]domain.Track
	lookupErr   error
	features    map[string]domain.AudioFeatures
	featuresErr error
	found       domain.Track
	findErr     error

	searches []string
	finds    int
}

func (m *mockCatalog) Authenticate(ctx context.Context) error { return m.authErr }

func (m *mockCatalog) Search(ctx context.Context, query string, limit, offset int) ([]domain.Track, error) {
	m.mu.Lock()
	m.searches = append(m.searches, query)
	m.mu.Unlock()
	if m.searchFn == nil {
		return nil, nil
	}
	return m.searchFn(query, limit, offset)
}

func (m *mockCatalog) LookupTrack(ctx context.Context, id string) (domain.Track, error) {
	if m.lookupErr != nil {
		return domain.Track{}, m.lookupErr
	}
	t, ok := m.tracks[id]
	if !ok {
		return domain.Track{}, fmt.Errorf("spotify: track %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (m *mockCatalog) AudioFeatures(ctx context.Context, ids []string) (map[string]domain.AudioFeatures, error) {
	out := make(map[string]domain.AudioFeatures)
	for _, id := range ids {
		if af, ok := m.features[id]; ok {
			out[id] = af
		}
	}
	return out, m.featuresErr
}

func (m *mockCatalog) FindTrack(ctx context.Context, title, artist string) (domain.Track, error) {
	m.finds++
	return m.found, m.findErr
}

func (m *mockCatalog) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

var _ ports.Catalog = (*mockCatalog)(nil)

type llmReply struct {
	text string
	err  error
}

// mockLLM answers by system prompt.
type mockLLM struct {
	mu      sync.Mutex
	replies map[string]llmReply
	calls   []ports.CompletionRequest
}

func (m *mockLLM) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	r, ok := m.replies[req.System]
	if !ok {
		return "", errors.New("mock llm: no reply configured")
	}
	return r.text, r.err
}

func (m *mockLLM) callsFor(system string) []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.CompletionRequest
	for _, c := range m.calls {
		if c.System == system {
			out = append(out, c)
		}
	}
	return out
}

type mockStore struct {
	moods     []domain.MoodSearch
	songs     []domain.SongDiscovery
	insertErr error
	entries   []domain.HistoryEntry
	listKind  domain.HistoryKind
	listLimit int
	combined  bool
	getErr    error
	cleared   int64
}

func (m *mockStore) InsertMoodSearch(ctx context.Context, rec domain.MoodSearch) (domain.HistoryEntry, error) {
	if m.insertErr != nil {
		return domain.HistoryEntry{}, m.insertErr
	}
	m.moods = append(m.moods, rec)
	return domain.HistoryEntry{ID: int64(len(m.moods)), Kind: domain.KindMood, CreatedAt: time.Now(), Mood: &rec}, nil
}

func (m *mockStore) InsertSongDiscovery(ctx context.Context, rec domain.SongDiscovery) (domain.HistoryEntry, error) {
	if m.insertErr != nil {
		return domain.HistoryEntry{}, m.insertErr
	}
	m.songs = append(m.songs, rec)
	return domain.HistoryEntry{ID: int64(len(m.songs)), Kind: domain.KindSong, CreatedAt: time.Now(), Discovery: &rec}, nil
}

func (m *mockStore) List(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error) {
	m.listKind, m.listLimit = kind, limit
	return m.entries, nil
}

func (m *mockStore) ListCombined(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	m.combined, m.listLimit = true, limit
	return m.entries, nil
}

func (m *mockStore) Get(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error) {
	if m.getErr != nil {
		return domain.HistoryEntry{}, m.getErr
	}
	for _, e := range m.entries {
		if e.Kind == kind && e.ID == id {
			return e, nil
		}
	}
	return domain.HistoryEntry{}, domain.ErrNotFound
}

func (m *mockStore) Count(ctx context.Context, kind domain.HistoryKind) (int64, error) {
	if kind == domain.KindMood {
		return int64(len(m.moods)), nil
	}
	return int64(len(m.songs)), nil
}

func (m *mockStore) RecentMoods(ctx context.Context, n int) ([]string, error) {
	var out []string
	for i := len(m.moods) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.moods[i].Mood)
	}
	return out, nil
}

func (m *mockStore) ClearAll(ctx context.Context) (int64, error) {
	n := int64(len(m.moods) + len(m.songs))
	m.moods, m.songs = nil, nil
	m.cleared += n
	return n, nil
}

type mockPreview struct {
	energy float64
	err    error
	urls   []string
}

func (m *mockPreview) Energy(ctx context.Context, previewURL string) (float64, error) {
	m.urls = append(m.urls, previewURL)
	return m.energy, m.err
}

// tracksFor returns n distinct tracks whose ids are derived from query and offset.
func tracksFor(query string, n, offset int) []domain.Track {
	out := make([]domain.Track, n)
	for i := range out {
		id := fmt.Sprintf("%s#%d", query, offset+i)
		out[i] = domain.Track{
			ID:      id,
			Name:    "Song " + id,
			Artists: []domain.Artist{{Name: "Artist " + query}},
		}
	}
	return out
}
