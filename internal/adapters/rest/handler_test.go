package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/services"
	"github.com/ewilliams-labs/moodmix/internal/logging"
)

// --- Mocks ---

type stubService struct {
	moodFn  func(ctx context.Context, req services.MoodRequest) (services.MoodResult, error)
	songFn  func(ctx context.Context, req services.SongRequest) (services.SongResult, error)
	listFn  func(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error)
	entryFn func(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error)
	stats   services.HistoryStats
	cleared int64
	err     error
}

func (s *stubService) RecommendByMood(ctx context.Context, req services.MoodRequest) (services.MoodResult, error) {
	if s.moodFn != nil {
		return s.moodFn(ctx, req)
	}
	return services.MoodResult{}, s.err
}

func (s *stubService) DiscoverBySong(ctx context.Context, req services.SongRequest) (services.SongResult, error) {
	if s.songFn != nil {
		return s.songFn(ctx, req)
	}
	return services.SongResult{}, s.err
}

func (s *stubService) History(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error) {
	if s.listFn != nil {
		return s.listFn(ctx, kind, limit)
	}
	return nil, s.err
}

func (s *stubService) HistoryEntry(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error) {
	if s.entryFn != nil {
		return s.entryFn(ctx, kind, id)
	}
	return domain.HistoryEntry{}, s.err
}

func (s *stubService) HistoryStats(ctx context.Context) (services.HistoryStats, error) {
	return s.stats, s.err
}

func (s *stubService) ClearHistory(ctx context.Context) (int64, error) {
	return s.cleared, s.err
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		check          func(ctx context.Context) error
		expectedStatus int
		expectedBody   string
	}{
		{name: "No check configured", expectedStatus: http.StatusOK, expectedBody: `"status":"ok"`},
		{
			name:           "Healthy store",
			check:          func(ctx context.Context) error { return nil },
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ok"`,
		},
		{
			name:           "Store unreachable",
			check:          func(ctx context.Context) error { return errors.New("database is locked") },
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.check != nil {
				opts = append(opts, WithHealthCheck(tt.check))
			}
			h := NewHandler(&stubService{}, opts...)

			rec := do(t, h, http.MethodGet, "/health", "")
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestHandler_RecommendByMood(t *testing.T) {
	found := func(ctx context.Context, req services.MoodRequest) (services.MoodResult, error) {
		return services.MoodResult{
			Found:     true,
			HistoryID: 3,
			Mood:      req.Mood,
			Tracks:    []domain.Track{{ID: "t1", Name: "Song One"}},
		}, nil
	}
	failWith := func(err error) func(context.Context, services.MoodRequest) (services.MoodResult, error) {
		return func(context.Context, services.MoodRequest) (services.MoodResult, error) {
			return services.MoodResult{}, err
		}
	}

	tests := []struct {
		name           string
		body           string
		moodFn         func(ctx context.Context, req services.MoodRequest) (services.MoodResult, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success",
			body:           `{"mood":"sunny road trip","limit":5}`,
			moodFn:         found,
			expectedStatus: http.StatusOK,
			expectedBody:   `"found":true`,
		},
		{
			name: "Empty result is still 200",
			body: `{"mood":"unknowable"}`,
			moodFn: func(ctx context.Context, req services.MoodRequest) (services.MoodResult, error) {
				return services.MoodResult{Found: false, Mood: req.Mood, Tracks: []domain.Track{}}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"found":false`,
		},
		{
			name:           "Malformed JSON",
			body:           `{"mood":`,
			moodFn:         found,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"BAD_REQUEST"`,
		},
		{
			name:           "Unknown field",
			body:           `{"mood":"calm","colour":"blue"}`,
			moodFn:         found,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"BAD_REQUEST"`,
		},
		{
			name:           "Missing mood",
			body:           `{}`,
			moodFn:         found,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "mood failed required",
		},
		{
			name:           "Negative limit",
			body:           `{"mood":"calm","limit":-2}`,
			moodFn:         found,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "limit failed gte",
		},
		{
			name:           "Service validation error",
			body:           `{"mood":"   "}`,
			moodFn:         failWith(&domain.ValidationError{Field: "mood", Reason: "must not be empty"}),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"VALIDATION_ERROR"`,
		},
		{
			name:           "Language model unreachable",
			body:           `{"mood":"calm"}`,
			moodFn:         failWith(fmt.Errorf("service: mood features: %w", &domain.TransportError{Op: "ollama chat", Err: errors.New("refused")})),
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"code":"UPSTREAM_UNAVAILABLE"`,
		},
		{
			name:           "Missing catalog credentials",
			body:           `{"mood":"calm"}`,
			moodFn:         failWith(fmt.Errorf("service: authenticate: %w", domain.ErrMissingCredentials)),
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"code":"UPSTREAM_UNAVAILABLE"`,
		},
		{
			name:           "Store failure hides details",
			body:           `{"mood":"calm"}`,
			moodFn:         failWith(&domain.PersistenceError{Op: "insert mood search", Err: errors.New("disk I/O error")}),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"message":"internal error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubService{moodFn: tt.moodFn})

			rec := do(t, h, http.MethodPost, "/recommendations/mood", tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d, body: %s", tt.expectedStatus, rec.Code, strings.TrimSpace(rec.Body.String()))
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
		})
	}
}

func TestHandler_DiscoverBySong(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		songErr        error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success",
			body:           `{"title":"Song One","artist":"Artist A","limit":3}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"mood_description":"Similar energy."`,
		},
		{
			name:           "No confident match",
			body:           `{"title":"Song One","artist":"Artist A"}`,
			songErr:        fmt.Errorf("service: resolve seed: %w", ports.NoConfidentMatchError{Title: "Song One", Artist: "Artist A"}),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"code":"NO_CONFIDENT_MATCH"`,
		},
		{
			name:           "Seed not found",
			body:           `{"query":"zzzz"}`,
			songErr:        fmt.Errorf("service: resolve seed: %w", domain.ErrSeedNotFound),
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"NOT_FOUND"`,
		},
		{
			name:           "Nothing to search for",
			body:           `{}`,
			songErr:        &domain.ValidationError{Field: "query", Reason: "one of track_id, title or query is required"},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "one of track_id, title or query is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got services.SongRequest
			svc := &stubService{songFn: func(ctx context.Context, req services.SongRequest) (services.SongResult, error) {
				got = req
				if tt.songErr != nil {
					return services.SongResult{}, tt.songErr
				}
				return services.SongResult{Found: true, MoodDescription: "Similar energy."}, nil
			}}
			h := NewHandler(svc)

			rec := do(t, h, http.MethodPost, "/recommendations/similar", tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d, body: %s", tt.expectedStatus, rec.Code, strings.TrimSpace(rec.Body.String()))
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
			if tt.name == "Success" && (got.Title != "Song One" || got.Artist != "Artist A" || got.Limit != 3) {
				t.Errorf("request not decoded: %+v", got)
			}
		})
	}
}

func TestHandler_ListHistory(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedKind   domain.HistoryKind
		expectedLimit  int
	}{
		{name: "Defaults", target: "/history", expectedStatus: http.StatusOK, expectedKind: "", expectedLimit: defaultHistoryLimit},
		{name: "Kind and limit", target: "/history?kind=song&limit=5", expectedStatus: http.StatusOK, expectedKind: domain.KindSong, expectedLimit: 5},
		{name: "Limit not a number", target: "/history?limit=lots", expectedStatus: http.StatusBadRequest},
		{name: "Unknown kind", target: "/history?kind=podcast", expectedStatus: http.StatusBadRequest, expectedKind: "podcast", expectedLimit: defaultHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotKind  domain.HistoryKind
				gotLimit int
				called   bool
			)
			svc := &stubService{listFn: func(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error) {
				called = true
				gotKind, gotLimit = kind, limit
				if kind != "" && kind != domain.KindAll && !kind.Valid() {
					return nil, &domain.ValidationError{Field: "kind", Reason: "unknown history kind"}
				}
				return []domain.HistoryEntry{{ID: 1, Kind: domain.KindMood, CreatedAt: time.Unix(0, 1).UTC(), Mood: &domain.MoodSearch{Mood: "calm"}}}, nil
			}}
			h := NewHandler(svc)

			rec := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d, body: %s", tt.expectedStatus, rec.Code, strings.TrimSpace(rec.Body.String()))
			}
			if tt.expectedLimit == 0 {
				if called {
					t.Error("service should not be called for a malformed limit")
				}
				return
			}
			if gotKind != tt.expectedKind || gotLimit != tt.expectedLimit {
				t.Errorf("expected kind %q limit %d, got kind %q limit %d", tt.expectedKind, tt.expectedLimit, gotKind, gotLimit)
			}
			if rec.Code != http.StatusOK {
				return
			}

			var body historyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Count != 1 || len(body.Entries) != 1 || body.Entries[0].Mood.Mood != "calm" {
				t.Errorf("unexpected body: %+v", body)
			}
		})
	}
}

func TestHandler_GetHistoryEntry(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		expectedStatus int
	}{
		{name: "Found", target: "/history/mood/7", expectedStatus: http.StatusOK},
		{name: "Missing", target: "/history/song/99", expectedStatus: http.StatusNotFound},
		{name: "Bad id", target: "/history/mood/seven", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{entryFn: func(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error) {
				if kind == domain.KindMood && id == 7 {
					return domain.HistoryEntry{ID: 7, Kind: kind, Mood: &domain.MoodSearch{Mood: "calm"}}, nil
				}
				return domain.HistoryEntry{}, fmt.Errorf("sqlite: %s entry %d: %w", kind, id, domain.ErrNotFound)
			}}
			h := NewHandler(svc)

			rec := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d, body: %s", tt.expectedStatus, rec.Code, strings.TrimSpace(rec.Body.String()))
			}
		})
	}
}

func TestHandler_HistoryStatsAndClear(t *testing.T) {
	svc := &stubService{
		stats:   services.HistoryStats{MoodSearches: 2, SongDiscoveries: 1, RecentMoods: []string{"calm", "angry"}},
		cleared: 3,
	}
	h := NewHandler(svc)

	rec := do(t, h, http.MethodGet, "/history/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	var stats services.HistoryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.MoodSearches != 2 || stats.SongDiscoveries != 1 || len(stats.RecentMoods) != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rec = do(t, h, http.MethodDelete, "/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"deleted":3`) {
		t.Errorf("clear: unexpected body %q", rec.Body.String())
	}

	svc.err = &domain.PersistenceError{Op: "clear history", Err: errors.New("locked")}
	rec = do(t, h, http.MethodDelete, "/history", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("clear failure: expected 500, got %d", rec.Code)
	}
}

func TestHandler_RequestID(t *testing.T) {
	var seen string
	svc := &stubService{moodFn: func(ctx context.Context, req services.MoodRequest) (services.MoodResult, error) {
		seen = logging.RequestIDFromContext(ctx)
		return services.MoodResult{Found: true}, nil
	}}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/recommendations/mood", strings.NewReader(`{"mood":"calm"}`))
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}
	if seen != "req-123" {
		t.Errorf("service saw request id %q", seen)
	}

	rec = do(t, h, http.MethodPost, "/recommendations/mood", `{"mood":"calm"}`)
	generated := rec.Header().Get(requestIDHeader)
	if generated == "" || generated != seen {
		t.Errorf("expected generated request id to reach the service, header %q service %q", generated, seen)
	}
}

func TestHandler_Metrics(t *testing.T) {
	h := NewHandler(&stubService{})

	// Serve one request so the API histogram has a sample.
	do(t, h, http.MethodGet, "/health", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "moodmix_api_request_duration_seconds") {
		t.Error("expected API request histogram in /metrics output")
	}
}

func TestHandler_UnknownRoute(t *testing.T) {
	h := NewHandler(&stubService{})
	rec := do(t, h, http.MethodGet, "/playlists", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
