package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/core/recommend"
)

const moodFeaturesJSON = `{"energy":0.8,"valence":0.9,"danceability":0.7,"tempo":125,"primary_genre":"pop","genres":["pop","dance"],"language":"English","keywords":["sunny","summer"]}`

const evaluationJSON = `{"score":9,"explanation":"Bright, upbeat picks.","best_matches":["A","B"]}`

func newTestOrchestrator(catalog *mockCatalog, llm *mockLLM, store *mockStore, preview ports.PreviewAnalyzer) *Orchestrator {
	deps := Deps{
		Catalog: catalog,
		LLM:     llm,
		Store:   store,
		Rand:    recommend.NewRand(7),
		Logger:  zerolog.Nop(),
	}
	if preview != nil {
		deps.Preview = preview
	}
	return NewOrchestrator(deps, Config{
		Aggregator: recommend.Config{SearchTimeout: time.Second},
	})
}

func everySearch(query string, limit, offset int) ([]domain.Track, error) {
	return tracksFor(query, limit, offset), nil
}

// TestOrchestrator_RecommendByMood verifies the mood flow end to end.
func TestOrchestrator_RecommendByMood(t *testing.T) {
	catalog := &mockCatalog{searchFn: everySearch}
	llm := &mockLLM{replies: map[string]llmReply{
		MoodSystemPrompt:       {text: "Sure! " + moodFeaturesJSON},
		EvaluationSystemPrompt: {text: evaluationJSON},
	}}
	store := &mockStore{}
	o := newTestOrchestrator(catalog, llm, store, nil)

	res, err := o.RecommendByMood(context.Background(), MoodRequest{Mood: "  sunny road trip ", Limit: 5})
	if err != nil {
		t.Fatalf("RecommendByMood: unexpected error: %v", err)
	}
	if !res.Found {
		t.Fatal("expected Found")
	}
	if len(res.Tracks) != 5 {
		t.Fatalf("tracks: got %d, want 5", len(res.Tracks))
	}
	seen := map[string]bool{}
	for _, tr := range res.Tracks {
		if seen[tr.ID] {
			t.Fatalf("duplicate track %s", tr.ID)
		}
		seen[tr.ID] = true
	}
	if res.Mood != "sunny road trip" {
		t.Fatalf("mood not trimmed: %q", res.Mood)
	}
	if res.Features.Energy != 0.8 || res.Features.Tempo != 125 {
		t.Fatalf("features: %+v", res.Features)
	}
	if len(res.Queries) == 0 || res.Queries[0] != "pop English" {
		t.Fatalf("queries: %v", res.Queries)
	}
	if res.Evaluation == nil || res.Evaluation.Score != 9 {
		t.Fatalf("evaluation: %+v", res.Evaluation)
	}
	if res.HistoryID != 1 || len(store.moods) != 1 {
		t.Fatalf("expected one persisted mood search, got id=%d stored=%d", res.HistoryID, len(store.moods))
	}
	if store.moods[0].Mood != "sunny road trip" || len(store.moods[0].Tracks) != 5 {
		t.Fatalf("persisted record mismatch: %+v", store.moods[0])
	}

	moodCalls := llm.callsFor(MoodSystemPrompt)
	if len(moodCalls) != 1 || !moodCalls[0].JSON || moodCalls[0].Temperature != 0.7 {
		t.Fatalf("mood call: %+v", moodCalls)
	}
	if !strings.Contains(moodCalls[0].User, "sunny road trip") {
		t.Fatalf("mood prompt missing mood: %q", moodCalls[0].User)
	}
}

// TestOrchestrator_RecommendByMood_Validation verifies bad input never reaches collaborators.
func TestOrchestrator_RecommendByMood_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  MoodRequest
	}{
		{name: "Empty mood", req: MoodRequest{Mood: "   "}},
		{name: "Mood too long", req: MoodRequest{Mood: strings.Repeat("a", MaxMoodLength+1)}},
		{name: "Negative limit", req: MoodRequest{Mood: "calm", Limit: -1}},
		{name: "Limit above max", req: MoodRequest{Mood: "calm", Limit: MaxLimit + 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			catalog := &mockCatalog{searchFn: everySearch}
			llm := &mockLLM{}
			store := &mockStore{}
			o := newTestOrchestrator(catalog, llm, store, nil)

			_, err := o.RecommendByMood(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(llm.calls) != 0 || catalog.searchCount() != 0 || len(store.moods) != 0 {
				t.Fatal("collaborators should not be called")
			}
		})
	}
}

// TestOrchestrator_RecommendByMood_Failures verifies fatal and soft failures.
func TestOrchestrator_RecommendByMood_Failures(t *testing.T) {
	authErr := errors.New("missing credentials")

	tests := []struct {
		name        string
		catalog     *mockCatalog
		replies     map[string]llmReply
		storeErr    error
		wantErrIs   error
		wantFound   bool
		wantStored  int
		wantScore   float64
		wantMatches int
	}{
		{
			name:      "Auth failure",
			catalog:   &mockCatalog{authErr: authErr, searchFn: everySearch},
			replies:   map[string]llmReply{MoodSystemPrompt: {text: moodFeaturesJSON}},
			wantErrIs: authErr,
		},
		{
			name:      "Language model down",
			catalog:   &mockCatalog{searchFn: everySearch},
			replies:   map[string]llmReply{MoodSystemPrompt: {err: &domain.TransportError{Op: "chat", Err: errors.New("refused")}}},
			wantErrIs: domain.ErrTransport,
		},
		{
			name:      "Unusable features",
			catalog:   &mockCatalog{searchFn: everySearch},
			replies:   map[string]llmReply{MoodSystemPrompt: {text: `{"valence":0.2}`}},
			wantErrIs: domain.ErrValidation,
		},
		{
			name:    "Empty catalog",
			catalog: &mockCatalog{},
			replies: map[string]llmReply{MoodSystemPrompt: {text: moodFeaturesJSON}},
		},
		{
			name:        "Evaluation fails",
			catalog:     &mockCatalog{searchFn: everySearch},
			replies:     map[string]llmReply{MoodSystemPrompt: {text: moodFeaturesJSON}, EvaluationSystemPrompt: {text: "not json"}},
			wantFound:   true,
			wantStored:  1,
			wantScore:   7,
			wantMatches: 2,
		},
		{
			name:        "Audio features unavailable",
			catalog:     &mockCatalog{searchFn: everySearch, featuresErr: errors.New("forbidden")},
			replies:     map[string]llmReply{MoodSystemPrompt: {text: moodFeaturesJSON}, EvaluationSystemPrompt: {text: evaluationJSON}},
			wantFound:   true,
			wantStored:  1,
			wantScore:   9,
			wantMatches: 2,
		},
		{
			name:      "Store failure",
			catalog:   &mockCatalog{searchFn: everySearch},
			replies:   map[string]llmReply{MoodSystemPrompt: {text: moodFeaturesJSON}, EvaluationSystemPrompt: {text: evaluationJSON}},
			storeErr:  &domain.PersistenceError{Op: "insert", Err: errors.New("disk full")},
			wantErrIs: domain.ErrPersistence,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			llm := &mockLLM{replies: tc.replies}
			store := &mockStore{insertErr: tc.storeErr}
			o := newTestOrchestrator(tc.catalog, llm, store, nil)

			res, err := o.RecommendByMood(context.Background(), MoodRequest{Mood: "sunny", Limit: 4})
			if tc.wantErrIs != nil {
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("expected %v, got %v", tc.wantErrIs, err)
				}
				if len(store.moods) != 0 {
					t.Fatal("nothing should be persisted")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Found != tc.wantFound {
				t.Fatalf("found: got %v, want %v", res.Found, tc.wantFound)
			}
			if len(store.moods) != tc.wantStored {
				t.Fatalf("stored: got %d, want %d", len(store.moods), tc.wantStored)
			}
			if !tc.wantFound {
				if res.Tracks == nil || len(res.Tracks) != 0 {
					t.Fatalf("expected empty track slice, got %v", res.Tracks)
				}
				if len(llm.callsFor(EvaluationSystemPrompt)) != 0 {
					t.Fatal("empty result should not be evaluated")
				}
				return
			}
			if res.Evaluation.Score != tc.wantScore {
				t.Fatalf("score: got %v, want %v", res.Evaluation.Score, tc.wantScore)
			}
			if len(res.Evaluation.BestMatches) != tc.wantMatches {
				t.Fatalf("best matches: got %v", res.Evaluation.BestMatches)
			}
		})
	}
}

func TestOrchestrator_AudioFeaturesKeepsPartialResults(t *testing.T) {
	catalog := &mockCatalog{
		features:    map[string]domain.AudioFeatures{"a": {Energy: 0.4, Tempo: 90}},
		featuresErr: &domain.TransportError{Op: "audio features", Err: context.DeadlineExceeded},
	}
	o := newTestOrchestrator(catalog, &mockLLM{}, &mockStore{}, nil)

	got := o.audioFeatures(context.Background(), []domain.Track{{ID: "a"}, {ID: "b"}, {Name: "no id"}})
	if len(got) != 1 || got["a"].Energy != 0.4 {
		t.Fatalf("expected the partial result to survive, got %v", got)
	}
}

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantScore float64
		wantErr   bool
	}{
		{name: "Plain", raw: evaluationJSON, wantScore: 9},
		{name: "Wrapped in prose", raw: "Here: " + evaluationJSON + " Enjoy", wantScore: 9},
		{name: "String score", raw: `{"score":"8","explanation":"ok"}`, wantScore: 8},
		{name: "Clamped high", raw: `{"score":14,"explanation":"ok"}`, wantScore: 10},
		{name: "Clamped low", raw: `{"score":0,"explanation":"ok"}`, wantScore: 1},
		{name: "Missing score", raw: `{"explanation":"ok"}`, wantErr: true},
		{name: "Missing explanation", raw: `{"score":5}`, wantErr: true},
		{name: "Garbage", raw: "no idea", wantErr: true},
		{name: "NaN score", raw: `{"score":"NaN","explanation":"ok"}`, wantErr: true},
		{name: "Infinite score", raw: `{"score":"+Inf","explanation":"ok"}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseEvaluation(tc.raw)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected err=%v, got %v", tc.wantErr, err)
			}
			if tc.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if got.Score != tc.wantScore {
				t.Fatalf("score: got %v, want %v", got.Score, tc.wantScore)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "Short", in: "calm", n: 10, want: "calm"},
		{name: "ASCII", in: "abcdef", n: 3, want: "abc..."},
		{name: "Turkish", in: "şarkılar", n: 5, want: "şarkı..."},
		{name: "Emoji", in: "🎶🎶🎶", n: 2, want: "🎶🎶..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncate(tc.in, tc.n); got != tc.want {
				t.Fatalf("truncate: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFallbackEvaluation(t *testing.T) {
	tracks := []domain.Track{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}, {ID: "3", Name: "Three"}}

	got := FallbackEvaluation("rainy day", tracks)
	if got.Score != 7 {
		t.Fatalf("score: got %v, want 7", got.Score)
	}
	if len(got.BestMatches) != 2 || got.BestMatches[0] != "One" || got.BestMatches[1] != "Two" {
		t.Fatalf("best matches: got %v", got.BestMatches)
	}
	if !strings.Contains(got.Explanation, "rainy day") {
		t.Fatalf("explanation should mention the mood: %q", got.Explanation)
	}

	single := FallbackEvaluation("x", tracks[:1])
	if single.BestMatches == nil || len(single.BestMatches) != 0 {
		t.Fatalf("single track: got %v, want empty", single.BestMatches)
	}
}
