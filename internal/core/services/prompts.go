package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// Sampling temperatures per call.
const (
	moodTemperature       = 0.7
	analysisTemperature   = 0.5
	evaluationTemperature = 0.7
	similarityTemperature = 0.7
)

// evaluatedTracks is how many leading tracks are shown to the evaluator.
const evaluatedTracks = 5

// MoodSystemPrompt asks the model for a feature vector describing a mood.
const MoodSystemPrompt = `Return only a valid JSON object with these fields:
- energy, valence, danceability (0-1): energy level, happiness, danceability
- acousticness (0-1): acoustic vs electronic (0=electronic, 1=acoustic)
- instrumentalness (0-1): vocal content (0=lots of vocals, 1=no vocals/instrumental)
- speechiness (0-1): spoken words (0=music, 0.33-0.66=rap, >0.66=podcast/speech)
- loudness (-60 to 0): volume in dB (typical: -60=very quiet, -5=loud)
- mode (0 or 1): minor=0, major=1 (sad=minor, happy=major)
- tempo (60-180): beats per minute
- primary_genre: the main genre (pop, rock, rap, jazz, hip-hop, indie, classical, electronic, folk, r&b, ...)
- genres: array of 2-3 music genre strings, primary_genre first
- language: the language the songs should be in (English, Turkish, Spanish, ...)
- lyrics_theme: main lyrical theme (love, heartbreak, party, motivation, nostalgia, ...)
- lyrics_keywords: array of 2-3 lyric words for search
- keywords: array of 3-5 mood/style descriptive words for search
- artist_style: a brief artist style description`

// MoodUserPrompt wraps the user's free-text mood.
func MoodUserPrompt(mood string) string {
	return fmt.Sprintf("Mood: %q", strings.TrimSpace(mood))
}

// TrackAnalysisSystemPrompt asks the model to read a seed track into a feature vector.
const TrackAnalysisSystemPrompt = `You are a music analyst and recommendation expert. From a song's title, artist and audio features you infer all of its characteristics: genre, language and lyrical theme.

Rules:
1. Genre (primary_genre) and language matter most; determine them carefully.
2. Infer the likely lyrical theme from the title and the artist (love, heartbreak, party, motivation, sadness, nostalgia, ...).
3. The lyrics theme is used for search at medium priority.

Return a JSON object with these fields:
- energy, valence, danceability (0-1)
- acousticness (0-1): 0=electronic, 1=acoustic
- instrumentalness (0-1): 0=many vocals, 1=instrumental
- speechiness (0-1): 0=music, 0.33-0.66=rap, >0.66=podcast
- loudness (-60 to 0): dB
- mode (0 or 1): minor=0, major=1
- tempo (60-180): beats per minute
- primary_genre: the main genre of the song
- genres: 2-3 genres, primary_genre first
- language: the language of the song
- lyrics_theme: main lyrical theme
- lyrics_keywords: 2-3 lyric words for search
- keywords: 3-5 general search words describing mood and style
- artist_style: short artist style description
- explanation: 2-3 sentences on the song's mood, genre, language and lyrical theme and why these values were chosen`

// TrackAnalysisPrompt describes a seed track and its audio features.
func TrackAnalysisPrompt(track domain.Track, af domain.AudioFeatures) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Song: %q - %s\n\n", track.Name, track.ArtistLine())
	b.WriteString("Audio features:\n")
	fmt.Fprintf(&b, "- Energy: %s (0=calm, 1=energetic)\n", percent(af.Energy))
	fmt.Fprintf(&b, "- Valence: %s (0=sad, 1=happy)\n", percent(af.Valence))
	fmt.Fprintf(&b, "- Danceability: %s\n", percent(af.Danceability))
	fmt.Fprintf(&b, "- Acousticness: %s (0=electronic, 1=acoustic)\n", percent(af.Acousticness))
	fmt.Fprintf(&b, "- Instrumentalness: %s\n", percent(af.Instrumentalness))
	fmt.Fprintf(&b, "- Speechiness: %s\n", percent(af.Speechiness))
	fmt.Fprintf(&b, "- Loudness: %.1f dB\n", af.Loudness)
	fmt.Fprintf(&b, "- Tempo: %.0f BPM\n", af.Tempo)
	fmt.Fprintf(&b, "- Mode: %s\n\n", modeLabel(af.Mode))
	b.WriteString("Infer the likely lyrical theme from the title and artist. ")
	b.WriteString("Analyse the mood, musical character, genre, language and lyrics theme of this song ")
	b.WriteString("and choose the ideal parameters for finding songs like it.")
	return b.String()
}

// EvaluationSystemPrompt sets the evaluator's voice.
const EvaluationSystemPrompt = "You are a music expert. Talk to the user in a warm, friendly and personal tone."

type trackSummary struct {
	Name       string          `json:"name"`
	Artist     string          `json:"artist"`
	Popularity int             `json:"popularity"`
	Features   *summaryFeature `json:"features,omitempty"`
}

type summaryFeature struct {
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Danceability float64 `json:"danceability"`
	Tempo        float64 `json:"tempo"`
	Acousticness float64 `json:"acousticness"`
	Mode         string  `json:"mode"`
}

// EvaluationPrompt asks for a score, an explanation and the best matches among the first tracks.
func EvaluationPrompt(mood string, f domain.FeatureVector, tracks []domain.Track, audio map[string]domain.AudioFeatures) string {
	summaries := make([]trackSummary, 0, evaluatedTracks)
	for i, t := range tracks {
		if i == evaluatedTracks {
			break
		}
		s := trackSummary{Name: t.Name, Artist: t.ArtistLine(), Popularity: t.Popularity}
		if af, ok := audio[t.ID]; ok {
			s.Features = &summaryFeature{
				Energy:       round(af.Energy, 2),
				Valence:      round(af.Valence, 2),
				Danceability: round(af.Danceability, 2),
				Tempo:        round(af.Tempo, 0),
				Acousticness: round(af.Acousticness, 2),
				Mode:         strings.ToLower(modeName(af.Mode)),
			}
		}
		summaries = append(summaries, s)
	}
	listing, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		listing = []byte("[]")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user's mood: %q\n\n", strings.TrimSpace(mood))
	b.WriteString("Target music features:\n")
	fmt.Fprintf(&b, "- Energy: %s\n", percent(f.Energy))
	fmt.Fprintf(&b, "- Valence: %s\n", percent(f.Valence))
	fmt.Fprintf(&b, "- Danceability: %s\n", percent(f.Danceability))
	fmt.Fprintf(&b, "- Tempo: %.0f BPM\n", f.Tempo)
	fmt.Fprintf(&b, "- Acousticness: %s\n", percent(f.Acousticness))
	fmt.Fprintf(&b, "- Mode: %s\n\n", modeLabel(f.Mode))
	fmt.Fprintf(&b, "First %d recommended songs:\n%s\n\n", len(summaries), listing)
	b.WriteString("Your task:\n")
	b.WriteString("1. Do these songs fit the user's mood? (score 1-10)\n")
	b.WriteString("2. Why did we recommend them? (2-3 sentences, warm and personal)\n")
	b.WriteString("3. Which songs fit best? (name them)\n\n")
	b.WriteString("Answer in JSON:\n")
	b.WriteString(`{"score": <1-10>, "explanation": "<text>", "best_matches": ["<song 1>", "<song 2>"]}`)
	return b.String()
}

// SimilaritySystemPrompt sets the voice for the seed-song description.
const SimilaritySystemPrompt = "You are a music expert. You explain a song's mood and what similar songs share, based on its audio features."

// SimilarityPrompt asks for a short description of the seed and why the similar tracks were chosen.
func SimilarityPrompt(track domain.Track, f domain.FeatureVector, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source song: %q - %s\n\n", track.Name, track.ArtistLine())
	b.WriteString("Audio features:\n")
	fmt.Fprintf(&b, "- Energy: %s (0=calm, 1=energetic)\n", percent(f.Energy))
	fmt.Fprintf(&b, "- Valence: %s (0=sad, 1=happy)\n", percent(f.Valence))
	fmt.Fprintf(&b, "- Danceability: %s\n", percent(f.Danceability))
	fmt.Fprintf(&b, "- Acousticness: %s (0=electronic, 1=acoustic)\n", percent(f.Acousticness))
	fmt.Fprintf(&b, "- Tempo: %.0f BPM\n", f.Tempo)
	fmt.Fprintf(&b, "- Mode: %s\n\n", modeLabel(f.Mode))
	b.WriteString("Describe the mood and musical character of this song in 2-3 sentences. ")
	fmt.Fprintf(&b, "Say why the %d similar songs found were chosen.", count)
	return b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func modeName(mode int) string {
	if mode == 1 {
		return "Major"
	}
	return "Minor"
}

func modeLabel(mode int) string {
	if mode == 1 {
		return "Major (happy)"
	}
	return "Minor (melancholic)"
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
