package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Feature ranges.
const (
	MinUnit     = 0.0
	MaxUnit     = 1.0
	MinLoudness = -60.0
	MaxLoudness = 0.0
	MinTempo    = 60.0
	MaxTempo    = 180.0
)

// Defaults applied when the language model leaves a field out.
const (
	DefaultAcousticness     = 0.5
	DefaultInstrumentalness = 0.0
	DefaultSpeechiness      = 0.0
	DefaultLoudness         = -10.0
	DefaultMode             = 1
	DefaultPrimaryGenre     = "pop"
	DefaultLanguage         = "English"
)

// RequiredFeatureFields must be present in every language-model payload.
var RequiredFeatureFields = []string{"energy", "valence", "danceability", "tempo"}

// FeatureVector is the canonical, range-bound description of the music a user wants.
// It is only constructed through ParseFeatures / NormalizeFeatures so every bounded
// field is already clamped.
type FeatureVector struct {
	Energy           float64  `json:"energy"`
	Valence          float64  `json:"valence"`
	Danceability     float64  `json:"danceability"`
	Acousticness     float64  `json:"acousticness"`
	Instrumentalness float64  `json:"instrumentalness"`
	Speechiness      float64  `json:"speechiness"`
	Loudness         float64  `json:"loudness"`
	Mode             int      `json:"mode"`
	Tempo            float64  `json:"tempo"`
	PrimaryGenre     string   `json:"primary_genre"`
	Genres           []string `json:"genres"`
	Language         string   `json:"language"`
	LyricsTheme      string   `json:"lyrics_theme"`
	LyricsKeywords   []string `json:"lyrics_keywords"`
	Keywords         []string `json:"keywords"`
	ArtistStyle      string   `json:"artist_style"`
}

// DefaultFeatureVector returns a neutral vector with every optional field at its default.
func DefaultFeatureVector() FeatureVector {
	return FeatureVector{
		Energy:           0.5,
		Valence:          0.5,
		Danceability:     0.5,
		Acousticness:     DefaultAcousticness,
		Instrumentalness: DefaultInstrumentalness,
		Speechiness:      DefaultSpeechiness,
		Loudness:         DefaultLoudness,
		Mode:             DefaultMode,
		Tempo:            120,
		PrimaryGenre:     DefaultPrimaryGenre,
		Genres:           []string{DefaultPrimaryGenre},
		Language:         DefaultLanguage,
		LyricsKeywords:   []string{},
		Keywords:         []string{},
	}
}

// TrackAnalysis is the language model's reading of a seed track.
type TrackAnalysis struct {
	Features    FeatureVector `json:"features"`
	Explanation string        `json:"explanation"`
}

// ParseFeatures decodes and normalizes a language-model response.
// The response may wrap the JSON object in prose; in that case the substring between
// the first '{' and the last '}' is parsed instead.
func ParseFeatures(raw string) (FeatureVector, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return FeatureVector{}, err
	}
	return NormalizeFeatures(obj)
}

// ParseTrackAnalysis is ParseFeatures plus the optional free-text "explanation" field.
func ParseTrackAnalysis(raw string) (TrackAnalysis, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return TrackAnalysis{}, err
	}
	features, err := NormalizeFeatures(obj)
	if err != nil {
		return TrackAnalysis{}, err
	}
	explanation, _ := obj["explanation"].(string)
	return TrackAnalysis{Features: features, Explanation: strings.TrimSpace(explanation)}, nil
}

// NormalizeFeatures validates a loosely typed mapping and clamps it into a FeatureVector.
func NormalizeFeatures(raw map[string]any) (FeatureVector, error) {
	var missing []string
	for _, field := range RequiredFeatureFields {
		if v, ok := raw[field]; !ok || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return FeatureVector{}, &MissingFieldError{Fields: missing}
	}

	f := FeatureVector{}
	numbers := []struct {
		field string
		dst   *float64
		def   float64
		lo    float64
		hi    float64
	}{
		{"energy", &f.Energy, 0, MinUnit, MaxUnit},
		{"valence", &f.Valence, 0, MinUnit, MaxUnit},
		{"danceability", &f.Danceability, 0, MinUnit, MaxUnit},
		{"acousticness", &f.Acousticness, DefaultAcousticness, MinUnit, MaxUnit},
		{"instrumentalness", &f.Instrumentalness, DefaultInstrumentalness, MinUnit, MaxUnit},
		{"speechiness", &f.Speechiness, DefaultSpeechiness, MinUnit, MaxUnit},
		{"loudness", &f.Loudness, DefaultLoudness, MinLoudness, MaxLoudness},
		{"tempo", &f.Tempo, 0, MinTempo, MaxTempo},
	}
	for _, n := range numbers {
		v, err := floatField(raw, n.field, n.def)
		if err != nil {
			return FeatureVector{}, err
		}
		*n.dst = clamp(v, n.lo, n.hi)
	}

	mode, err := floatField(raw, "mode", DefaultMode)
	if err != nil {
		return FeatureVector{}, err
	}
	if mode > 0 {
		f.Mode = 1
	}

	f.PrimaryGenre = stringField(raw, "primary_genre", DefaultPrimaryGenre)
	f.Language = stringField(raw, "language", DefaultLanguage)
	f.LyricsTheme = stringField(raw, "lyrics_theme", "")
	f.ArtistStyle = stringField(raw, "artist_style", "")
	f.Genres = listField(raw, "genres", []string{DefaultPrimaryGenre})
	f.LyricsKeywords = listField(raw, "lyrics_keywords", []string{})
	f.Keywords = listField(raw, "keywords", []string{})

	return f, nil
}

func decodeObject(raw string) (map[string]any, error) {
	var obj map[string]any
	firstErr := json.Unmarshal([]byte(raw), &obj)
	if firstErr == nil && obj != nil {
		return obj, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		if firstErr == nil {
			firstErr = fmt.Errorf("payload is not a JSON object")
		}
		return nil, &ValidationError{Field: "payload", Reason: "no JSON object found", Err: firstErr}
	}

	obj = nil
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: "malformed JSON object", Err: err}
	}
	if obj == nil {
		return nil, &ValidationError{Field: "payload", Reason: "payload is not a JSON object"}
	}
	return obj, nil
}

func floatField(raw map[string]any, field string, def float64) (float64, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, &InvalidFieldError{Field: field, Value: v}
		}
		return parsed, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(parsed) {
			return 0, &InvalidFieldError{Field: field, Value: v}
		}
		return parsed, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &InvalidFieldError{Field: field, Value: v}
	}
}

func stringField(raw map[string]any, field string, def string) string {
	v, ok := raw[field]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func listField(raw map[string]any, field string, def []string) []string {
	v, ok := raw[field]
	if !ok || v == nil {
		return def
	}
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(item))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), items...)
	case string:
		// Some models answer with a comma separated string instead of an array.
		out := []string{}
		for _, part := range strings.Split(items, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return def
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
