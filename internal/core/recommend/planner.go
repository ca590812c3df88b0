// Package recommend turns a feature vector into prioritized catalog searches
// and samples the candidates those searches return.
package recommend

import (
	"strings"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

const (
	// MaxQueries is the number of planned queries retained for execution.
	MaxQueries = 8
	// MaxSimilarQueries bounds the seed-track plan.
	MaxSimilarQueries = 4
	// DefaultQuery is planned when no rule produced anything.
	DefaultQuery = "pop music"
)

const (
	highThreshold = 0.6
	lowThreshold  = 0.4
)

var turkishLanguages = map[string]struct{}{
	"turkish": {},
	"türkçe":  {},
	"turkce":  {},
}

// quadrant returns the two energy/valence descriptors, or nil when energy or
// valence falls in the neutral band.
func quadrant(energy, valence float64) []string {
	switch {
	case energy > highThreshold && valence > highThreshold:
		return []string{"upbeat", "energetic"}
	case energy > highThreshold && valence <= lowThreshold:
		return []string{"powerful", "intense"}
	case energy <= lowThreshold && valence > highThreshold:
		return []string{"chill", "peaceful"}
	case energy <= lowThreshold && valence <= lowThreshold:
		return []string{"emotional", "sad"}
	default:
		return nil
	}
}

// texture returns the acousticness and mode descriptors.
func texture(f domain.FeatureVector) []string {
	var out []string
	if f.Acousticness > 0.7 {
		out = append(out, "acoustic")
	} else if f.Acousticness < 0.3 {
		out = append(out, "electronic")
	}
	if f.Mode == 0 {
		out = append(out, "melancholic")
	}
	return out
}

// MoodDescriptors derives the short mood keywords for f, quadrant pair first.
func MoodDescriptors(f domain.FeatureVector) []string {
	return append(quadrant(f.Energy, f.Valence), texture(f)...)
}

// IsTurkish reports whether language names Turkish, in English or Turkish spelling.
func IsTurkish(language string) bool {
	_, ok := turkishLanguages[strings.ToLower(strings.TrimSpace(language))]
	return ok
}

// Plan builds the ordered catalog queries for f, highest priority first.
// The result is never empty and holds at most MaxQueries entries.
func Plan(f domain.FeatureVector) []string {
	descriptors := MoodDescriptors(f)
	genre := strings.TrimSpace(f.PrimaryGenre)
	language := strings.TrimSpace(f.Language)
	theme := strings.TrimSpace(f.LyricsTheme)

	var queries []string
	add := func(parts ...string) {
		queries = append(queries, strings.Join(parts, " "))
	}

	if genre != "" && language != "" {
		if IsTurkish(language) {
			add(genre, "türkçe")
			add(genre, "turkish")
			add("türkçe", genre)
		} else {
			add(genre, language)
		}
	}

	if genre != "" && len(descriptors) > 0 {
		add(genre, descriptors[0])
		if len(descriptors) > 1 {
			add(genre, descriptors[1])
		}
	}

	if genre != "" {
		add(genre)
	}

	if genre != "" && theme != "" {
		add(genre, theme)
	}

	if len(f.LyricsKeywords) > 0 && genre != "" {
		add(genre, firstTwo(f.LyricsKeywords))
	}

	if theme != "" {
		add(theme)
	}

	if len(f.Genres) > 1 {
		if len(descriptors) > 0 {
			add(f.Genres[1], descriptors[0])
		} else {
			add(f.Genres[1])
		}
	}

	if len(f.Keywords) > 0 {
		add(firstTwo(f.Keywords))
	}

	if len(descriptors) > 0 {
		add(firstTwo(descriptors))
	}

	if len(queries) == 0 {
		return []string{DefaultQuery}
	}
	if len(queries) > MaxQueries {
		queries = queries[:MaxQueries]
	}
	return queries
}

// FallbackQuery is the single broad search issued when every planned query came back empty.
func FallbackQuery(f domain.FeatureVector) string {
	if g := strings.TrimSpace(f.PrimaryGenre); g != "" {
		return g
	}
	if len(f.Genres) > 0 && strings.TrimSpace(f.Genres[0]) != "" {
		return strings.TrimSpace(f.Genres[0])
	}
	return domain.DefaultPrimaryGenre
}

// PlanSimilar builds the queries for a seed track: its first two artists, then
// the mood pair and texture descriptors when features are known.
func PlanSimilar(seed domain.Track, f *domain.FeatureVector) []string {
	var queries []string
	for _, name := range seed.ArtistNames() {
		if len(queries) == 2 {
			break
		}
		queries = append(queries, "artist:"+name)
	}

	if f != nil {
		if pair := quadrant(f.Energy, f.Valence); len(pair) > 0 {
			queries = append(queries, strings.Join(pair, " "))
		}
		queries = append(queries, texture(*f)...)
	}

	if len(queries) > MaxSimilarQueries {
		queries = queries[:MaxSimilarQueries]
	}
	return queries
}

func firstTwo(items []string) string {
	if len(items) > 2 {
		items = items[:2]
	}
	return strings.Join(items, " ")
}
