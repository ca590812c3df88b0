package spotify

import "strings"

const (
	// searchMatchThreshold is the combined artist+title score a candidate must reach.
	searchMatchThreshold = 0.8

	minTitleSimilarity   = 0.65
	minArtistSimilarity  = 0.55
	minOverallSimilarity = 0.70
)

// pairScore compares the "artist title" keys of a request and a candidate.
func pairScore(title, artist, candidateTitle, candidateArtist string) float64 {
	target := strings.TrimSpace(comparisonKey(artist) + " " + titleKey(title))
	actual := strings.TrimSpace(comparisonKey(candidateArtist) + " " + titleKey(candidateTitle))
	if target == "" || actual == "" {
		return 0
	}
	return similarity(target, actual)
}

// fieldScore weighs title over artist and applies per-field floors. The artist side
// takes the best of the full credit line and each credited artist alone.
func fieldScore(title, artist string, candidate spotifyTrack) (float64, bool) {
	wantTitle, wantArtist := titleKey(title), comparisonKey(artist)
	gotTitle := titleKey(candidate.Name)
	if wantTitle == "" || wantArtist == "" || gotTitle == "" || len(candidate.Artists) == 0 {
		return 0, false
	}

	titleSim := similarity(wantTitle, gotTitle)
	artistSim := bestArtistSimilarity(wantArtist, candidate)
	score := 0.7*titleSim + 0.3*artistSim

	if titleSim < minTitleSimilarity || artistSim < minArtistSimilarity || score < minOverallSimilarity {
		return score, false
	}

	return score, true
}

func bestArtistSimilarity(requested string, candidate spotifyTrack) float64 {
	best := similarity(requested, comparisonKey(joinArtistNames(candidate)))
	for _, a := range candidate.Artists {
		if s := similarity(requested, comparisonKey(a.Name)); s > best {
			best = s
		}
	}
	return best
}

// bestMatch returns the index and score of the best accepted candidate, or -1.
// A combined-key match wins over the per-field fallback; the first of equal scores is kept.
func bestMatch(title, artist string, candidates []spotifyTrack) (int, float64) {
	idx, best := -1, 0.0
	for i, c := range candidates {
		if s := pairScore(title, artist, c.Name, joinArtistNames(c)); s >= searchMatchThreshold && s > best {
			idx, best = i, s
		}
	}
	if idx != -1 {
		return idx, best
	}

	for i, c := range candidates {
		if s, ok := fieldScore(title, artist, c); ok && s > best {
			idx, best = i, s
		}
	}
	return idx, best
}

func similarity(a string, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(a string, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		copy(prev, curr)
	}

	return prev[len(rb)]
}

func joinArtistNames(track spotifyTrack) string {
	parts := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		parts = append(parts, artist.Name)
	}
	return strings.Join(parts, " ")
}
