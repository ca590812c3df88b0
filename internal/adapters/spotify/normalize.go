package spotify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// noiseTokens are edition and credit markers ignored when comparing titles.
var noiseTokens = map[string]struct{}{
	"clean":      {},
	"deluxe":     {},
	"edition":    {},
	"edit":       {},
	"explicit":   {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
	"live":       {},
	"mix":        {},
	"mono":       {},
	"radio":      {},
	"remaster":   {},
	"remastered": {},
	"stereo":     {},
	"version":    {},
}

// comparisonKey reduces a title or artist to lower-case ASCII-folded words, dropping
// bracketed segments, punctuation and noise tokens. "Beyoncé (Live) - Halo" becomes "beyonce halo".
func comparisonKey(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	words := make([]string, 0, 8)
	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if _, drop := noiseTokens[w]; !drop {
			words = append(words, w)
		}
	}

	depth := 0
	for _, r := range foldDiacritics(strings.ToLower(input)) {
		switch {
		case r == '(' || r == '[':
			flush()
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return strings.Join(words, " ")
}

// titleKey is comparisonKey for track names. It also cuts " - Remastered 2011" style
// tails, where the year would otherwise survive as a word.
func titleKey(title string) string {
	return comparisonKey(trimEditionTail(title))
}

// trimEditionTail removes trailing " - ..." segments that carry an edition marker.
func trimEditionTail(s string) string {
	s = strings.TrimSpace(s)
	for {
		idx := strings.LastIndex(s, " - ")
		if idx == -1 || !hasNoiseToken(s[idx+3:]) {
			return s
		}
		s = strings.TrimSpace(s[:idx])
	}
}

func hasNoiseToken(s string) bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, ok := noiseTokens[w]; ok {
			return true
		}
	}
	return false
}

// foldDiacritics strips combining marks so "é" compares equal to "e".
// Input that cannot be transformed is returned unchanged.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// fieldQuery builds the track/artist field filter for a scored lookup. A side whose key
// is empty (for example a title made only of brackets) falls back to its trimmed input.
func fieldQuery(title, artist string) string {
	t := comparisonKey(title)
	if t == "" {
		t = strings.TrimSpace(title)
	}
	a := comparisonKey(artist)
	if a == "" {
		a = strings.TrimSpace(artist)
	}
	return "track:" + t + " artist:" + a
}
